// Package runtimetest builds a ready-made runtime world for tests: an AMM
// authority with coin and pc wallets, an external user, a market and a
// second trader resting liquidity.
package runtimetest

import (
	"crypto/sha256"
	"testing"

	"ammcpi/internal/authority"
	"ammcpi/internal/dispatch"
	"ammcpi/internal/instruction"
	"ammcpi/internal/obs"
	"ammcpi/internal/runtime"
	"ammcpi/internal/schema"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var (
	ProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	Seed      = []byte("amm authority")
)

const (
	Nonce         = 254
	StartingCoin  = 1_000
	StartingPC    = 100_000
	StartingLamps = 10_000_000
)

// Key derives a stable test key from name.
func Key(name string) solana.PublicKey {
	sum := sha256.Sum256([]byte(name))
	return solana.PublicKeyFromBytes(sum[:])
}

type World struct {
	Runtime    *runtime.Runtime
	Dispatcher *dispatch.Dispatcher
	Metrics    *obs.Metrics
	Signer     authority.Signer
	Authority  solana.PublicKey

	CoinMint solana.PublicKey
	PCMint   solana.PublicKey
	// AuthCoin and AuthPC are owned by the derived authority.
	AuthCoin solana.PublicKey
	AuthPC   solana.PublicKey

	// User is an externally signed wallet.
	User     solana.PublicKey
	UserCoin solana.PublicKey
	UserPC   solana.PublicKey

	Market     runtime.MarketConfig
	OpenOrders solana.PublicKey

	// Trader rests liquidity with its own open orders.
	Trader           solana.PublicKey
	TraderCoin       solana.PublicKey
	TraderPC         solana.PublicKey
	TraderOpenOrders solana.PublicKey
}

// NewWorld builds the world. The authority open orders is not initialized;
// the trader's is.
func NewWorld(t testing.TB) *World {
	t.Helper()

	signer, err := authority.NewDeriver(ProgramID).Derive(Seed, Nonce)
	require.NoError(t, err)

	metrics := obs.NewMetrics()
	rt := runtime.New(runtime.DefaultConfig(ProgramID))
	d, err := dispatch.New(rt, metrics)
	require.NoError(t, err)

	w := &World{
		Runtime:    rt,
		Dispatcher: d,
		Metrics:    metrics,
		Signer:     signer,
		Authority:  signer.Address(),

		CoinMint: Key("coin mint"),
		PCMint:   Key("pc mint"),
		AuthCoin: Key("authority coin"),
		AuthPC:   Key("authority pc"),

		User:     Key("user"),
		UserCoin: Key("user coin"),
		UserPC:   Key("user pc"),

		Market: runtime.MarketConfig{
			Market:       Key("market"),
			CoinMint:     Key("coin mint"),
			PCMint:       Key("pc mint"),
			CoinVault:    Key("coin vault"),
			PCVault:      Key("pc vault"),
			VaultSigner:  Key("vault signer"),
			Bids:         Key("bids"),
			Asks:         Key("asks"),
			RequestQueue: Key("request queue"),
			EventQueue:   Key("event queue"),
		},
		OpenOrders: Key("authority open orders"),

		Trader:           Key("trader"),
		TraderCoin:       Key("trader coin"),
		TraderPC:         Key("trader pc"),
		TraderOpenOrders: Key("trader open orders"),
	}

	require.NoError(t, rt.CreateMint(w.CoinMint, w.Authority, 6))
	require.NoError(t, rt.CreateMint(w.PCMint, w.Authority, 6))
	for _, acc := range []struct {
		key, mint, owner solana.PublicKey
		amount           uint64
	}{
		{w.AuthCoin, w.CoinMint, w.Authority, StartingCoin},
		{w.AuthPC, w.PCMint, w.Authority, StartingPC},
		{w.UserCoin, w.CoinMint, w.User, StartingCoin},
		{w.UserPC, w.PCMint, w.User, StartingPC},
		{w.TraderCoin, w.CoinMint, w.Trader, StartingCoin},
		{w.TraderPC, w.PCMint, w.Trader, StartingPC},
	} {
		require.NoError(t, rt.CreateTokenAccount(acc.key, acc.mint, acc.owner, acc.amount))
	}
	rt.SetLamports(w.User, StartingLamps)
	require.NoError(t, rt.CreateMarket(w.Market))

	initTrader, err := instruction.InitOpenOrders(instruction.InitOpenOrdersAccounts{
		OpenOrders: schema.Writable(w.TraderOpenOrders),
		Owner:      schema.Signer(w.Trader),
		Market:     schema.Readonly(w.Market.Market),
		Rent:       schema.Readonly(solana.SysVarRentPubkey),
		DexProgram: schema.Readonly(runtime.DexProgramID),
	})
	require.NoError(t, err)
	err = d.Dispatch(t.Context(), initTrader, []schema.AccountRef{
		schema.Readonly(runtime.DexProgramID),
		schema.Writable(w.TraderOpenOrders),
		schema.Signer(w.Trader),
		schema.Readonly(w.Market.Market),
		schema.Readonly(solana.SysVarRentPubkey),
	}, authority.Signer{})
	require.NoError(t, err)

	return w
}

func (w *World) TokenProgram() schema.AccountRef {
	return schema.Readonly(w.Runtime.Config().TokenProgram)
}

func (w *World) DexProgram() schema.AccountRef {
	return schema.Readonly(w.Runtime.Config().DexProgram)
}

// AuthorityRef is the derived authority as an unsigned handle; its
// signature comes from the signer seeds.
func (w *World) AuthorityRef() schema.AccountRef {
	return schema.Readonly(w.Authority)
}

func (w *World) InitAccounts() instruction.InitOpenOrdersAccounts {
	return instruction.InitOpenOrdersAccounts{
		OpenOrders: schema.Writable(w.OpenOrders),
		Owner:      w.AuthorityRef(),
		Market:     schema.Readonly(w.Market.Market),
		Rent:       schema.Readonly(w.Runtime.Config().Rent),
		DexProgram: w.DexProgram(),
	}
}

func (w *World) CloseAccounts(destination solana.PublicKey) instruction.CloseOpenOrdersAccounts {
	return instruction.CloseOpenOrdersAccounts{
		OpenOrders:  schema.Writable(w.OpenOrders),
		Owner:       w.AuthorityRef(),
		Destination: schema.Writable(destination),
		Market:      schema.Readonly(w.Market.Market),
		DexProgram:  w.DexProgram(),
	}
}

// OrderAccounts places for the authority; payer is the wallet funding the
// side (coin for asks, pc for bids).
func (w *World) OrderAccounts(payer solana.PublicKey) instruction.OrderAccounts {
	return w.orderAccounts(w.OpenOrders, w.AuthorityRef(), payer)
}

// TraderOrderAccounts places for the externally signed trader.
func (w *World) TraderOrderAccounts(payer solana.PublicKey) instruction.OrderAccounts {
	return w.orderAccounts(w.TraderOpenOrders, schema.Signer(w.Trader), payer)
}

func (w *World) orderAccounts(openOrders solana.PublicKey, owner schema.AccountRef, payer solana.PublicKey) instruction.OrderAccounts {
	return instruction.OrderAccounts{
		Market:       schema.Writable(w.Market.Market),
		OpenOrders:   schema.Writable(openOrders),
		RequestQueue: schema.Writable(w.Market.RequestQueue),
		EventQueue:   schema.Writable(w.Market.EventQueue),
		Bids:         schema.Writable(w.Market.Bids),
		Asks:         schema.Writable(w.Market.Asks),
		Payer:        schema.Writable(payer),
		Owner:        owner,
		CoinVault:    schema.Writable(w.Market.CoinVault),
		PCVault:      schema.Writable(w.Market.PCVault),
		TokenProgram: w.TokenProgram(),
		Rent:         schema.Readonly(w.Runtime.Config().Rent),
		DexProgram:   w.DexProgram(),
	}
}

func (w *World) CancelAccounts() instruction.CancelAccounts {
	return instruction.CancelAccounts{
		Market:     schema.Writable(w.Market.Market),
		Bids:       schema.Writable(w.Market.Bids),
		Asks:       schema.Writable(w.Market.Asks),
		OpenOrders: schema.Writable(w.OpenOrders),
		Owner:      w.AuthorityRef(),
		EventQueue: schema.Writable(w.Market.EventQueue),
		DexProgram: w.DexProgram(),
	}
}

func (w *World) SettleAccounts() instruction.SettleAccounts {
	return instruction.SettleAccounts{
		Market:       schema.Writable(w.Market.Market),
		OpenOrders:   schema.Writable(w.OpenOrders),
		Owner:        w.AuthorityRef(),
		CoinVault:    schema.Writable(w.Market.CoinVault),
		PCVault:      schema.Writable(w.Market.PCVault),
		CoinWallet:   schema.Writable(w.AuthCoin),
		PCWallet:     schema.Writable(w.AuthPC),
		VaultSigner:  schema.Readonly(w.Market.VaultSigner),
		TokenProgram: w.TokenProgram(),
		DexProgram:   w.DexProgram(),
	}
}

// RestTraderOrder rests a trader limit order and returns its id.
func (w *World) RestTraderOrder(t testing.TB, side schema.OrderSide, price, qty uint64, clientID schema.ClientOrderID) schema.OrderID {
	t.Helper()

	payer := w.TraderPC
	if side == schema.OrderSideSell {
		payer = w.TraderCoin
	}
	accounts := w.TraderOrderAccounts(payer)
	desc, err := instruction.NewOrder(accounts, instruction.OrderArgs{
		Side:           side,
		LimitPrice:     price,
		MaxCoinQty:     qty,
		MaxNativePCQty: price * qty,
		OrderType:      schema.OrderTypeLimit,
		ClientOrderID:  clientID,
		Limit:          10,
	})
	require.NoError(t, err)
	refs := []schema.AccountRef{
		accounts.DexProgram, accounts.Market, accounts.OpenOrders, accounts.RequestQueue, accounts.EventQueue,
		accounts.Bids, accounts.Asks, accounts.Payer, accounts.Owner, accounts.CoinVault, accounts.PCVault,
		accounts.TokenProgram, accounts.Rent,
	}
	require.NoError(t, w.Dispatcher.Dispatch(t.Context(), desc, refs, authority.Signer{}))

	bids, asks := w.Runtime.Book(w.Market.Market)
	book := bids
	if side == schema.OrderSideSell {
		book = asks
	}
	for _, o := range book {
		if o.OpenOrders == w.TraderOpenOrders && o.ClientOrderID == clientID {
			return o.ID
		}
	}
	t.Fatalf("trader order %d did not rest", clientID)
	return schema.OrderID{}
}
