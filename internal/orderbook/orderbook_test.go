package orderbook

import (
	"context"
	"testing"

	"ammcpi/internal/authority"
	"ammcpi/internal/codec"
	"ammcpi/internal/instruction"
	"ammcpi/internal/runtime"
	"ammcpi/internal/runtime/runtimetest"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*runtimetest.World, *Invoker) {
	t.Helper()
	w := runtimetest.NewWorld(t)
	inv, err := New(w.Dispatcher)
	require.NoError(t, err)
	require.NoError(t, inv.InitOpenOrders(context.Background(), w.InitAccounts(), w.Signer))
	return w, inv
}

func limit(side schema.OrderSide, price, qty uint64, clientID schema.ClientOrderID) instruction.OrderArgs {
	return instruction.OrderArgs{
		Side:           side,
		LimitPrice:     price,
		MaxCoinQty:     qty,
		MaxNativePCQty: price * qty,
		OrderType:      schema.OrderTypeLimit,
		ClientOrderID:  clientID,
		Limit:          10,
	}
}

func payer(w *runtimetest.World, side schema.OrderSide) solana.PublicKey {
	if side == schema.OrderSideBuy {
		return w.AuthPC
	}
	return w.AuthCoin
}

func place(t *testing.T, w *runtimetest.World, inv *Invoker, args instruction.OrderArgs) {
	t.Helper()
	require.NoError(t, inv.NewOrder(context.Background(), w.OrderAccounts(payer(w, args.Side)), args, w.Signer))
}

func openOrders(t *testing.T, w *runtimetest.World) runtime.OpenOrders {
	t.Helper()
	oo, ok := w.Runtime.OpenOrders(w.OpenOrders)
	require.True(t, ok)
	return oo
}

func last(t *testing.T, w *runtimetest.World) runtime.Invocation {
	t.Helper()
	calls := w.Runtime.Invocations()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

func TestNewOrderThenSettleOnUncrossedBook(t *testing.T) {
	w, inv := setup(t)
	w.RestTraderOrder(t, schema.OrderSideSell, 120, 5, 1)

	place(t, w, inv, limit(schema.OrderSideBuy, 100, 3, 7))
	before := openOrders(t, w)
	coin, pc := w.Runtime.Balance(w.AuthCoin), w.Runtime.Balance(w.AuthPC)
	assert.Equal(t, uint64(300), before.PCLocked)
	assert.Equal(t, uint64(runtimetest.StartingPC-300), pc)

	require.NoError(t, inv.SettleFunds(context.Background(), w.SettleAccounts(), w.Signer))

	assert.Equal(t, before, openOrders(t, w))
	assert.Equal(t, coin, w.Runtime.Balance(w.AuthCoin))
	assert.Equal(t, pc, w.Runtime.Balance(w.AuthPC))

	bids, asks := w.Runtime.Book(w.Market.Market)
	require.Len(t, bids, 1)
	require.Len(t, asks, 1)
	assert.Equal(t, w.OpenOrders, bids[0].OpenOrders)
}

func TestSettleAccountLists(t *testing.T) {
	w, inv := setup(t)
	ctx := context.Background()

	accounts := w.SettleAccounts()
	require.NoError(t, inv.SettleFunds(ctx, accounts, w.Signer))
	plain := last(t, w)
	require.Len(t, plain.Accounts, 10)
	assert.Equal(t, SettleInvocation(accounts), plain.Accounts)
	assert.Equal(t, w.Runtime.Config().DexProgram, plain.Accounts[0].Key)
	assert.Equal(t, w.Authority, plain.Accounts[3].Key)
	assert.Equal(t, []solana.PublicKey{w.Authority}, plain.Signers)

	referrer := schema.Writable(w.UserPC)
	accounts.Referrer = &referrer
	require.NoError(t, inv.SettleFunds(ctx, accounts, w.Signer))
	referred := last(t, w)
	require.Len(t, referred.Accounts, 11)
	assert.Equal(t, plain.Accounts, referred.Accounts[:10])
	assert.Equal(t, referrer, referred.Accounts[10])
	assert.Equal(t, plain.Data, referred.Data)
}

func TestSettleRejectsReferrerOfWrongMint(t *testing.T) {
	w, inv := setup(t)

	accounts := w.SettleAccounts()
	referrer := schema.Writable(w.UserCoin)
	accounts.Referrer = &referrer
	err := inv.SettleFunds(context.Background(), accounts, w.Signer)
	require.ErrorIs(t, err, exception.ErrTokenMintMismatch)
}

func TestMatchThenSettle(t *testing.T) {
	w, inv := setup(t)
	w.RestTraderOrder(t, schema.OrderSideSell, 100, 5, 1)

	place(t, w, inv, limit(schema.OrderSideBuy, 110, 3, 7))

	oo := openOrders(t, w)
	assert.Equal(t, uint64(3), oo.CoinFree)
	assert.Equal(t, uint64(30), oo.PCFree)
	assert.Zero(t, oo.PCLocked)

	_, asks := w.Runtime.Book(w.Market.Market)
	require.Len(t, asks, 1)
	assert.Equal(t, uint64(2), asks[0].Qty)

	trader, ok := w.Runtime.OpenOrders(w.TraderOpenOrders)
	require.True(t, ok)
	assert.Equal(t, uint64(300), trader.PCFree)
	assert.Equal(t, uint64(2), trader.CoinLocked)

	require.NoError(t, inv.SettleFunds(context.Background(), w.SettleAccounts(), w.Signer))
	assert.Equal(t, uint64(runtimetest.StartingCoin+3), w.Runtime.Balance(w.AuthCoin))
	assert.Equal(t, uint64(runtimetest.StartingPC-300), w.Runtime.Balance(w.AuthPC))
	settled := openOrders(t, w)
	assert.Zero(t, settled.CoinFree)
	assert.Zero(t, settled.PCFree)
}

func TestCancelOrdersByClientIDsIgnoresUnknown(t *testing.T) {
	w, inv := setup(t)
	w.RestTraderOrder(t, schema.OrderSideBuy, 50, 1, 1)

	place(t, w, inv, limit(schema.OrderSideBuy, 90, 2, 1))
	place(t, w, inv, limit(schema.OrderSideBuy, 80, 2, 2))
	place(t, w, inv, limit(schema.OrderSideSell, 200, 4, 3))

	ids := [codec.ClientIDSlots]schema.ClientOrderID{1, 3, 999, 12345}
	require.NoError(t, inv.CancelOrdersByClientIDs(context.Background(), w.CancelAccounts(), ids, w.Signer))

	bids, asks := w.Runtime.Book(w.Market.Market)
	assert.Empty(t, asks)
	require.Len(t, bids, 2)
	assert.Equal(t, schema.ClientOrderID(2), bids[0].ClientOrderID)
	assert.Equal(t, w.TraderOpenOrders, bids[1].OpenOrders)

	oo := openOrders(t, w)
	assert.Equal(t, uint64(180), oo.PCFree)
	assert.Equal(t, uint64(160), oo.PCLocked)
	assert.Equal(t, uint64(4), oo.CoinFree)

	var none [codec.ClientIDSlots]schema.ClientOrderID
	require.NoError(t, inv.CancelOrdersByClientIDs(context.Background(), w.CancelAccounts(), none, w.Signer))
}

func TestCancelOrder(t *testing.T) {
	w, inv := setup(t)
	ctx := context.Background()

	place(t, w, inv, limit(schema.OrderSideBuy, 90, 2, 1))
	bids, _ := w.Runtime.Book(w.Market.Market)
	require.Len(t, bids, 1)
	id := bids[0].ID

	require.NoError(t, inv.CancelOrder(ctx, w.CancelAccounts(), schema.OrderSideBuy, id, w.Signer))
	bids, _ = w.Runtime.Book(w.Market.Market)
	assert.Empty(t, bids)
	assert.Equal(t, uint64(180), openOrders(t, w).PCFree)

	err := inv.CancelOrder(ctx, w.CancelAccounts(), schema.OrderSideBuy, id, w.Signer)
	require.ErrorIs(t, err, exception.ErrVenueOrderNotFound)
}

func TestReplaceOnUnknownClientIDIsNewOrder(t *testing.T) {
	ctx := context.Background()
	args := limit(schema.OrderSideBuy, 95, 4, 42)

	plain, plainInv := setup(t)
	plain.RestTraderOrder(t, schema.OrderSideSell, 120, 5, 1)
	require.NoError(t, plainInv.NewOrder(ctx, plain.OrderAccounts(plain.AuthPC), args, plain.Signer))

	replaced, replacedInv := setup(t)
	replaced.RestTraderOrder(t, schema.OrderSideSell, 120, 5, 1)
	require.NoError(t, replacedInv.ReplaceOrderByClientID(ctx, replaced.OrderAccounts(replaced.AuthPC), args, replaced.Signer))

	plainBids, plainAsks := plain.Runtime.Book(plain.Market.Market)
	replacedBids, replacedAsks := replaced.Runtime.Book(replaced.Market.Market)
	assert.Equal(t, plainBids, replacedBids)
	assert.Equal(t, plainAsks, replacedAsks)
	assert.Equal(t, openOrders(t, plain), openOrders(t, replaced))
	assert.Equal(t, plain.Runtime.Balance(plain.AuthPC), replaced.Runtime.Balance(replaced.AuthPC))
}

func TestReplaceCancelsExisting(t *testing.T) {
	w, inv := setup(t)

	place(t, w, inv, limit(schema.OrderSideBuy, 90, 2, 7))
	require.NoError(t, inv.ReplaceOrderByClientID(context.Background(), w.OrderAccounts(w.AuthPC),
		limit(schema.OrderSideBuy, 95, 4, 7), w.Signer))

	bids, _ := w.Runtime.Book(w.Market.Market)
	require.Len(t, bids, 1)
	assert.Equal(t, uint64(95), bids[0].Price)
	assert.Equal(t, uint64(4), bids[0].Qty)

	oo := openOrders(t, w)
	assert.Equal(t, uint64(380), oo.PCLocked)
	assert.Zero(t, oo.PCFree)
	assert.Equal(t, uint64(runtimetest.StartingPC-380), w.Runtime.Balance(w.AuthPC))
}

func TestOwnOrderCrossedCancelsResting(t *testing.T) {
	w, inv := setup(t)

	place(t, w, inv, limit(schema.OrderSideSell, 100, 2, 1))
	place(t, w, inv, limit(schema.OrderSideBuy, 100, 1, 2))

	bids, asks := w.Runtime.Book(w.Market.Market)
	assert.Empty(t, asks)
	require.Len(t, bids, 1)

	oo := openOrders(t, w)
	assert.Equal(t, uint64(2), oo.CoinFree)
	assert.Zero(t, oo.CoinLocked)
	assert.Equal(t, uint64(100), oo.PCLocked)
}

func TestCloseOpenOrders(t *testing.T) {
	w, inv := setup(t)
	ctx := context.Background()

	place(t, w, inv, limit(schema.OrderSideBuy, 90, 2, 1))
	err := inv.CloseOpenOrders(ctx, w.CloseAccounts(w.User), w.Signer)
	require.ErrorIs(t, err, exception.ErrVenueOpenOrdersNotEmpty)

	var ids [codec.ClientIDSlots]schema.ClientOrderID
	ids[0] = 1
	require.NoError(t, inv.CancelOrdersByClientIDs(ctx, w.CancelAccounts(), ids, w.Signer))
	require.ErrorIs(t, inv.CloseOpenOrders(ctx, w.CloseAccounts(w.User), w.Signer), exception.ErrVenueOpenOrdersNotEmpty)

	require.NoError(t, inv.SettleFunds(ctx, w.SettleAccounts(), w.Signer))
	require.NoError(t, inv.CloseOpenOrders(ctx, w.CloseAccounts(w.User), w.Signer))

	_, ok := w.Runtime.OpenOrders(w.OpenOrders)
	assert.False(t, ok)
	assert.Equal(t, uint64(runtimetest.StartingPC), w.Runtime.Balance(w.AuthPC))
}

func TestInitOpenOrdersTwiceFails(t *testing.T) {
	w, inv := setup(t)

	err := inv.InitOpenOrders(context.Background(), w.InitAccounts(), w.Signer)
	require.ErrorIs(t, err, exception.ErrVenueOpenOrdersInUse)
}

func TestRequiresSigner(t *testing.T) {
	w, inv := setup(t)
	ctx := context.Background()
	base := len(w.Runtime.Invocations())

	err := inv.NewOrder(ctx, w.OrderAccounts(w.AuthPC), limit(schema.OrderSideBuy, 90, 1, 1), authority.Signer{})
	require.ErrorIs(t, err, exception.ErrDispatchMissingSigner)
	err = inv.SettleFunds(ctx, w.SettleAccounts(), authority.Signer{})
	require.ErrorIs(t, err, exception.ErrDispatchMissingSigner)

	assert.Len(t, w.Runtime.Invocations(), base)
}

func TestArgumentsRejectedBeforeDispatch(t *testing.T) {
	w, inv := setup(t)
	base := len(w.Runtime.Invocations())

	args := limit(schema.OrderSideBuy, 90, 1, 1)
	args.MaxCoinQty = 0
	err := inv.NewOrder(context.Background(), w.OrderAccounts(w.AuthPC), args, w.Signer)
	require.ErrorIs(t, err, exception.ErrInstructionZeroQuantity)

	accounts := w.OrderAccounts(w.AuthPC)
	accounts.EventQueue = schema.AccountRef{}
	err = inv.NewOrder(context.Background(), accounts, limit(schema.OrderSideBuy, 90, 1, 1), w.Signer)
	require.ErrorIs(t, err, exception.ErrInstructionMissingAccount)

	assert.Len(t, w.Runtime.Invocations(), base)
	assert.Zero(t, w.Metrics.Snapshot().Rejected)
}

func TestNewRequiresDispatcher(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, exception.ErrNilInstance)
}
