// Package scenario drives the custody and order-book invokers from a
// resolved step list against the in-memory runtime.
package scenario

import (
	"context"
	"time"

	"ammcpi/internal/authority"
	"ammcpi/internal/custody"
	"ammcpi/internal/dispatch"
	"ammcpi/internal/errors"
	"ammcpi/internal/instruction"
	"ammcpi/internal/ops"
	"ammcpi/internal/orderbook"
	"ammcpi/internal/runtime"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
	"github.com/yanun0323/logs"
)

// Result is the outcome of one step.
type Result struct {
	Step ops.Step
	// Err is the failure the step produced, expected or not.
	Err error
	// Invocations are the calls the step executed. Empty when it failed.
	Invocations []runtime.Invocation
	Elapsed     time.Duration
}

// Runner executes steps one transaction each.
type Runner struct {
	rt        *runtime.Runtime
	custody   *custody.Invoker
	orderbook *orderbook.Invoker
	signer    authority.Signer
}

func New(rt *runtime.Runtime, dispatcher *dispatch.Dispatcher, signer authority.Signer) (*Runner, error) {
	if rt == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "runtime")
	}
	if signer.IsZero() {
		return nil, errors.Wrap(exception.ErrDispatchMissingSigner, "runner")
	}
	c, err := custody.New(dispatcher)
	if err != nil {
		return nil, err
	}
	o, err := orderbook.New(dispatcher)
	if err != nil {
		return nil, err
	}
	return &Runner{rt: rt, custody: c, orderbook: o, signer: signer}, nil
}

// Setup creates the configured fixtures: lamports, mints, wallets and
// markets.
func (r *Runner) Setup(loaded ops.Loaded) error {
	for _, a := range loaded.Accounts {
		if a.Lamports > 0 {
			r.rt.SetLamports(a.Key, a.Lamports)
		}
	}
	for _, m := range loaded.Mints {
		if err := r.rt.CreateMint(m.Key, m.Authority, m.Decimals); err != nil {
			return errors.Wrapf(err, "mint: %s", m.Name)
		}
	}
	for _, w := range loaded.Wallets {
		if err := r.rt.CreateTokenAccount(w.Key, w.Mint, w.Owner, w.Amount); err != nil {
			return errors.Wrapf(err, "wallet: %s", w.Name)
		}
	}
	for _, m := range loaded.Markets {
		if err := r.rt.CreateMarket(m.MarketConfig); err != nil {
			return errors.Wrapf(err, "market: %s", m.Name)
		}
	}
	return nil
}

// Run executes steps in order. A step that fails when it should succeed, or
// succeeds when it should fail, stops the run. report, when not nil, sees
// every completed step.
func (r *Runner) Run(ctx context.Context, steps []ops.Step, report func(Result)) ([]Result, error) {
	results := make([]Result, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := r.Step(ctx, step)
		results = append(results, res)
		if report != nil {
			report(res)
		}

		switch {
		case res.Err != nil && !step.ExpectFailure:
			return results, errors.Wrapf(exception.ErrScenarioUnexpectedFailure, "step %s, cause: %v", step, res.Err)
		case res.Err == nil && step.ExpectFailure:
			return results, errors.Wrapf(exception.ErrScenarioUnexpectedSuccess, "step %s", step)
		case res.Err != nil:
			logs.Infof("step %s failed as expected, err: %v", step, res.Err)
		}
	}
	return results, nil
}

// Step executes one step inside its own transaction.
func (r *Runner) Step(ctx context.Context, step ops.Step) Result {
	before := len(r.rt.Invocations())
	start := time.Now()
	err := r.rt.Transaction(func() error {
		return r.execute(ctx, step)
	})
	res := Result{Step: step, Err: err, Elapsed: time.Since(start)}
	if err == nil {
		res.Invocations = r.rt.Invocations()[before:]
	}
	return res
}

func (r *Runner) execute(ctx context.Context, step ops.Step) error {
	switch step.Op {
	case instruction.OpTransfer:
		accounts := instruction.TransferAccounts{
			Source:       schema.Writable(step.Source),
			Destination:  schema.Writable(step.Destination),
			Owner:        r.owner(step.Owner),
			TokenProgram: r.tokenProgram(),
		}
		if r.isAuthority(step.Owner) {
			return r.custody.TransferWithAuthority(ctx, accounts, r.signer, step.Amount)
		}
		return r.custody.Transfer(ctx, accounts, step.Amount)

	case instruction.OpMintTo:
		return r.custody.MintTo(ctx, instruction.MintToAccounts{
			Mint:         schema.Writable(step.Mint),
			Destination:  schema.Writable(step.Destination),
			Authority:    r.authority(),
			TokenProgram: r.tokenProgram(),
		}, r.signer, step.Amount)

	case instruction.OpBurn:
		accounts := instruction.BurnAccounts{
			Account:      schema.Writable(step.Account),
			Mint:         schema.Writable(step.Mint),
			Owner:        r.owner(step.Owner),
			TokenProgram: r.tokenProgram(),
		}
		if r.isAuthority(step.Owner) {
			return r.custody.BurnWithAuthority(ctx, accounts, r.signer, step.Amount)
		}
		return r.custody.Burn(ctx, accounts, step.Amount)

	case instruction.OpCloseAccount:
		return r.custody.CloseWithAuthority(ctx, instruction.CloseAccountAccounts{
			Account:      schema.Writable(step.Account),
			Destination:  schema.Writable(step.Destination),
			Authority:    r.authority(),
			TokenProgram: r.tokenProgram(),
		}, r.signer)

	case instruction.OpSetAuthority:
		return r.custody.SetAuthority(ctx, instruction.SetAuthorityAccounts{
			Account:      schema.Writable(step.Account),
			Current:      r.authority(),
			TokenProgram: r.tokenProgram(),
		}, r.signer, step.Role, schema.Readonly(step.NewAuthority))

	case instruction.OpCreateAssociated:
		cfg := r.rt.Config()
		return r.custody.CreateAssociatedAccount(ctx, instruction.CreateAssociatedAccounts{
			Associated:        schema.Writable(step.Associated),
			Funding:           schema.WritableSigner(step.Funding),
			Wallet:            schema.Readonly(step.Wallet),
			Mint:              schema.Readonly(step.Mint),
			TokenProgram:      schema.Readonly(cfg.TokenProgram),
			AssociatedProgram: schema.Readonly(cfg.AssociatedProgram),
			SystemProgram:     schema.Readonly(cfg.SystemProgram),
		})

	case instruction.OpInitOpenOrders:
		return r.orderbook.InitOpenOrders(ctx, instruction.InitOpenOrdersAccounts{
			OpenOrders: schema.Writable(step.OpenOrders),
			Owner:      r.authority(),
			Market:     schema.Readonly(step.Market.Market),
			Rent:       schema.Readonly(r.rt.Config().Rent),
			DexProgram: r.dexProgram(),
		}, r.signer)

	case instruction.OpCloseOpenOrders:
		return r.orderbook.CloseOpenOrders(ctx, instruction.CloseOpenOrdersAccounts{
			OpenOrders:  schema.Writable(step.OpenOrders),
			Owner:       r.authority(),
			Destination: schema.Writable(step.Destination),
			Market:      schema.Readonly(step.Market.Market),
			DexProgram:  r.dexProgram(),
		}, r.signer)

	case instruction.OpNewOrder:
		return r.orderbook.NewOrder(ctx, r.orderAccounts(step), orderArgs(step), r.signer)

	case instruction.OpReplaceOrderByClientID:
		return r.orderbook.ReplaceOrderByClientID(ctx, r.orderAccounts(step), orderArgs(step), r.signer)

	case instruction.OpCancelOrder:
		id, err := r.orderID(step)
		if err != nil {
			return err
		}
		return r.orderbook.CancelOrder(ctx, r.cancelAccounts(step), step.Side, id, r.signer)

	case instruction.OpCancelOrdersByClientIDs:
		return r.orderbook.CancelOrdersByClientIDs(ctx, r.cancelAccounts(step), step.ClientIDs, r.signer)

	case instruction.OpSettleFunds:
		accounts := instruction.SettleAccounts{
			Market:       schema.Writable(step.Market.Market),
			OpenOrders:   schema.Writable(step.OpenOrders),
			Owner:        r.authority(),
			CoinVault:    schema.Writable(step.Market.CoinVault),
			PCVault:      schema.Writable(step.Market.PCVault),
			CoinWallet:   schema.Writable(step.CoinWallet),
			PCWallet:     schema.Writable(step.PCWallet),
			VaultSigner:  schema.Readonly(step.Market.VaultSigner),
			TokenProgram: r.tokenProgram(),
			DexProgram:   r.dexProgram(),
		}
		if !step.Referrer.IsZero() {
			referrer := schema.Writable(step.Referrer)
			accounts.Referrer = &referrer
		}
		return r.orderbook.SettleFunds(ctx, accounts, r.signer)
	}

	return errors.Wrapf(exception.ErrInstructionUnknownOp, "op: %d", step.Op)
}

func (r *Runner) isAuthority(key solana.PublicKey) bool {
	return key == r.signer.Address()
}

// owner is the authority handle, signed through seeds, or an externally
// signed key.
func (r *Runner) owner(key solana.PublicKey) schema.AccountRef {
	if r.isAuthority(key) {
		return r.authority()
	}
	return schema.Signer(key)
}

func (r *Runner) authority() schema.AccountRef {
	return schema.Readonly(r.signer.Address())
}

func (r *Runner) tokenProgram() schema.AccountRef {
	return schema.Readonly(r.rt.Config().TokenProgram)
}

func (r *Runner) dexProgram() schema.AccountRef {
	return schema.Readonly(r.rt.Config().DexProgram)
}

func (r *Runner) orderAccounts(step ops.Step) instruction.OrderAccounts {
	m := step.Market
	accounts := instruction.OrderAccounts{
		Market:       schema.Writable(m.Market),
		OpenOrders:   schema.Writable(step.OpenOrders),
		RequestQueue: schema.Writable(m.RequestQueue),
		EventQueue:   schema.Writable(m.EventQueue),
		Bids:         schema.Writable(m.Bids),
		Asks:         schema.Writable(m.Asks),
		Payer:        schema.Writable(step.Payer),
		Owner:        r.authority(),
		CoinVault:    schema.Writable(m.CoinVault),
		PCVault:      schema.Writable(m.PCVault),
		TokenProgram: r.tokenProgram(),
		Rent:         schema.Readonly(r.rt.Config().Rent),
		DexProgram:   r.dexProgram(),
	}
	if !step.Referral.IsZero() {
		referral := schema.Writable(step.Referral)
		accounts.Referral = &referral
	}
	return accounts
}

func (r *Runner) cancelAccounts(step ops.Step) instruction.CancelAccounts {
	m := step.Market
	return instruction.CancelAccounts{
		Market:     schema.Writable(m.Market),
		Bids:       schema.Writable(m.Bids),
		Asks:       schema.Writable(m.Asks),
		OpenOrders: schema.Writable(step.OpenOrders),
		Owner:      r.authority(),
		EventQueue: schema.Writable(m.EventQueue),
		DexProgram: r.dexProgram(),
	}
}

// orderID finds the resting order of the step's open orders by client id.
func (r *Runner) orderID(step ops.Step) (schema.OrderID, error) {
	bids, asks := r.rt.Book(step.Market.Market)
	book := bids
	if step.Side == schema.OrderSideSell {
		book = asks
	}
	for _, o := range book {
		if o.OpenOrders == step.OpenOrders && o.ClientOrderID == step.ClientID {
			return o.ID, nil
		}
	}
	return schema.OrderID{}, errors.Wrapf(exception.ErrScenarioOrderNotFound, "side: %s, client_id: %d", step.Side, step.ClientID)
}

func orderArgs(step ops.Step) instruction.OrderArgs {
	return instruction.OrderArgs{
		Side:           step.Side,
		LimitPrice:     step.Price,
		MaxCoinQty:     step.Qty,
		MaxNativePCQty: step.MaxPC,
		OrderType:      step.Type,
		ClientOrderID:  step.ClientID,
		Limit:          step.Limit,
	}
}
