// Package orderbook issues order-book venue operations on behalf of the
// derived authority: open-orders lifecycle, order placement and cancellation,
// and settlement.
package orderbook

import (
	"context"

	"ammcpi/internal/authority"
	"ammcpi/internal/codec"
	"ammcpi/internal/dispatch"
	"ammcpi/internal/errors"
	"ammcpi/internal/instruction"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"
)

type Invoker struct {
	dispatcher *dispatch.Dispatcher
}

func New(dispatcher *dispatch.Dispatcher) (*Invoker, error) {
	if dispatcher == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "dispatcher")
	}
	return &Invoker{dispatcher: dispatcher}, nil
}

// InitOpenOrders initializes the open-orders account of the authority on
// market.
func (inv *Invoker) InitOpenOrders(ctx context.Context, accounts instruction.InitOpenOrdersAccounts, signer authority.Signer) error {
	desc, err := instruction.InitOpenOrders(accounts)
	if err != nil {
		return err
	}
	return inv.dispatch(ctx, desc, signer,
		accounts.DexProgram,
		accounts.OpenOrders,
		accounts.Owner,
		accounts.Market,
		accounts.Rent,
	)
}

// CloseOpenOrders closes an empty open-orders account, releasing its
// lamports to destination.
func (inv *Invoker) CloseOpenOrders(ctx context.Context, accounts instruction.CloseOpenOrdersAccounts, signer authority.Signer) error {
	desc, err := instruction.CloseOpenOrders(accounts)
	if err != nil {
		return err
	}
	return inv.dispatch(ctx, desc, signer,
		accounts.DexProgram,
		accounts.OpenOrders,
		accounts.Owner,
		accounts.Destination,
		accounts.Market,
	)
}

// NewOrder places an order with self-trade behavior CancelProvide and no
// expiry.
func (inv *Invoker) NewOrder(ctx context.Context, accounts instruction.OrderAccounts, args instruction.OrderArgs, signer authority.Signer) error {
	desc, err := instruction.NewOrder(accounts, args)
	if err != nil {
		return err
	}
	return inv.dispatch(ctx, desc, signer, orderInvocation(accounts)...)
}

// ReplaceOrderByClientID atomically cancels the order tagged
// args.ClientOrderID and places args. With no such order it is a NewOrder.
func (inv *Invoker) ReplaceOrderByClientID(ctx context.Context, accounts instruction.OrderAccounts, args instruction.OrderArgs, signer authority.Signer) error {
	desc, err := instruction.ReplaceOrderByClientID(accounts, args)
	if err != nil {
		return err
	}
	return inv.dispatch(ctx, desc, signer, orderInvocation(accounts)...)
}

// CancelOrder cancels one live order by venue order id.
func (inv *Invoker) CancelOrder(ctx context.Context, accounts instruction.CancelAccounts, side schema.OrderSide, orderID schema.OrderID, signer authority.Signer) error {
	desc, err := instruction.CancelOrder(accounts, side, orderID)
	if err != nil {
		return err
	}
	return inv.dispatch(ctx, desc, signer, cancelInvocation(accounts)...)
}

// CancelOrdersByClientIDs cancels the live orders tagged with any of ids.
// Unknown ids are ignored by the venue.
func (inv *Invoker) CancelOrdersByClientIDs(ctx context.Context, accounts instruction.CancelAccounts, ids [codec.ClientIDSlots]schema.ClientOrderID, signer authority.Signer) error {
	desc, err := instruction.CancelOrdersByClientIDs(accounts, ids)
	if err != nil {
		return err
	}
	return inv.dispatch(ctx, desc, signer, cancelInvocation(accounts)...)
}

// SettleFunds moves free balances to the authority's wallets.
func (inv *Invoker) SettleFunds(ctx context.Context, accounts instruction.SettleAccounts, signer authority.Signer) error {
	desc, err := instruction.SettleFunds(accounts)
	if err != nil {
		return err
	}
	return inv.dispatch(ctx, desc, signer, SettleInvocation(accounts)...)
}

func (inv *Invoker) dispatch(ctx context.Context, desc instruction.Descriptor, signer authority.Signer, accounts ...schema.AccountRef) error {
	if signer.IsZero() {
		return errors.Wrapf(exception.ErrDispatchMissingSigner, "op: %s", desc.Op())
	}
	return inv.dispatcher.Dispatch(ctx, desc, accounts, signer)
}

// The runtime receives the dex program first, then every descriptor account
// in descriptor order. Optional accounts go last and only when present.

func orderInvocation(a instruction.OrderAccounts) []schema.AccountRef {
	out := make([]schema.AccountRef, 0, 14)
	out = append(out,
		a.DexProgram,
		a.Market,
		a.OpenOrders,
		a.RequestQueue,
		a.EventQueue,
		a.Bids,
		a.Asks,
		a.Payer,
		a.Owner,
		a.CoinVault,
		a.PCVault,
		a.TokenProgram,
		a.Rent,
	)
	if a.Referral != nil {
		out = append(out, *a.Referral)
	}
	return out
}

func cancelInvocation(a instruction.CancelAccounts) []schema.AccountRef {
	return []schema.AccountRef{
		a.DexProgram,
		a.Market,
		a.Bids,
		a.Asks,
		a.OpenOrders,
		a.Owner,
		a.EventQueue,
	}
}

// SettleInvocation returns the settle account list: ten entries, or eleven
// with the referrer last.
func SettleInvocation(a instruction.SettleAccounts) []schema.AccountRef {
	out := make([]schema.AccountRef, 0, 11)
	out = append(out,
		a.DexProgram,
		a.Market,
		a.OpenOrders,
		a.Owner,
		a.CoinVault,
		a.PCVault,
		a.CoinWallet,
		a.PCWallet,
		a.VaultSigner,
		a.TokenProgram,
	)
	if a.Referrer != nil {
		out = append(out, *a.Referrer)
	}
	return out
}
