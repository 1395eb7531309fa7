// Package custody issues token-custody operations: SPL Token transfers,
// mints, burns, closes and authority changes, and associated token account
// creation.
package custody

import (
	"context"

	"ammcpi/internal/authority"
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

// CreateAssociatedAccount creates the associated token account of wallet for
// mint, paid by funding. It fails if the account already exists.
func (inv *Invoker) CreateAssociatedAccount(ctx context.Context, accounts instruction.CreateAssociatedAccounts) error {
	desc, err := instruction.CreateAssociated(accounts)
	if err != nil {
		return err
	}

	return inv.dispatcher.Dispatch(ctx, desc, []schema.AccountRef{
		accounts.Associated,
		accounts.Funding,
		accounts.Wallet,
		accounts.Mint,
		accounts.TokenProgram,
		accounts.AssociatedProgram,
		accounts.SystemProgram,
	}, authority.Signer{})
}

// Transfer moves tokens owned by an externally signed owner.
func (inv *Invoker) Transfer(ctx context.Context, accounts instruction.TransferAccounts, amount uint64) error {
	return inv.transfer(ctx, accounts, authority.Signer{}, amount)
}

// TransferWithAuthority moves tokens owned by the derived authority.
func (inv *Invoker) TransferWithAuthority(ctx context.Context, accounts instruction.TransferAccounts, signer authority.Signer, amount uint64) error {
	if signer.IsZero() {
		return errors.Wrapf(exception.ErrDispatchMissingSigner, "op: %s", instruction.OpTransfer)
	}
	return inv.transfer(ctx, accounts, signer, amount)
}

func (inv *Invoker) transfer(ctx context.Context, accounts instruction.TransferAccounts, signer authority.Signer, amount uint64) error {
	desc, err := instruction.Transfer(accounts, amount)
	if err != nil {
		return err
	}

	return inv.dispatcher.Dispatch(ctx, desc, []schema.AccountRef{
		accounts.Source,
		accounts.Destination,
		accounts.Owner,
		accounts.TokenProgram,
	}, signer)
}

// MintTo mints with the derived authority as mint authority.
func (inv *Invoker) MintTo(ctx context.Context, accounts instruction.MintToAccounts, signer authority.Signer, amount uint64) error {
	if signer.IsZero() {
		return errors.Wrapf(exception.ErrDispatchMissingSigner, "op: %s", instruction.OpMintTo)
	}
	desc, err := instruction.MintTo(accounts, amount)
	if err != nil {
		return err
	}

	return inv.dispatcher.Dispatch(ctx, desc, []schema.AccountRef{
		accounts.Mint,
		accounts.Destination,
		accounts.Authority,
		accounts.TokenProgram,
	}, signer)
}

// Burn burns tokens owned by an externally signed owner.
func (inv *Invoker) Burn(ctx context.Context, accounts instruction.BurnAccounts, amount uint64) error {
	return inv.burn(ctx, accounts, authority.Signer{}, amount)
}

// BurnWithAuthority burns tokens owned by the derived authority.
func (inv *Invoker) BurnWithAuthority(ctx context.Context, accounts instruction.BurnAccounts, signer authority.Signer, amount uint64) error {
	if signer.IsZero() {
		return errors.Wrapf(exception.ErrDispatchMissingSigner, "op: %s", instruction.OpBurn)
	}
	return inv.burn(ctx, accounts, signer, amount)
}

func (inv *Invoker) burn(ctx context.Context, accounts instruction.BurnAccounts, signer authority.Signer, amount uint64) error {
	desc, err := instruction.Burn(accounts, amount)
	if err != nil {
		return err
	}

	return inv.dispatcher.Dispatch(ctx, desc, []schema.AccountRef{
		accounts.Account,
		accounts.Mint,
		accounts.Owner,
		accounts.TokenProgram,
	}, signer)
}

// CloseWithAuthority closes an empty token account whose close authority is
// the derived authority.
func (inv *Invoker) CloseWithAuthority(ctx context.Context, accounts instruction.CloseAccountAccounts, signer authority.Signer) error {
	if signer.IsZero() {
		return errors.Wrapf(exception.ErrDispatchMissingSigner, "op: %s", instruction.OpCloseAccount)
	}
	desc, err := instruction.CloseAccount(accounts)
	if err != nil {
		return err
	}

	return inv.dispatcher.Dispatch(ctx, desc, []schema.AccountRef{
		accounts.Account,
		accounts.Destination,
		accounts.Authority,
		accounts.TokenProgram,
	}, signer)
}

// SetAuthority hands role on account from the derived authority to
// newAuthority.
func (inv *Invoker) SetAuthority(ctx context.Context, accounts instruction.SetAuthorityAccounts, signer authority.Signer, role schema.AuthorityType, newAuthority schema.AccountRef) error {
	if signer.IsZero() {
		return errors.Wrapf(exception.ErrDispatchMissingSigner, "op: %s", instruction.OpSetAuthority)
	}
	desc, err := instruction.SetAuthority(accounts, role, newAuthority.Key)
	if err != nil {
		return err
	}

	return inv.dispatcher.Dispatch(ctx, desc, []schema.AccountRef{
		accounts.Account,
		accounts.Current,
		accounts.TokenProgram,
	}, signer)
}
