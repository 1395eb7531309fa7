package runtime

import (
	"ammcpi/internal/codec"
	"ammcpi/internal/errors"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// AssociatedAddress derives the associated token account of wallet for
// mint under the configured programs.
func (r *Runtime) AssociatedAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress(
		[][]byte{wallet[:], r.cfg.TokenProgram[:], mint[:]},
		r.cfg.AssociatedProgram,
	)
	return address, err
}

// execAssociated handles Create: funding, associated, wallet, mint, system
// program, token program.
func (r *Runtime) execAssociated(c *call) error {
	tag, ok := codec.DecodeAssociated(c.data)
	if !ok {
		return errors.Wrap(exception.ErrInstructionMalformedData, "associated token program")
	}
	if err := c.require(6); err != nil {
		return err
	}

	funding, associated, wallet, mint := c.key(0), c.key(1), c.key(2), c.key(3)
	if c.key(4) != r.cfg.SystemProgram || c.key(5) != r.cfg.TokenProgram {
		return errors.Wrap(exception.ErrRuntimeUnknownProgram, "associated token program dependencies")
	}

	expected, err := r.AssociatedAddress(wallet, mint)
	if err != nil {
		return errors.Wrapf(exception.ErrRuntimeInvalidAddress, "cause: %v", err)
	}
	if expected != associated {
		return errors.Wrapf(exception.ErrRuntimeInvalidAddress, "want %s, got %s", expected, associated)
	}
	if _, ok := r.state.mints[mint]; !ok {
		return errors.Wrapf(exception.ErrRuntimeAccountNotFound, "mint: %s", mint)
	}
	if r.state.exists(associated) {
		if tag == codec.AssociatedTagCreateIdempotent {
			return r.checkIdempotent(associated, wallet, mint)
		}
		return errors.Wrapf(exception.ErrRuntimeAccountInUse, "associated account: %s", associated)
	}
	if r.state.lamports[funding] < TokenAccountRent {
		return errors.Wrapf(exception.ErrTokenInsufficientFunds, "funding %s cannot pay rent", funding)
	}

	r.state.lamports[funding] -= TokenAccountRent
	r.state.lamports[associated] += TokenAccountRent
	r.state.tokens[associated] = TokenAccount{Mint: mint, Owner: wallet}
	return nil
}

func (r *Runtime) checkIdempotent(associated, wallet, mint solana.PublicKey) error {
	acc, ok := r.state.tokens[associated]
	if !ok || acc.Mint != mint || acc.Owner != wallet {
		return errors.Wrapf(exception.ErrRuntimeAccountInUse, "associated account: %s", associated)
	}
	return nil
}
