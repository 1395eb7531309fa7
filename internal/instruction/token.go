package instruction

import (
	"ammcpi/internal/codec"
	"ammcpi/internal/errors"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

type TransferAccounts struct {
	Source       schema.AccountRef
	Destination  schema.AccountRef
	Owner        schema.AccountRef
	TokenProgram schema.AccountRef
}

// Transfer moves amount from source to destination, both of the same mint.
func Transfer(accounts TransferAccounts, amount uint64) (Descriptor, error) {
	r := required{op: OpTransfer}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("source", accounts.Source)).WRITE(),
		solana.Meta(r.key("destination", accounts.Destination)).WRITE(),
		solana.Meta(r.key("owner", accounts.Owner)).SIGNER(),
	}
	r.program(accounts.TokenProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpTransfer, accounts.TokenProgram.Key, metas,
		codec.EncodeTokenAmount(nil, codec.TokenTagTransfer, amount)), nil
}

type MintToAccounts struct {
	Mint         schema.AccountRef
	Destination  schema.AccountRef
	Authority    schema.AccountRef
	TokenProgram schema.AccountRef
}

// MintTo creates amount new units of mint into destination.
func MintTo(accounts MintToAccounts, amount uint64) (Descriptor, error) {
	r := required{op: OpMintTo}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("mint", accounts.Mint)).WRITE(),
		solana.Meta(r.key("destination", accounts.Destination)).WRITE(),
		solana.Meta(r.key("authority", accounts.Authority)).SIGNER(),
	}
	r.program(accounts.TokenProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpMintTo, accounts.TokenProgram.Key, metas,
		codec.EncodeTokenAmount(nil, codec.TokenTagMintTo, amount)), nil
}

type BurnAccounts struct {
	Account      schema.AccountRef
	Mint         schema.AccountRef
	Owner        schema.AccountRef
	TokenProgram schema.AccountRef
}

// Burn destroys amount units held by account.
func Burn(accounts BurnAccounts, amount uint64) (Descriptor, error) {
	r := required{op: OpBurn}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("account", accounts.Account)).WRITE(),
		solana.Meta(r.key("mint", accounts.Mint)).WRITE(),
		solana.Meta(r.key("owner", accounts.Owner)).SIGNER(),
	}
	r.program(accounts.TokenProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpBurn, accounts.TokenProgram.Key, metas,
		codec.EncodeTokenAmount(nil, codec.TokenTagBurn, amount)), nil
}

type CloseAccountAccounts struct {
	Account      schema.AccountRef
	Destination  schema.AccountRef
	Authority    schema.AccountRef
	TokenProgram schema.AccountRef
}

// CloseAccount closes an empty token account, releasing its lamports to
// destination.
func CloseAccount(accounts CloseAccountAccounts) (Descriptor, error) {
	r := required{op: OpCloseAccount}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("account", accounts.Account)).WRITE(),
		solana.Meta(r.key("destination", accounts.Destination)).WRITE(),
		solana.Meta(r.key("authority", accounts.Authority)).SIGNER(),
	}
	r.program(accounts.TokenProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpCloseAccount, accounts.TokenProgram.Key, metas,
		codec.EncodeTokenClose(nil)), nil
}

type SetAuthorityAccounts struct {
	Account      schema.AccountRef
	Current      schema.AccountRef
	TokenProgram schema.AccountRef
}

// SetAuthority reassigns role on account from the current authority to
// newAuthority.
func SetAuthority(accounts SetAuthorityAccounts, role schema.AuthorityType, newAuthority solana.PublicKey) (Descriptor, error) {
	if !role.IsAvailable() {
		return Descriptor{}, errors.Wrapf(exception.ErrInstructionInvalidRole, "role: %d", role)
	}

	r := required{op: OpSetAuthority}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("account", accounts.Account)).WRITE(),
		solana.Meta(r.key("current_authority", accounts.Current)).SIGNER(),
	}
	r.key("new_authority", schema.Readonly(newAuthority))
	r.program(accounts.TokenProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpSetAuthority, accounts.TokenProgram.Key, metas,
		codec.EncodeTokenSetAuthority(nil, role, newAuthority)), nil
}

type CreateAssociatedAccounts struct {
	Associated        schema.AccountRef
	Funding           schema.AccountRef
	Wallet            schema.AccountRef
	Mint              schema.AccountRef
	TokenProgram      schema.AccountRef
	AssociatedProgram schema.AccountRef
	SystemProgram     schema.AccountRef
}

// CreateAssociated creates the canonical token account of wallet for mint,
// paid by funding.
func CreateAssociated(accounts CreateAssociatedAccounts) (Descriptor, error) {
	r := required{op: OpCreateAssociated}
	metas := solana.AccountMetaSlice{
		solana.Meta(r.key("funding", accounts.Funding)).WRITE().SIGNER(),
		solana.Meta(r.key("associated", accounts.Associated)).WRITE(),
		solana.Meta(r.key("wallet", accounts.Wallet)),
		solana.Meta(r.key("mint", accounts.Mint)),
		solana.Meta(r.key("system_program", accounts.SystemProgram)),
		solana.Meta(r.key("token_program", accounts.TokenProgram)),
	}
	r.program(accounts.AssociatedProgram.Key)
	if r.err != nil {
		return Descriptor{}, r.err
	}

	return newDescriptor(OpCreateAssociated, accounts.AssociatedProgram.Key, metas,
		codec.EncodeAssociatedCreate(nil)), nil
}
