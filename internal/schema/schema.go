package schema

import (
	"github.com/gagliardetto/solana-go"
)

// AccountRef is a borrowed handle to an externally managed account. The
// layer never owns or persists it; account data lives with the runtime.
//
// A handle is resolved only when built by one of the constructors below. The
// zero key is a valid account (the system program), so it never marks absence.
type AccountRef struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool

	resolved bool
}

// NewAccountRef returns a resolved handle with the given flags.
func NewAccountRef(key solana.PublicKey, isSigner, isWritable bool) AccountRef {
	return AccountRef{Key: key, IsSigner: isSigner, IsWritable: isWritable, resolved: true}
}

// Readonly returns a read-only, non-signer handle.
func Readonly(key solana.PublicKey) AccountRef {
	return NewAccountRef(key, false, false)
}

// Writable returns a writable, non-signer handle.
func Writable(key solana.PublicKey) AccountRef {
	return NewAccountRef(key, false, true)
}

// Signer returns a handle whose key signed the enclosing transaction.
func Signer(key solana.PublicKey) AccountRef {
	return NewAccountRef(key, true, false)
}

// WritableSigner returns a signer handle the callee may also debit.
func WritableSigner(key solana.PublicKey) AccountRef {
	return NewAccountRef(key, true, true)
}

// IsZero reports whether the handle was never resolved.
func (a AccountRef) IsZero() bool {
	return !a.resolved
}

func (a AccountRef) String() string {
	return a.Key.String()
}
