package instruction

import (
	"bytes"

	"ammcpi/internal/errors"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

// Descriptor is a fully formed, protocol-exact request to another program.
// It is immutable once built and consumed by exactly one dispatch.
type Descriptor struct {
	op      Op
	program solana.PublicKey
	metas   solana.AccountMetaSlice
	payload []byte
}

var _ solana.Instruction = Descriptor{}

func (d Descriptor) Op() Op {
	return d.op
}

func (d Descriptor) IsZero() bool {
	return !d.op.IsAvailable() || d.program.IsZero()
}

// ProgramID implements solana.Instruction.
func (d Descriptor) ProgramID() solana.PublicKey {
	return d.program
}

// Accounts implements solana.Instruction. The returned metas are copies.
func (d Descriptor) Accounts() []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, len(d.metas))
	for i, m := range d.metas {
		cp := *m
		out[i] = &cp
	}
	return out
}

// Data implements solana.Instruction.
func (d Descriptor) Data() ([]byte, error) {
	if d.IsZero() {
		return nil, exception.ErrDispatchEmptyDescriptor
	}
	return bytes.Clone(d.payload), nil
}

// Keys returns the meta keys in order.
func (d Descriptor) Keys() []solana.PublicKey {
	out := make([]solana.PublicKey, len(d.metas))
	for i, m := range d.metas {
		out[i] = m.PublicKey
	}
	return out
}

func newDescriptor(op Op, program solana.PublicKey, metas solana.AccountMetaSlice, payload []byte) Descriptor {
	return Descriptor{op: op, program: program, metas: metas, payload: payload}
}

// required checks that every named account was supplied.
type required struct {
	op  Op
	err error
}

func (r *required) key(name string, ref schema.AccountRef) solana.PublicKey {
	if r.err == nil && ref.IsZero() {
		r.err = errors.Wrapf(exception.ErrInstructionMissingAccount, "op: %s, account: %s", r.op, name)
	}
	return ref.Key
}

func (r *required) program(program solana.PublicKey) {
	if r.err == nil && program.IsZero() {
		r.err = errors.Wrapf(exception.ErrInstructionMissingAccount, "op: %s, account: program", r.op)
	}
}
