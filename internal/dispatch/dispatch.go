// Package dispatch hands fully formed descriptors to the enclosing runtime.
// It is the only path by which the layer affects external programs.
package dispatch

import (
	"context"
	"time"

	"ammcpi/internal/authority"
	"ammcpi/internal/errors"
	"ammcpi/internal/instruction"
	"ammcpi/internal/obs"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
	"github.com/yanun0323/logs"
)

// Runtime is the enclosing runtime's single cross-program call. signerSeeds
// holds one seed set per program-derived signer; the runtime re-derives each
// and treats the result as having signed.
type Runtime interface {
	InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []schema.AccountRef, signerSeeds [][][]byte) error
}

// Dispatcher issues one invocation per call, in the order calls are made.
type Dispatcher struct {
	runtime Runtime
	metrics *obs.Metrics
}

// New creates a dispatcher. metrics may be nil.
func New(runtime Runtime, metrics *obs.Metrics) (*Dispatcher, error) {
	if runtime == nil {
		return nil, exception.ErrDispatchNilRuntime
	}
	return &Dispatcher{runtime: runtime, metrics: metrics}, nil
}

// Dispatch invokes desc with accounts, signing with signer when it is not
// zero. Caller-side failures are returned before the runtime is reached;
// runtime failures are returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, desc instruction.Descriptor, accounts []schema.AccountRef, signer authority.Signer) error {
	if err := check(desc, accounts); err != nil {
		d.metrics.IncRejected()
		return err
	}
	if err := ctx.Err(); err != nil {
		d.metrics.IncRejected()
		return err
	}

	var seeds [][][]byte
	if !signer.IsZero() {
		seeds = [][][]byte{signer.SignerSeeds()}
	}

	seq := d.metrics.NextSeq()
	start := time.Now()
	err := d.runtime.InvokeSigned(ctx, desc, accounts, seeds)
	d.metrics.ObserveInvocation(desc.Op(), time.Since(start), err != nil)
	if err != nil {
		logs.Errorf("invoke %s #%d on program %s, err: %+v", desc.Op(), seq, desc.ProgramID(), err)
		return err
	}

	return nil
}

func check(desc instruction.Descriptor, accounts []schema.AccountRef) error {
	if desc.IsZero() {
		return exception.ErrDispatchEmptyDescriptor
	}

	supplied := make(map[solana.PublicKey]struct{}, len(accounts))
	for _, a := range accounts {
		if a.IsZero() {
			continue
		}
		supplied[a.Key] = struct{}{}
	}

	if _, ok := supplied[desc.ProgramID()]; !ok {
		return errors.Wrapf(exception.ErrDispatchMissingProgram, "op: %s, program: %s", desc.Op(), desc.ProgramID())
	}
	for i, key := range desc.Keys() {
		if _, ok := supplied[key]; !ok {
			return errors.Wrapf(exception.ErrDispatchMissingAccount, "op: %s, index: %d, key: %s", desc.Op(), i, key)
		}
	}

	return nil
}
