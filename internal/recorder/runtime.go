package recorder

import (
	"context"
	"sync"
	"time"

	"ammcpi/internal/dispatch"
	"ammcpi/internal/instruction"
	"ammcpi/internal/schema"

	"github.com/gagliardetto/solana-go"
	"github.com/yanun0323/logs"
)

var _ dispatch.Runtime = (*Runtime)(nil)

// Runtime journals every invocation passed to the wrapped runtime. A journal
// failure is logged once and never changes the invocation result.
type Runtime struct {
	next dispatch.Runtime
	w    *Writer
	now  func() time.Time

	mu     sync.Mutex
	seq    uint64
	logged bool
}

// Wrap records invocations of next to w.
func Wrap(next dispatch.Runtime, w *Writer) *Runtime {
	return &Runtime{next: next, w: w, now: time.Now}
}

func (r *Runtime) InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []schema.AccountRef, signerSeeds [][][]byte) error {
	err := r.next.InvokeSigned(ctx, ix, accounts, signerSeeds)

	rec := Record{
		Time:     r.now().UTC(),
		Failed:   err != nil,
		Signed:   len(signerSeeds) > 0,
		Program:  ix.ProgramID(),
		Accounts: accounts,
	}
	if desc, ok := ix.(instruction.Descriptor); ok {
		rec.Op = desc.Op()
	}
	if data, derr := ix.Data(); derr == nil {
		rec.Data = data
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rec.Seq = r.seq
	if jerr := r.w.Append(rec); jerr != nil && !r.logged {
		r.logged = true
		logs.Errorf("journal invocation #%d on program %s, err: %+v", rec.Seq, rec.Program, jerr)
	}
	return err
}
