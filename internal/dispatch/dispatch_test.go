package dispatch

import (
	"context"
	"testing"

	"ammcpi/internal/authority"
	"ammcpi/internal/instruction"
	"ammcpi/internal/obs"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type call struct {
	ix       solana.Instruction
	accounts []schema.AccountRef
	seeds    [][][]byte
}

type recordingRuntime struct {
	calls []call
	err   error
}

func (r *recordingRuntime) InvokeSigned(_ context.Context, ix solana.Instruction, accounts []schema.AccountRef, seeds [][][]byte) error {
	r.calls = append(r.calls, call{ix: ix, accounts: accounts, seeds: seeds})
	return r.err
}

var ammProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

func key(b byte) schema.AccountRef {
	var k solana.PublicKey
	for i := range k {
		k[i] = b
	}
	return schema.Readonly(k)
}

func transfer(t *testing.T) (instruction.Descriptor, []schema.AccountRef) {
	t.Helper()
	accounts := instruction.TransferAccounts{
		Source:       key(1),
		Destination:  key(2),
		Owner:        key(3),
		TokenProgram: schema.Readonly(solana.TokenProgramID),
	}
	desc, err := instruction.Transfer(accounts, 10)
	require.NoError(t, err)
	return desc, []schema.AccountRef{accounts.Source, accounts.Destination, accounts.Owner, accounts.TokenProgram}
}

func TestDispatchForwardsSignerSeeds(t *testing.T) {
	rt := &recordingRuntime{}
	d, err := New(rt, obs.NewMetrics())
	require.NoError(t, err)

	signer, err := authority.NewDeriver(ammProgramID).Derive([]byte("amm authority"), 254)
	require.NoError(t, err)

	desc, accounts := transfer(t)
	require.NoError(t, d.Dispatch(context.Background(), desc, accounts, signer))

	require.Len(t, rt.calls, 1)
	assert.Equal(t, [][][]byte{{[]byte("amm authority"), {254}}}, rt.calls[0].seeds)
	assert.Equal(t, accounts, rt.calls[0].accounts)
	assert.Equal(t, solana.TokenProgramID, rt.calls[0].ix.ProgramID())
}

func TestDispatchWithoutSigner(t *testing.T) {
	rt := &recordingRuntime{}
	d, err := New(rt, nil)
	require.NoError(t, err)

	desc, accounts := transfer(t)
	require.NoError(t, d.Dispatch(context.Background(), desc, accounts, authority.Signer{}))

	require.Len(t, rt.calls, 1)
	assert.Nil(t, rt.calls[0].seeds)
}

func TestDispatchReturnsRuntimeErrorUnchanged(t *testing.T) {
	failure := errors.New("custom program error: 0x1")
	rt := &recordingRuntime{err: failure}
	metrics := obs.NewMetrics()
	d, err := New(rt, metrics)
	require.NoError(t, err)

	desc, accounts := transfer(t)
	err = d.Dispatch(context.Background(), desc, accounts, authority.Signer{})
	assert.True(t, err == failure, "runtime error must be returned as is")
	assert.Len(t, rt.calls, 1)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Ops[instruction.OpTransfer].Failures)
}

func TestDispatchMissingAccountNeverInvokes(t *testing.T) {
	rt := &recordingRuntime{}
	metrics := obs.NewMetrics()
	d, err := New(rt, metrics)
	require.NoError(t, err)

	desc, accounts := transfer(t)

	err = d.Dispatch(context.Background(), desc, accounts[:3], authority.Signer{})
	require.ErrorIs(t, err, exception.ErrDispatchMissingProgram)

	err = d.Dispatch(context.Background(), desc, []schema.AccountRef{accounts[0], accounts[2], accounts[3]}, authority.Signer{})
	require.ErrorIs(t, err, exception.ErrDispatchMissingAccount)

	err = d.Dispatch(context.Background(), instruction.Descriptor{}, accounts, authority.Signer{})
	require.ErrorIs(t, err, exception.ErrDispatchEmptyDescriptor)

	assert.Empty(t, rt.calls)
	assert.Equal(t, uint64(3), metrics.Snapshot().Rejected)
}

func TestDispatchSystemProgramMustBeResolved(t *testing.T) {
	accounts := instruction.CreateAssociatedAccounts{
		Associated:        schema.Writable(key(5).Key),
		Funding:           schema.WritableSigner(key(6).Key),
		Wallet:            key(7),
		Mint:              key(4),
		TokenProgram:      schema.Readonly(solana.TokenProgramID),
		AssociatedProgram: schema.Readonly(solana.SPLAssociatedTokenAccountProgramID),
		SystemProgram:     schema.Readonly(solana.SystemProgramID),
	}
	desc, err := instruction.CreateAssociated(accounts)
	require.NoError(t, err)

	rt := &recordingRuntime{}
	d, err := New(rt, obs.NewMetrics())
	require.NoError(t, err)

	refs := []schema.AccountRef{
		accounts.Funding, accounts.Associated, accounts.Wallet, accounts.Mint,
		{}, accounts.TokenProgram, accounts.AssociatedProgram,
	}
	err = d.Dispatch(context.Background(), desc, refs, authority.Signer{})
	require.ErrorIs(t, err, exception.ErrDispatchMissingAccount)
	assert.Empty(t, rt.calls)

	refs[4] = accounts.SystemProgram
	require.NoError(t, d.Dispatch(context.Background(), desc, refs, authority.Signer{}))
	require.Len(t, rt.calls, 1)
}

func TestDispatchCanceledContext(t *testing.T) {
	rt := &recordingRuntime{}
	d, err := New(rt, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	desc, accounts := transfer(t)
	require.ErrorIs(t, d.Dispatch(ctx, desc, accounts, authority.Signer{}), context.Canceled)
	assert.Empty(t, rt.calls)
}

func TestDispatchPreservesOrder(t *testing.T) {
	rt := &recordingRuntime{}
	d, err := New(rt, nil)
	require.NoError(t, err)

	desc, accounts := transfer(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Dispatch(context.Background(), desc, accounts, authority.Signer{}))
	}
	assert.Len(t, rt.calls, 3)
}

func TestNewRequiresRuntime(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, exception.ErrDispatchNilRuntime)
}
