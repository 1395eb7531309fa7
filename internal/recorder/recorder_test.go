package recorder

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ammcpi/internal/codec"
	"ammcpi/internal/custody"
	"ammcpi/internal/dispatch"
	"ammcpi/internal/instruction"
	"ammcpi/internal/runtime/runtimetest"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(seq uint64) Record {
	return Record{
		Seq:     seq,
		Time:    time.Unix(1_700_000_000, int64(seq)).UTC(),
		Op:      instruction.OpNewOrder,
		Signed:  true,
		Program: runtimetest.Key("program"),
		Accounts: []schema.AccountRef{
			schema.Readonly(runtimetest.Key("a")),
			schema.Writable(runtimetest.Key("b")),
			schema.Signer(runtimetest.Key("c")),
			schema.WritableSigner(runtimetest.Key("d")),
		},
		Data: []byte{0, 10, 0, 0, 0, byte(seq)},
	}
}

func encode(t *testing.T, records ...Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, r := range records {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	failed := sample(2)
	failed.Failed = true
	failed.Signed = false
	failed.Op = 0

	records := []Record{sample(1), failed, sample(3)}
	data := encode(t, records...)
	assert.Len(t, data, 3*sample(1).size())

	got, err := ReadAll(bytes.NewReader(data), ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestEmptyJournal(t *testing.T) {
	got, err := ReadAll(bytes.NewReader(nil), ReaderOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)

	r := sample(1)
	r.Accounts = nil
	r.Data = nil
	rec, err := NewReader(bytes.NewReader(encode(t, r)), ReaderOptions{}).Next()
	require.NoError(t, err)
	assert.Empty(t, rec.Accounts)
	assert.Empty(t, rec.Data)
}

func TestReaderRejects(t *testing.T) {
	data := encode(t, sample(1))

	corrupt := bytes.Clone(data)
	corrupt[recordHeaderSize+3] ^= 0xff
	_, err := NewReader(bytes.NewReader(corrupt), ReaderOptions{}).Next()
	assert.ErrorIs(t, err, exception.ErrJournalChecksumMismatch)

	_, err = NewReader(bytes.NewReader(corrupt), ReaderOptions{DisableChecksum: true}).Next()
	assert.NoError(t, err)

	magic := bytes.Clone(data)
	magic[0] = 'X'
	_, err = NewReader(bytes.NewReader(magic), ReaderOptions{}).Next()
	assert.ErrorIs(t, err, exception.ErrJournalInvalidMagic)

	version := bytes.Clone(data)
	version[4] = 9
	_, err = NewReader(bytes.NewReader(version), ReaderOptions{}).Next()
	assert.ErrorIs(t, err, exception.ErrJournalUnsupportedVersion)

	_, err = NewReader(bytes.NewReader(data[:len(data)-1]), ReaderOptions{}).Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewReader(bytes.NewReader(data[:10]), ReaderOptions{}).Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewReader(bytes.NewReader(data), ReaderOptions{MaxDataSize: 2}).Next()
	assert.ErrorIs(t, err, exception.ErrJournalRecordTooLarge)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, os.ErrPermission
}

func TestWriterErrorIsSticky(t *testing.T) {
	w := NewWriter(failingWriter{})
	require.NoError(t, w.Append(sample(1)))
	assert.ErrorIs(t, w.Flush(), os.ErrPermission)
	assert.ErrorIs(t, w.Append(sample(2)), os.ErrPermission)
	assert.ErrorIs(t, w.Err(), os.ErrPermission)
	assert.ErrorIs(t, w.Close(), os.ErrPermission)
}

func TestAppendAfterClose(t *testing.T) {
	w := NewWriter(io.Discard)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Append(sample(1)), exception.ErrJournalClosed)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.journal")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sample(1)))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadAll(f, ReaderOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sample(1), got[0])
}

func TestWrapJournalsInvocations(t *testing.T) {
	world := runtimetest.NewWorld(t)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	journal := Wrap(world.Runtime, w)
	d, err := dispatch.New(journal, nil)
	require.NoError(t, err)
	inv, err := custody.New(d)
	require.NoError(t, err)

	accounts := instruction.TransferAccounts{
		Source:       schema.Writable(world.AuthCoin),
		Destination:  schema.Writable(world.UserCoin),
		Owner:        world.AuthorityRef(),
		TokenProgram: world.TokenProgram(),
	}
	require.NoError(t, inv.TransferWithAuthority(t.Context(), accounts, world.Signer, 7))
	assert.ErrorIs(t, inv.TransferWithAuthority(t.Context(), accounts, world.Signer, runtimetest.StartingCoin),
		exception.ErrTokenInsufficientFunds)
	require.NoError(t, w.Close())

	got, err := ReadAll(&buf, ReaderOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	ok, failed := got[0], got[1]
	assert.Equal(t, uint64(1), ok.Seq)
	assert.Equal(t, instruction.OpTransfer, ok.Op)
	assert.True(t, ok.Signed)
	assert.False(t, ok.Failed)
	assert.Equal(t, world.Runtime.Config().TokenProgram, ok.Program)
	assert.Equal(t, []schema.AccountRef{accounts.Source, accounts.Destination, accounts.Owner, accounts.TokenProgram}, ok.Accounts)
	assert.Equal(t, codec.EncodeTokenAmount(nil, codec.TokenTagTransfer, 7), ok.Data)

	assert.Equal(t, uint64(2), failed.Seq)
	assert.True(t, failed.Failed)

	history := world.Runtime.Invocations()
	require.Len(t, history, 2)
	assert.Equal(t, history[1].Data, ok.Data)
	assert.Equal(t, history[1].Accounts, ok.Accounts)
}

func TestJournalFailureKeepsResult(t *testing.T) {
	world := runtimetest.NewWorld(t)

	w := NewWriter(io.Discard)
	require.NoError(t, w.Close())
	d, err := dispatch.New(Wrap(world.Runtime, w), nil)
	require.NoError(t, err)
	inv, err := custody.New(d)
	require.NoError(t, err)

	accounts := instruction.TransferAccounts{
		Source:       schema.Writable(world.AuthCoin),
		Destination:  schema.Writable(world.UserCoin),
		Owner:        world.AuthorityRef(),
		TokenProgram: world.TokenProgram(),
	}
	require.NoError(t, inv.TransferWithAuthority(t.Context(), accounts, world.Signer, 1))
	require.NoError(t, inv.TransferWithAuthority(t.Context(), accounts, world.Signer, 1))
	assert.Equal(t, uint64(runtimetest.StartingCoin-2), world.Runtime.Balance(world.AuthCoin))
}
