package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"ammcpi/internal/codec"
	"ammcpi/pkg/exception"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ammProgram = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ammcpi", cmd.Use)

	for _, name := range []string{"derive", "simulate", "journal"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)
}

func TestSimulateFlags(t *testing.T) {
	cmd := NewRootCommand()
	sim, _, err := cmd.Find([]string{"simulate"})
	require.NoError(t, err)

	config := sim.Flags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)
	assert.Equal(t, "", config.DefValue)
	assert.NotNil(t, sim.Flags().Lookup("metrics"))
	assert.NotNil(t, sim.Flags().Lookup("journal"))
	assert.NotNil(t, sim.Flags().Lookup("pyroscope"))

	_, err = execute(t, "simulate")
	assert.Error(t, err)
}

func TestDerive(t *testing.T) {
	out, err := execute(t, "derive", "--program", ammProgram, "--seed", "amm authority", "--nonce", "254")
	require.NoError(t, err)
	assert.Contains(t, out, "address: 5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
	assert.Contains(t, out, "nonce:   254")

	canonical, err := execute(t, "derive", "--program", ammProgram, "--seed", "amm authority")
	require.NoError(t, err)
	assert.Equal(t, out, canonical)
}

func TestDeriveRejects(t *testing.T) {
	_, err := execute(t, "derive", "--program", ammProgram, "--seed", "amm authority", "--nonce", "255")
	assert.Error(t, err)

	_, err = execute(t, "derive", "--program", ammProgram, "--seed", "amm authority", "--nonce", "256")
	assert.ErrorIs(t, err, exception.ErrConfigInvalidValue)

	_, err = execute(t, "derive", "--program", "nope", "--seed", "amm authority")
	assert.ErrorIs(t, err, exception.ErrConfigInvalidKey)

	_, err = execute(t, "derive", "--seed", "amm authority")
	assert.Error(t, err)
}

func TestSimulateAndJournal(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "run.journal")
	out, err := execute(t, "simulate", "-c", "testdata/simulate.yaml", "--metrics", "--journal", journal)
	require.NoError(t, err)

	assert.Contains(t, out, "#1 transfer: ok")
	assert.Contains(t, out, "#3 transfer: failed as expected")
	assert.Contains(t, out, "#13 close_open_orders: ok")
	assert.Contains(t, out, "13/13 steps")
	assert.Contains(t, out, "data "+base58.Encode(codec.EncodeTokenAmount(nil, codec.TokenTagTransfer, 100)))
	assert.Contains(t, out, `ammcpi_invocations_total{op="transfer"} 3`)
	assert.Contains(t, out, `ammcpi_invocation_failures_total{op="transfer"} 1`)
	assert.Contains(t, out, `ammcpi_invocation_duration_seconds_count{op="new_order"} 2`)

	printed, err := execute(t, "journal", journal)
	require.NoError(t, err)
	assert.Contains(t, printed, "13 records, 1 failed")
	assert.Contains(t, printed, "transfer failed signed")

	verbose, err := execute(t, "-v", "journal", journal)
	require.NoError(t, err)
	assert.Contains(t, verbose, "    -s ")
	assert.Contains(t, verbose, "    w- ")
}

func TestSimulateVerboseNamesAccounts(t *testing.T) {
	out, err := execute(t, "-v", "simulate", "-c", "testdata/simulate.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "    w- user_coin")
	assert.Contains(t, out, "    -s user")
	assert.Contains(t, out, "    -- authority")
	assert.Contains(t, out, "    w- coin_pc/bids")
}

func TestSimulateStopsOnUnexpectedOutcome(t *testing.T) {
	data, err := os.ReadFile("testdata/simulate.yaml")
	require.NoError(t, err)
	config := filepath.Join(t.TempDir(), "strict.yaml")
	require.NoError(t, os.WriteFile(config, bytes.Replace(data, []byte(", expect: fail"), nil, 1), 0o644))

	out, err := execute(t, "simulate", "-c", config)
	assert.ErrorIs(t, err, exception.ErrScenarioUnexpectedFailure)
	assert.Contains(t, out, "#3 transfer: FAILED")
	assert.Contains(t, out, "3/13 steps")
}

func TestJournalRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.journal")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{1}, 80), 0o644))

	_, err := execute(t, "journal", path)
	assert.ErrorIs(t, err, exception.ErrJournalInvalidMagic)

	_, err = execute(t, "journal", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
