package cli

import (
	"fmt"
	"io"
	"os"

	"ammcpi/internal/errors"
	"ammcpi/internal/recorder"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
)

type journalOptions struct {
	skipChecksum bool
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &journalOptions{}

	cmd := &cobra.Command{
		Use:           "journal <file>",
		Short:         "Print an invocation journal written by simulate",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.skipChecksum, "skip-checksum", false, "do not verify record checksums")

	return cmd
}

func runJournal(cmd *cobra.Command, rootOpts *RootOptions, opts *journalOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	r := recorder.NewReader(f, recorder.ReaderOptions{DisableChecksum: opts.skipChecksum})
	var total, failed int
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "record %d", total+1)
		}

		total++
		status := "ok"
		if rec.Failed {
			failed++
			status = "failed"
		}
		signed := ""
		if rec.Signed {
			signed = " signed"
		}
		fmt.Fprintf(out, "#%d %s %s %s%s program %s data %s\n",
			rec.Seq, rec.Time.Format("15:04:05.000000"), rec.Op, status, signed, rec.Program, base58.Encode(rec.Data))
		if rootOpts.Verbose {
			for _, a := range rec.Accounts {
				fmt.Fprintln(out, accountLine(a, a.Key.String()))
			}
		}
	}

	fmt.Fprintf(out, "%d records, %d failed\n", total, failed)
	return nil
}
