package cli

import (
	"fmt"

	"ammcpi/internal/authority"
	"ammcpi/internal/errors"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

type deriveOptions struct {
	program string
	seed    string
	nonce   int
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(_ *RootOptions) *cobra.Command {
	opts := &deriveOptions{}

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the pool authority address",
		Long: `Derive the program-derived authority for a seed under a program id.
Without --nonce the canonical bump is searched from 255 down.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.program, "program", "", "program id (base58)")
	cmd.Flags().StringVar(&opts.seed, "seed", "", "authority seed")
	cmd.Flags().IntVar(&opts.nonce, "nonce", -1, "bump nonce, 0-255 (default: canonical)")
	_ = cmd.MarkFlagRequired("program")
	_ = cmd.MarkFlagRequired("seed")

	return cmd
}

func runDerive(cmd *cobra.Command, opts *deriveOptions) error {
	program, err := solana.PublicKeyFromBase58(opts.program)
	if err != nil {
		return errors.Wrapf(exception.ErrConfigInvalidKey, "program: %q, cause: %v", opts.program, err)
	}
	if opts.nonce > 255 || opts.nonce < -1 {
		return errors.Wrapf(exception.ErrConfigInvalidValue, "nonce: %d", opts.nonce)
	}

	d := authority.NewDeriver(program)
	var signer authority.Signer
	if opts.nonce < 0 {
		signer, err = d.Find([]byte(opts.seed))
	} else {
		signer, err = d.Derive([]byte(opts.seed), uint8(opts.nonce))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "address: %s\n", signer.Address())
	fmt.Fprintf(out, "nonce:   %d\n", signer.Nonce())
	return nil
}
