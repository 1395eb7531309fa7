package cli

import (
	"context"
	"fmt"

	"ammcpi/internal/dispatch"
	"ammcpi/internal/obs"
	"ammcpi/internal/ops"
	"ammcpi/internal/recorder"
	"ammcpi/internal/runtime"
	"ammcpi/internal/scenario"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

type simulateOptions struct {
	config    string
	metrics   bool
	journal   string
	pyroscope string
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario against the in-memory runtime",
		Long: `Build the mints, wallets and markets of a YAML config and run its steps
through the custody and order-book invokers, one enclosing transaction per
step. The run stops at the first step whose outcome differs from its
expectation.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "scenario config (YAML)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print invocation metrics after the run")
	cmd.Flags().StringVar(&opts.journal, "journal", "", "write an invocation journal to this file")
	cmd.Flags().StringVar(&opts.pyroscope, "pyroscope", "", "pyroscope server address (disabled when empty)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSimulate(cmd *cobra.Command, rootOpts *RootOptions, opts *simulateOptions) (err error) {
	loaded, err := ops.Load(opts.config)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logs.Infof("simulate %s: %d steps from %s, authority %s", runID, len(loaded.Steps), opts.config, loaded.Signer.Address())

	if opts.pyroscope != "" {
		stop, err := startProfiler(opts.pyroscope, runID)
		if err != nil {
			return err
		}
		defer stop()
	}

	rt := runtime.New(loaded.Runtime)
	var inner dispatch.Runtime = rt
	if opts.journal != "" {
		var w *recorder.Writer
		if w, err = recorder.Open(opts.journal); err != nil {
			return err
		}
		defer func() {
			if cerr := w.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		inner = recorder.Wrap(rt, w)
	}

	metrics := obs.NewMetrics()
	d, err := dispatch.New(inner, metrics)
	if err != nil {
		return err
	}
	runner, err := scenario.New(rt, d, loaded.Signer)
	if err != nil {
		return err
	}
	if err := runner.Setup(loaded); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Info("shutdown requested, stopping after the current step")
			cancel()
		case <-ctx.Done():
		}
	}()

	out := cmd.OutOrStdout()
	p := printer{w: out, registry: loaded.Registry, verbose: rootOpts.Verbose}
	results, runErr := runner.Run(ctx, loaded.Steps, p.result)

	if opts.metrics {
		if err := printMetrics(out, metrics); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "run %s: %d/%d steps\n", runID, len(results), len(loaded.Steps))
	if runErr != nil {
		logs.Errorf("simulate %s stopped, err: %+v", runID, runErr)
		return runErr
	}
	logs.Infof("simulate %s done", runID)
	return nil
}
