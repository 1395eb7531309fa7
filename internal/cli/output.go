package cli

import (
	"fmt"
	"io"
	"sort"

	"ammcpi/internal/obs"
	"ammcpi/internal/scenario"
	"ammcpi/internal/schema"

	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
)

type printer struct {
	w        io.Writer
	registry *schema.Registry
	verbose  bool
}

// result prints one step and the invocations it executed.
func (p printer) result(res scenario.Result) {
	status := "ok"
	switch {
	case res.Err != nil && res.Step.ExpectFailure:
		status = "failed as expected"
	case res.Err != nil:
		status = "FAILED"
	case res.Step.ExpectFailure:
		status = "UNEXPECTED OK"
	}
	fmt.Fprintf(p.w, "%s: %s (%s)\n", res.Step, status, res.Elapsed)
	if res.Err != nil {
		fmt.Fprintf(p.w, "  err: %v\n", res.Err)
	}

	for _, inv := range res.Invocations {
		fmt.Fprintf(p.w, "  program %s data %s\n", p.registry.Name(inv.Program), base58.Encode(inv.Data))
		if !p.verbose {
			continue
		}
		for _, a := range inv.Accounts {
			fmt.Fprintln(p.w, accountLine(a, p.registry.Name(a.Key)))
		}
	}
}

// accountLine renders an account as "    ws name", with '-' for a flag not
// set.
func accountLine(a schema.AccountRef, name string) string {
	flags := []byte("--")
	if a.IsWritable {
		flags[0] = 'w'
	}
	if a.IsSigner {
		flags[1] = 's'
	}
	return fmt.Sprintf("    %s %s", flags, name)
}

// printMetrics gathers the invocation metrics through a Prometheus registry
// and prints one line per sample.
func printMetrics(w io.Writer, metrics *obs.Metrics) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(obs.NewCollector(metrics)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	var lines []string
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			labels := ""
			for _, l := range m.GetLabel() {
				labels += fmt.Sprintf("{%s=%q}", l.GetName(), l.GetValue())
			}
			switch fam.GetType().String() {
			case "SUMMARY":
				s := m.GetSummary()
				lines = append(lines, fmt.Sprintf("%s_count%s %d", fam.GetName(), labels, s.GetSampleCount()))
				lines = append(lines, fmt.Sprintf("%s_sum%s %g", fam.GetName(), labels, s.GetSampleSum()))
			default:
				lines = append(lines, fmt.Sprintf("%s%s %g", fam.GetName(), labels, m.GetCounter().GetValue()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
