package obs

import (
	"strings"
	"testing"
	"time"

	"ammcpi/internal/instruction"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorExportsCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveInvocation(instruction.OpNewOrder, time.Millisecond, false)
	m.ObserveInvocation(instruction.OpNewOrder, time.Millisecond, true)
	m.ObserveInvocation(instruction.OpTransfer, time.Millisecond, false)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(m)))

	expected := `
# HELP ammcpi_invocation_failures_total Invocations the runtime rejected.
# TYPE ammcpi_invocation_failures_total counter
ammcpi_invocation_failures_total{op="new_order"} 1
ammcpi_invocation_failures_total{op="transfer"} 0
# HELP ammcpi_invocations_total Cross-program invocations handed to the runtime.
# TYPE ammcpi_invocations_total counter
ammcpi_invocations_total{op="new_order"} 2
ammcpi_invocations_total{op="transfer"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"ammcpi_invocations_total", "ammcpi_invocation_failures_total")
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "ammcpi_invocation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
