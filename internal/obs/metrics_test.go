package obs

import (
	"testing"
	"time"

	"ammcpi/internal/instruction"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveInvocation(instruction.OpTransfer, 2*time.Millisecond, false)
	m.ObserveInvocation(instruction.OpTransfer, 4*time.Millisecond, true)
	m.ObserveInvocation(instruction.OpSettleFunds, time.Millisecond, false)
	m.ObserveInvocation(instruction.Op(0), time.Millisecond, true)
	m.IncRejected()

	snap := m.Snapshot()
	if len(snap.Ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(snap.Ops))
	}
	transfer := snap.Ops[instruction.OpTransfer]
	if transfer.Invocations != 2 || transfer.Failures != 1 {
		t.Fatalf("unexpected transfer counters: %+v", transfer)
	}
	if transfer.Latency.Min != 2*time.Millisecond || transfer.Latency.Max != 4*time.Millisecond {
		t.Fatalf("unexpected latency bounds: %+v", transfer.Latency)
	}
	if transfer.Latency.Avg != 3*time.Millisecond {
		t.Fatalf("unexpected avg: %v", transfer.Latency.Avg)
	}
	if snap.Rejected != 1 {
		t.Fatalf("expected 1 rejected, got %d", snap.Rejected)
	}
}

func TestLatencyKeepsZeroMinimum(t *testing.T) {
	var l LatencyStats
	l.Observe(0)
	l.Observe(5 * time.Microsecond)
	l.Observe(-time.Second)

	snap := l.Snapshot()
	if snap.Count != 2 {
		t.Fatalf("expected 2 samples, got %d", snap.Count)
	}
	if snap.Min != 0 || snap.Max != 5*time.Microsecond {
		t.Fatalf("unexpected latency bounds: %+v", snap)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.ObserveInvocation(instruction.OpBurn, time.Millisecond, false)
	m.IncRejected()
	if m.NextSeq() != 0 {
		t.Fatalf("nil metrics should not sequence")
	}
	if snap := m.Snapshot(); snap.Ops != nil {
		t.Fatalf("expected empty snapshot")
	}
}

func TestNextSeqIsMonotonic(t *testing.T) {
	m := NewMetrics()
	prev := uint64(0)
	for i := 0; i < 5; i++ {
		next := m.NextSeq()
		if next != prev+1 {
			t.Fatalf("expected %d, got %d", prev+1, next)
		}
		prev = next
	}
}
