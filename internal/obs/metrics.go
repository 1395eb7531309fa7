package obs

import (
	"sync/atomic"
	"time"

	"ammcpi/internal/instruction"
)

const maxOp = int(instruction.OpSettleFunds)

// Metrics collects lightweight per-operation counters and latency stats.
type Metrics struct {
	invocations [maxOp + 1]uint64
	failures    [maxOp + 1]uint64
	rejected    uint64
	latency     [maxOp + 1]LatencyStats
	seq         uint64
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	// minimum plus one; zero until the first sample
	min uint64
	max uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// OpSnapshot is the point-in-time view of one operation.
type OpSnapshot struct {
	Invocations uint64
	Failures    uint64
	Latency     LatencySnapshot
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Ops map[instruction.Op]OpSnapshot
	// Rejected counts dispatches refused before reaching the runtime.
	Rejected uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// NextSeq returns the next invocation sequence number, starting at 1.
func (m *Metrics) NextSeq() uint64 {
	if m == nil {
		return 0
	}
	return atomic.AddUint64(&m.seq, 1)
}

// ObserveInvocation records one runtime invocation of op.
func (m *Metrics) ObserveInvocation(op instruction.Op, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	idx := int(op)
	if idx <= 0 || idx >= len(m.invocations) {
		return
	}
	atomic.AddUint64(&m.invocations[idx], 1)
	if failed {
		atomic.AddUint64(&m.failures[idx], 1)
	}
	m.latency[idx].Observe(d)
}

// IncRejected records a dispatch refused before invocation.
func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rejected, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	ops := make(map[instruction.Op]OpSnapshot)
	for i := 1; i < len(m.invocations); i++ {
		n := atomic.LoadUint64(&m.invocations[i])
		if n == 0 {
			continue
		}
		ops[instruction.Op(i)] = OpSnapshot{
			Invocations: n,
			Failures:    atomic.LoadUint64(&m.failures[i]),
			Latency:     m.latency[i].Snapshot(),
		}
	}
	return Snapshot{
		Ops:      ops,
		Rejected: atomic.LoadUint64(&m.rejected),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		low := atomic.LoadUint64(&l.min)
		if low != 0 && nanos+1 >= low {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, low, nanos+1) {
			break
		}
	}

	for {
		high := atomic.LoadUint64(&l.max)
		if nanos <= high {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, high, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	var low time.Duration
	if v := atomic.LoadUint64(&l.min); v != 0 {
		low = time.Duration(v - 1)
	}
	return LatencySnapshot{
		Count: count,
		Sum:   time.Duration(sum),
		Min:   low,
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(sum / count),
	}
}
