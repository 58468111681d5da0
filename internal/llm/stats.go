package llm

import (
	"slices"
	"sync"
	"time"
)

// Latency aggregates the samples of one operation.
type Latency struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Snapshot is the per-operation view of Stats. The "all" key covers every
// sample.
type Snapshot struct {
	WindowSeconds int64              `json:"window_seconds"`
	Operations    map[string]Latency `json:"operations"`
}

type sample struct {
	at time.Time
	op string
	ms int64
}

// Stats keeps model call latencies for a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{samples: make([]sample, 0, 256), window: window, now: time.Now}
}

// Record adds one call of op that took ms milliseconds.
func (s *Stats) Record(op string, ms int64) {
	if op == "" {
		op = "other"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, op: op, ms: max(ms, 0)})
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())

	byOp := map[string][]int64{}
	for _, sm := range s.samples {
		byOp[sm.op] = append(byOp[sm.op], sm.ms)
		byOp["all"] = append(byOp["all"], sm.ms)
	}
	out := Snapshot{WindowSeconds: int64(s.window / time.Second), Operations: make(map[string]Latency, len(byOp))}
	for op, values := range byOp {
		out.Operations[op] = summarize(values)
	}
	return out
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

func summarize(values []int64) Latency {
	if len(values) == 0 {
		return Latency{}
	}
	slices.Sort(values)
	var sum int64
	for _, v := range values {
		sum += v
	}
	return Latency{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	w := rank - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1])-float64(sorted[lo]))*w
}
