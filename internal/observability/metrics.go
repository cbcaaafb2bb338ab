package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Solve outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Metrics holds the counters and timings of landmark analysis runs.
// A single instance may be shared by several runners.
type Metrics struct {
	tasksInstantiated    *Counter
	solveDuration        *Histogram
	solveOutcomes        *CounterVec
	intersectionDuration *Histogram
	storeDuration        *HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics() *Metrics {
	return &Metrics{
		tasksInstantiated:    NewCounter(),
		solveDuration:        NewHistogram(),
		solveOutcomes:        NewCounterVec(),
		intersectionDuration: NewHistogram(),
		storeDuration:        NewHistogramVec(),
	}
}

func (m *Metrics) TasksInstantiated() *Counter      { return m.tasksInstantiated }
func (m *Metrics) SolveDuration() *Histogram        { return m.solveDuration }
func (m *Metrics) SolveOutcomes() *CounterVec       { return m.solveOutcomes }
func (m *Metrics) IntersectionDuration() *Histogram { return m.intersectionDuration }
func (m *Metrics) StoreDuration() *HistogramVec     { return m.storeDuration }

// ObserveSolve records one solver call and its outcome label.
func (m *Metrics) ObserveSolve(d time.Duration, outcome string) {
	m.solveDuration.Observe(d)
	m.solveOutcomes.WithLabels(outcome).Inc()
}

// Snapshot returns a snapshot of all metrics for reporting.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		TasksInstantiated:    m.tasksInstantiated.Get(),
		SolveDuration:        m.solveDuration.Snapshot(),
		SolveOutcomes:        m.solveOutcomes.Snapshot(),
		IntersectionDuration: m.intersectionDuration.Snapshot(),
		StoreDuration:        m.storeDuration.Snapshot(),
	}
}

// MetricsSnapshot holds a point-in-time snapshot of all metrics.
type MetricsSnapshot struct {
	TasksInstantiated    int64                        `json:"tasks_instantiated"`
	SolveDuration        HistogramSnapshot            `json:"solve_duration"`
	SolveOutcomes        map[string]int64             `json:"solve_outcomes"`
	IntersectionDuration HistogramSnapshot            `json:"intersection_duration"`
	StoreDuration        map[string]HistogramSnapshot `json:"store_duration"`
}

// Histogram tracks the distribution of duration measurements.
// Thread-safe for concurrent observations.
type Histogram struct {
	mu     sync.RWMutex
	values []float64 // microseconds
}

// NewHistogram creates a new histogram.
func NewHistogram() *Histogram {
	return &Histogram{
		values: make([]float64, 0, 64),
	}
}

// Observe records a duration measurement.
func (h *Histogram) Observe(d time.Duration) {
	micros := float64(d.Microseconds())
	h.mu.Lock()
	h.values = append(h.values, micros)
	h.mu.Unlock()
}

// Since records the time elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.Observe(time.Since(start))
}

// Snapshot returns a point-in-time snapshot with percentiles calculated.
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.RLock()
	sorted := make([]float64, len(h.values))
	copy(sorted, h.values)
	h.mu.RUnlock()

	if len(sorted) == 0 {
		return HistogramSnapshot{}
	}
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	return HistogramSnapshot{
		Count: len(sorted),
		Mean:  micros(mean),
		P50:   micros(percentile(sorted, 0.50)),
		P95:   micros(percentile(sorted, 0.95)),
		Max:   micros(sorted[len(sorted)-1]),
	}
}

func micros(v float64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// HistogramSnapshot holds calculated statistics for a histogram.
type HistogramSnapshot struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
}

// percentile interpolates the p-th percentile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// HistogramVec is a collection of histograms keyed by label.
type HistogramVec struct {
	mu         sync.RWMutex
	histograms map[string]*Histogram
}

// NewHistogramVec creates a new histogram vector.
func NewHistogramVec() *HistogramVec {
	return &HistogramVec{histograms: make(map[string]*Histogram)}
}

// WithLabels returns the histogram for labels, creating it on first use.
func (hv *HistogramVec) WithLabels(labels string) *Histogram {
	hv.mu.RLock()
	h, ok := hv.histograms[labels]
	hv.mu.RUnlock()
	if ok {
		return h
	}

	hv.mu.Lock()
	defer hv.mu.Unlock()
	if h, ok := hv.histograms[labels]; ok {
		return h
	}
	h = NewHistogram()
	hv.histograms[labels] = h
	return h
}

// Snapshot returns snapshots of all histograms.
func (hv *HistogramVec) Snapshot() map[string]HistogramSnapshot {
	hv.mu.RLock()
	defer hv.mu.RUnlock()

	snapshot := make(map[string]HistogramSnapshot, len(hv.histograms))
	for label, h := range hv.histograms {
		snapshot[label] = h.Snapshot()
	}
	return snapshot
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value int64
}

// NewCounter creates a new counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Get returns the current value.
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.value)
}

// CounterVec is a collection of counters keyed by label.
type CounterVec struct {
	mu       sync.RWMutex
	counters map[string]*Counter
}

// NewCounterVec creates a new counter vector.
func NewCounterVec() *CounterVec {
	return &CounterVec{counters: make(map[string]*Counter)}
}

// WithLabels returns the counter for labels, creating it on first use.
func (cv *CounterVec) WithLabels(labels string) *Counter {
	cv.mu.RLock()
	c, ok := cv.counters[labels]
	cv.mu.RUnlock()
	if ok {
		return c
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	if c, ok := cv.counters[labels]; ok {
		return c
	}
	c = NewCounter()
	cv.counters[labels] = c
	return c
}

// Snapshot returns the current values of all counters.
func (cv *CounterVec) Snapshot() map[string]int64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()

	snapshot := make(map[string]int64, len(cv.counters))
	for label, c := range cv.counters {
		snapshot[label] = c.Get()
	}
	return snapshot
}

// ServeHTTP writes the snapshot as JSON when asked for it, text otherwise.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" || r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(m.Snapshot())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	m.WriteText(w)
}

// WriteText writes a human-readable summary of the metrics.
func (m *Metrics) WriteText(w io.Writer) {
	s := m.Snapshot()

	fmt.Fprintf(w, "# Landmark analysis metrics\n\n")
	fmt.Fprintf(w, "Tasks instantiated: %d\n", s.TasksInstantiated)
	writeHistogramSummary(w, "Solve duration", s.SolveDuration)
	if len(s.SolveOutcomes) > 0 {
		fmt.Fprintf(w, "Solve outcomes:\n")
		for _, label := range sortedKeys(s.SolveOutcomes) {
			fmt.Fprintf(w, "  %s: %d\n", label, s.SolveOutcomes[label])
		}
	}
	writeHistogramSummary(w, "Intersection duration", s.IntersectionDuration)
	if len(s.StoreDuration) > 0 {
		fmt.Fprintf(w, "Store duration by operation:\n")
		for _, label := range sortedKeys(s.StoreDuration) {
			h := s.StoreDuration[label]
			fmt.Fprintf(w, "  %s: n=%d mean=%v p95=%v\n", label, h.Count, h.Mean, h.P95)
		}
	}
}

func writeHistogramSummary(w io.Writer, name string, h HistogramSnapshot) {
	if h.Count == 0 {
		fmt.Fprintf(w, "%s: no data\n", name)
		return
	}
	fmt.Fprintf(w, "%s (n=%d): mean=%v p50=%v p95=%v max=%v\n",
		name, h.Count, h.Mean, h.P50, h.P95, h.Max)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
