package tilegraph

import (
	"sync"
	"time"
)

// RateSmoothing is the exponential-smoothing factor applied to each new
// sampled-tile observation (spec §4.6: "a single GlobalReducer... maintains
// an exponentially-smoothed average_processing_rate").
const RateSmoothing = 0.2

// RateTracker accumulates the vertices-processed-per-nanosecond rate from
// tiles a VertexFetcher marked for timing sampling (TileBlock.SampleExecution,
// spec §4.3 step 6), feeding VertexDomain's tile-break-point recomputation
// (spec §4.9 step 6). The source keeps this state on GlobalReducer 0; here it
// is a small standalone component shared by reference, since nothing else
// about it is GlobalReducer-specific.
type RateTracker struct {
	mu   sync.Mutex
	rate float64 // vertices per nanosecond
	init bool
}

// NewRateTracker constructs an empty tracker.
func NewRateTracker() *RateTracker { return &RateTracker{} }

// Observe records one sampled tile's processing duration and vertex count.
func (t *RateTracker) Observe(vertices int, d time.Duration) {
	if vertices <= 0 || d <= 0 {
		return
	}
	sample := float64(vertices) / float64(d.Nanoseconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.init {
		t.rate = sample
		t.init = true
		return
	}
	t.rate = RateSmoothing*sample + (1-RateSmoothing)*t.rate
}

// Rate returns the current smoothed rate, or a small positive default before
// any sample has been observed (keeps tile-break-point math well-defined on
// the very first round).
func (t *RateTracker) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.init || t.rate <= 0 {
		return 1e-6
	}
	return t.rate
}
