// Package window maintains a sliding window of recent request
// outcomes and derives the rolling error rate.
//
// DESIGN: fixed-capacity ring of status-code projections, FIFO
// eviction. The window size bounds both memory and responsiveness: a
// large window smooths transient spikes, a small one reacts faster
// but is noisier. The warm-up floor (MinSamples) keeps a nearly empty
// window from firing false positives right after startup.
package window

// Stats is a snapshot of the window taken right after a Record call
// that pushed the error rate to or above the threshold.
type Stats struct {
	Rate     float64 // percentage in [0,100]
	Errors   int
	Size     int
	Capacity int
}

// Tracker is a fixed-capacity sliding window over final status codes.
// It is fed from a single log stream and is not safe for concurrent
// use; the watcher loop is its only writer.
type Tracker struct {
	statuses  []int
	head      int
	size      int
	errors    int
	threshold float64
	minimum   int
}

// New creates a Tracker with the given capacity and error-rate
// threshold (percentage). minSamples is the warm-up floor; values
// outside (0, capacity] mean "require a full window", which matches
// the historical watcher behavior.
func New(capacity int, threshold float64, minSamples int) *Tracker {
	if capacity < 1 {
		capacity = 1
	}
	if minSamples < 1 || minSamples > capacity {
		minSamples = capacity
	}
	return &Tracker{
		statuses:  make([]int, capacity),
		threshold: threshold,
		minimum:   minSamples,
	}
}

// Record appends a status code, evicting the oldest entry when the
// window is full. It returns a Stats candidate when, after recording,
// the error rate meets the threshold and the window is warm, nil
// otherwise. The cooldown gate lives in the dispatcher, so Record
// keeps reporting while the condition holds.
func (t *Tracker) Record(status int) *Stats {
	if t.size == len(t.statuses) {
		if isError(t.statuses[t.head]) {
			t.errors--
		}
	} else {
		t.size++
	}
	t.statuses[t.head] = status
	t.head = (t.head + 1) % len(t.statuses)
	if isError(status) {
		t.errors++
	}

	if t.size < t.minimum {
		return nil
	}
	rate := t.ErrorRate()
	if rate < t.threshold {
		return nil
	}
	return &Stats{Rate: rate, Errors: t.errors, Size: t.size, Capacity: len(t.statuses)}
}

// ErrorRate returns the current error percentage, 0 for an empty
// window.
func (t *Tracker) ErrorRate() float64 {
	if t.size == 0 {
		return 0
	}
	return float64(t.errors) / float64(t.size) * 100
}

// ErrorCount returns the number of error outcomes currently held.
func (t *Tracker) ErrorCount() int { return t.errors }

// Len returns the number of outcomes currently held.
func (t *Tracker) Len() int { return t.size }

// Cap returns the configured window size.
func (t *Tracker) Cap() int { return len(t.statuses) }

func isError(status int) bool { return status >= 500 }
