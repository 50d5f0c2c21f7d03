package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyWindowRateIsZero(t *testing.T) {
	w := New(10, 20, 0)
	assert.Equal(t, 0.0, w.ErrorRate())
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 10, w.Cap())
}

func TestFIFOEviction(t *testing.T) {
	w := New(3, 100, 1)
	w.Record(500)
	w.Record(200)
	w.Record(200)
	require.Equal(t, 3, w.Len())
	assert.Equal(t, 1, w.ErrorCount())

	// Fourth record evicts the 500.
	w.Record(200)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 0, w.ErrorCount())
	assert.Equal(t, 0.0, w.ErrorRate())
}

// Window size 10, threshold 20%: 8 OK then 2 errors reaches exactly
// 20% and fires exactly once, at the second error.
func TestThresholdScenario(t *testing.T) {
	w := New(10, 20, 0)

	for i := 0; i < 8; i++ {
		assert.Nil(t, w.Record(200))
	}
	assert.Nil(t, w.Record(502), "9 samples: window not warm yet")

	stats := w.Record(502)
	require.NotNil(t, stats)
	assert.Equal(t, 20.0, stats.Rate)
	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 10, stats.Size)
	assert.Equal(t, 10, stats.Capacity)
}

func TestWarmUpDefaultRequiresFullWindow(t *testing.T) {
	w := New(5, 10, 0)
	// 100% errors, but the window is not full yet.
	for i := 0; i < 4; i++ {
		assert.Nil(t, w.Record(500))
	}
	assert.NotNil(t, w.Record(500))
}

func TestWarmUpConfigurableFloor(t *testing.T) {
	w := New(10, 50, 2)
	assert.Nil(t, w.Record(500), "one sample is below the floor")
	stats := w.Record(500)
	require.NotNil(t, stats)
	assert.Equal(t, 100.0, stats.Rate)
}

func TestBelowThresholdNoCandidate(t *testing.T) {
	w := New(4, 50, 0)
	w.Record(200)
	w.Record(200)
	w.Record(500)
	assert.Nil(t, w.Record(200), "25% is below the 50% threshold")
}

func TestKeepsReportingWhileConditionHolds(t *testing.T) {
	w := New(2, 50, 0)
	w.Record(500)
	assert.NotNil(t, w.Record(500))
	// Still 100% after the next error; edge-triggering is the
	// dispatcher's job.
	assert.NotNil(t, w.Record(500))
}
