package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolwatch/poolwatch/internal/logparse"
)

func outcome(pool string) *logparse.RequestOutcome {
	return &logparse.RequestOutcome{
		Timestamp:    "28/Jan/2025:10:30:45 +0000",
		Pool:         pool,
		Release:      "v1.0.0",
		UpstreamAddr: "10.0.0.2:8080",
	}
}

// Pool sequence blue, blue, blue, green, green emits exactly one
// transition, between the 3rd and 4th observation.
func TestSingleTransition(t *testing.T) {
	d := NewDetector([]string{"blue", "green"})

	assert.Nil(t, d.Observe(outcome("blue")), "first observation seeds state, no event")
	assert.Nil(t, d.Observe(outcome("blue")))
	assert.Nil(t, d.Observe(outcome("blue")))

	ch := d.Observe(outcome("green"))
	require.NotNil(t, ch)
	assert.Equal(t, "blue", ch.From)
	assert.Equal(t, "green", ch.To)
	assert.Equal(t, "v1.0.0", ch.Release)
	assert.Equal(t, "10.0.0.2:8080", ch.UpstreamAddr)

	assert.Nil(t, d.Observe(outcome("green")), "no-change is idempotent")
	assert.Equal(t, "green", d.Current())
}

func TestUnknownPoolNeverTransitions(t *testing.T) {
	d := NewDetector([]string{"blue", "green"})

	require.Nil(t, d.Observe(outcome("blue")))
	assert.Nil(t, d.Observe(outcome(logparse.Absent)), "sentinel is missing data")
	assert.Nil(t, d.Observe(outcome("")), "empty is missing data")
	assert.Equal(t, "blue", d.Current(), "unknown observations do not move state")

	// Back to a known pool different from current still transitions.
	ch := d.Observe(outcome("green"))
	require.NotNil(t, ch)
	assert.Equal(t, "blue", ch.From)
}

func TestUnconfiguredPoolIgnored(t *testing.T) {
	d := NewDetector([]string{"blue", "green"})

	require.Nil(t, d.Observe(outcome("blue")))
	assert.Nil(t, d.Observe(outcome("purple")), "tag outside the configured set is unknown")
	assert.Equal(t, "blue", d.Current())
}

func TestFirstObservationEmitsNothing(t *testing.T) {
	d := NewDetector([]string{"blue", "green"})
	assert.Equal(t, "", d.Current())
	assert.Nil(t, d.Observe(outcome("green")))
	assert.Equal(t, "green", d.Current())
}

func TestRepeatedFlapsEmitEachEdge(t *testing.T) {
	d := NewDetector([]string{"blue", "green"})

	d.Observe(outcome("blue"))
	require.NotNil(t, d.Observe(outcome("green")))
	require.NotNil(t, d.Observe(outcome("blue")))
	require.NotNil(t, d.Observe(outcome("green")))
}
