// Package transition detects serving-pool changes in the stream of
// request outcomes.
//
// DESIGN: a two-state machine, Unobserved -> Observed(pool). Unknown
// or unconfigured pool tags are missing data, never evidence of a new
// pool, so they do not move the state in either direction. The first
// known pool only seeds the state; there is no "from" to report.
package transition

import (
	"github.com/poolwatch/poolwatch/internal/logparse"
)

// Change is a pool transition between two known pools.
type Change struct {
	From         string
	To           string
	Release      string
	UpstreamAddr string
	Timestamp    string
}

// Detector tracks the last known serving pool. Like the window it is
// fed from a single ordered stream and needs no locking.
type Detector struct {
	pools   map[string]struct{}
	current string
}

// NewDetector creates a Detector limited to the configured pool names.
func NewDetector(pools []string) *Detector {
	set := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		set[p] = struct{}{}
	}
	return &Detector{pools: set}
}

// Observe feeds one outcome through the state machine. It returns a
// Change when the serving pool moved between two known pools, nil
// otherwise. Repeated observations of the same pool are no-ops.
func (d *Detector) Observe(rec *logparse.RequestOutcome) *Change {
	if !rec.HasPool() {
		return nil
	}
	pool := rec.Pool
	if _, ok := d.pools[pool]; !ok {
		return nil
	}
	if d.current == "" {
		d.current = pool
		return nil
	}
	if pool == d.current {
		return nil
	}
	ch := &Change{
		From:         d.current,
		To:           pool,
		Release:      rec.Release,
		UpstreamAddr: rec.UpstreamAddr,
		Timestamp:    rec.Timestamp,
	}
	d.current = pool
	return ch
}

// Current returns the last known pool, "" while unobserved.
func (d *Detector) Current() string { return d.current }
