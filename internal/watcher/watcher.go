// Package watcher wires the log follower, parser, sliding window,
// transition detector and alert dispatcher into the monitoring loop.
//
// DESIGN: one logical consumer of one ordered log stream. Lines are
// processed strictly sequentially, so the window and pool state never
// need locking; the only concurrency is the follower goroutine and
// the dispatcher's sender. Steady-state errors (parse failures, sink
// failures) are contained and logged, never fatal.
package watcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/alert"
	"github.com/poolwatch/poolwatch/internal/config"
	"github.com/poolwatch/poolwatch/internal/logparse"
	"github.com/poolwatch/poolwatch/internal/tail"
	"github.com/poolwatch/poolwatch/internal/transition"
	"github.com/poolwatch/poolwatch/internal/window"
)

// Stats are the loop's processing counters.
type Stats struct {
	Lines         int64
	ParseFailures int64
	Outcomes      int64
	Events        int64
}

// Watcher is the long-lived monitoring process.
type Watcher struct {
	cfg      *config.Config
	follower *tail.Follower
	win      *window.Tracker
	detector *transition.Detector
	disp     *alert.Dispatcher
	maint    *config.Maintenance

	lines         atomic.Int64
	parseFailures atomic.Int64
	outcomes      atomic.Int64
	events        atomic.Int64
}

// New builds a Watcher from validated configuration. audit may be nil.
func New(cfg *config.Config, notifier alert.Notifier, auditLog alert.AuditLog, opts ...tail.Option) *Watcher {
	maint := config.NewMaintenance(cfg.Alerts.Maintenance, cfg.Alerts.MaintenanceFile)

	disp := alert.NewDispatcher(alert.Config{
		Cooldown:     cfg.Alerts.Cooldown,
		SendTimeout:  cfg.Notify.Timeout,
		MaxRetries:   cfg.Notify.MaxRetries,
		RetryBackoff: cfg.Notify.RetryBackoff,
		QueueSize:    cfg.Notify.QueueSize,
		Maintenance:  maint.Enabled,
	}, notifier, auditLog)

	return &Watcher{
		cfg:      cfg,
		follower: tail.NewFollower(cfg.Log.File, opts...),
		win:      window.New(cfg.Window.Size, cfg.Alerts.ErrorRateThreshold, cfg.Window.MinSamples),
		detector: transition.NewDetector(cfg.Pools.Names),
		disp:     disp,
		maint:    maint,
	}
}

// Run follows the log until ctx is cancelled, then shuts down
// cleanly: the follower stops, and the dispatcher lets an in-flight
// send finish or time out.
func (w *Watcher) Run(ctx context.Context) error {
	w.logStartup()

	followErr := make(chan error, 1)
	go func() { followErr <- w.follower.Run(ctx) }()

	maintTicker := time.NewTicker(w.cfg.Alerts.MaintenancePoll)
	defer maintTicker.Stop()
	defer w.disp.Stop()

	lines := w.follower.Lines()
	for {
		select {
		case <-ctx.Done():
			<-followErr
			log.Info().Msg("log watcher stopped")
			return nil
		case <-maintTicker.C:
			w.maint.Reload()
		case line, ok := <-lines:
			if !ok {
				// Follower only exits on cancellation.
				<-followErr
				log.Info().Msg("log watcher stopped")
				return nil
			}
			w.process(line)
		}
	}
}

// process feeds one complete line through parser, detector, window
// and dispatcher.
func (w *Watcher) process(line string) {
	w.lines.Add(1)

	rec, err := logparse.Parse(line)
	if err != nil {
		w.parseFailures.Add(1)
		log.Debug().Str("line", line).Msg("unparseable log line, skipping")
		return
	}
	w.outcomes.Add(1)

	// Window and transition checks are independent; a pool-less line
	// still counts toward the error rate, and a status-less line can
	// still move the pool state.
	if ch := w.detector.Observe(rec); ch != nil {
		log.Warn().Str("from", ch.From).Str("to", ch.To).Msg("pool transition detected")
		w.events.Add(1)
		w.disp.Consider(alert.NewTransitionEvent(ch, w.cfg.Pools.Primary))
	}

	if rec.HasStatus() {
		if rec.IsError() {
			log.Debug().Int("status", rec.Status).Str("pool", rec.Pool).Str("uri", rec.URI).Msg("error response observed")
		}
		if stats := w.win.Record(rec.Status); stats != nil {
			log.Warn().Float64("rate", stats.Rate).Int("errors", stats.Errors).Msg("high error rate detected")
			w.events.Add(1)
			w.disp.Consider(alert.NewErrorRateEvent(stats, w.cfg.Alerts.ErrorRateThreshold))
		}
	}
}

// Stats returns a snapshot of the processing counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Lines:         w.lines.Load(),
		ParseFailures: w.parseFailures.Load(),
		Outcomes:      w.outcomes.Load(),
		Events:        w.events.Load(),
	}
}

func (w *Watcher) logStartup() {
	log.Info().
		Str("log_file", w.cfg.Log.File).
		Str("log_format", w.cfg.Log.Format).
		Int("window_size", w.cfg.Window.Size).
		Float64("error_rate_threshold", w.cfg.Alerts.ErrorRateThreshold).
		Dur("cooldown", w.cfg.Alerts.Cooldown).
		Str("primary_pool", w.cfg.Pools.Primary).
		Strs("pools", w.cfg.Pools.Names).
		Bool("maintenance", w.maint.Enabled()).
		Msg("log watcher starting")
}
