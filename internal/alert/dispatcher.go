// Dispatcher: maintenance gate, per-kind cooldown, async delivery.
//
// DESIGN: Consider never blocks the caller. Eligible events go onto a
// bounded queue consumed by a single sender goroutine; a full queue
// drops the event with a logged warning. Every decision, including
// drops, is recorded in the audit log when one is configured.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Decision is the dispatcher's verdict on one event.
type Decision string

const (
	DecisionSent       Decision = "sent"
	DecisionSuppressed Decision = "suppressed"
	DecisionCooldown   Decision = "cooldown"
	DecisionQueueFull  Decision = "queue_full"
	DecisionFailed     Decision = "failed"
)

// Notifier delivers one event to the external sink. Send must honor
// the context deadline.
type Notifier interface {
	Send(ctx context.Context, ev *Event) error
}

// AuditLog records dispatcher decisions for later inspection.
// Implementations must never fail the caller.
type AuditLog interface {
	Record(ev *Event, decision Decision)
}

// Config holds dispatcher tuning.
type Config struct {
	Cooldown     time.Duration // 0 disables the cooldown gate
	SendTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration // base for exponential backoff
	QueueSize    int
	Maintenance  func() bool // live flag, may be nil
}

// Dispatcher decides whether a candidate event is delivered now.
type Dispatcher struct {
	cfg      Config
	notifier Notifier
	audit    AuditLog
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[Kind]time.Time
	pending  map[Kind]bool

	queue    chan *Event
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher and starts its sender goroutine.
// audit may be nil.
func NewDispatcher(cfg Config, notifier Notifier, audit AuditLog) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	d := &Dispatcher{
		cfg:      cfg,
		notifier: notifier,
		audit:    audit,
		now:      time.Now,
		lastSent: make(map[Kind]time.Time),
		pending:  make(map[Kind]bool),
		queue:    make(chan *Event, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Consider applies the gates in order: maintenance, per-kind cooldown,
// then enqueue for delivery. It never blocks and never returns an
// error; dropped events are logged and audited.
func (d *Dispatcher) Consider(ev *Event) {
	if d.cfg.Maintenance != nil && d.cfg.Maintenance() {
		log.Info().Str("kind", string(ev.Kind)).Str("event_id", ev.ID).
			Msg("maintenance mode enabled, suppressing alert")
		d.record(ev, DecisionSuppressed)
		return
	}

	d.mu.Lock()
	if d.cfg.Cooldown > 0 {
		if last, ok := d.lastSent[ev.Kind]; ok && d.now().Sub(last) < d.cfg.Cooldown {
			remaining := d.cfg.Cooldown - d.now().Sub(last)
			d.mu.Unlock()
			log.Info().Str("kind", string(ev.Kind)).Dur("remaining", remaining).
				Msg("alert cooldown active, skipping")
			d.record(ev, DecisionCooldown)
			return
		}
		// A same-kind delivery already in flight counts as the one
		// attempt for this interval.
		if d.pending[ev.Kind] {
			d.mu.Unlock()
			log.Debug().Str("kind", string(ev.Kind)).Msg("delivery already in flight, skipping")
			d.record(ev, DecisionCooldown)
			return
		}
	}

	select {
	case d.queue <- ev:
		d.pending[ev.Kind] = true
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		log.Warn().Str("kind", string(ev.Kind)).Msg("alert queue full, dropping event")
		d.record(ev, DecisionQueueFull)
	}
}

// Stop shuts down the sender goroutine. An in-flight send finishes or
// times out; queued events are dropped.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopChan:
			return
		case ev := <-d.queue:
			d.deliver(ev)
		}
	}
}

// deliver sends with bounded retries and exponential backoff. Only a
// successful send stamps the cooldown clock: a failed delivery leaves
// the next occurrence immediately eligible.
func (d *Dispatcher) deliver(ev *Event) {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := d.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-d.stopChan:
				d.clearPending(ev.Kind)
				return
			case <-time.After(backoff):
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := d.notifier.Send(ctx, ev)
		cancel()

		if err == nil {
			d.mu.Lock()
			d.lastSent[ev.Kind] = d.now()
			delete(d.pending, ev.Kind)
			d.mu.Unlock()
			log.Info().Str("kind", string(ev.Kind)).Str("event_id", ev.ID).Msg("alert sent")
			d.record(ev, DecisionSent)
			return
		}
		lastErr = err
		if IsPermanent(err) {
			break
		}
		log.Warn().Err(err).Str("kind", string(ev.Kind)).Int("attempt", attempt+1).
			Msg("alert delivery failed, will retry")
	}

	d.clearPending(ev.Kind)
	log.Error().Err(lastErr).Str("kind", string(ev.Kind)).Str("event_id", ev.ID).
		Msg("alert delivery failed, dropping event")
	d.record(ev, DecisionFailed)
}

func (d *Dispatcher) clearPending(kind Kind) {
	d.mu.Lock()
	delete(d.pending, kind)
	d.mu.Unlock()
}

func (d *Dispatcher) record(ev *Event, decision Decision) {
	if d.audit != nil {
		d.audit.Record(ev, decision)
	}
}
