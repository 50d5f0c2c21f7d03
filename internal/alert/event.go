// Package alert turns detector candidates into notifications, gated
// by maintenance mode and per-kind cooldowns.
package alert

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poolwatch/poolwatch/internal/transition"
	"github.com/poolwatch/poolwatch/internal/window"
)

// Kind classifies an alert. Cooldowns are keyed per Kind, so a
// failover never silences the recovery that follows it.
type Kind string

const (
	KindFailover      Kind = "failover"
	KindRecovery      Kind = "recovery"
	KindPoolChange    Kind = "pool_change"
	KindHighErrorRate Kind = "high_error_rate"
)

// Field is one short key/value pair rendered in the notification.
type Field struct {
	Title string
	Value string
}

// Event is a candidate notification.
type Event struct {
	ID      string
	Kind    Kind
	Title   string
	Message string
	Fields  []Field
	At      time.Time
}

// NewTransitionEvent builds an event from a pool change. The semantic
// label depends on the configured primary: moving away from it is a
// failover, moving back is a recovery, and anything else is a generic
// pool change.
func NewTransitionEvent(ch *transition.Change, primary string) *Event {
	var kind Kind
	var title, message string
	switch {
	case ch.To == primary:
		kind = KindRecovery
		title = "Recovery Detected"
		message = fmt.Sprintf("Primary pool %q has recovered and is serving traffic", ch.To)
	case ch.From == primary:
		kind = KindFailover
		title = "Failover Detected"
		message = fmt.Sprintf("Traffic has switched from %q to %q", ch.From, ch.To)
	default:
		kind = KindPoolChange
		title = "Pool Change Detected"
		message = fmt.Sprintf("Traffic has switched from %q to %q", ch.From, ch.To)
	}
	return &Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Title:   title,
		Message: message,
		Fields: []Field{
			{Title: "Previous Pool", Value: ch.From},
			{Title: "Current Pool", Value: ch.To},
			{Title: "Release", Value: ch.Release},
			{Title: "Upstream", Value: ch.UpstreamAddr},
			{Title: "Timestamp", Value: ch.Timestamp},
		},
		At: time.Now(),
	}
}

// NewErrorRateEvent builds an event from a high error-rate snapshot.
func NewErrorRateEvent(s *window.Stats, threshold float64) *Event {
	return &Event{
		ID:      uuid.NewString(),
		Kind:    KindHighErrorRate,
		Title:   "High Error Rate",
		Message: fmt.Sprintf("Error rate has exceeded threshold: %.2f%%", s.Rate),
		Fields: []Field{
			{Title: "Error Rate", Value: fmt.Sprintf("%.2f%%", s.Rate)},
			{Title: "Threshold", Value: fmt.Sprintf("%.2f%%", threshold)},
			{Title: "Errors", Value: fmt.Sprintf("%d", s.Errors)},
			{Title: "Window Size", Value: fmt.Sprintf("%d", s.Size)},
			{Title: "Action", Value: "Check upstream container logs"},
		},
		At: time.Now(),
	}
}

// permanentError marks a delivery failure that retrying cannot fix,
// such as an HTTP 4xx from the sink.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the dispatcher stops retrying it.
func Permanent(err error) error { return &permanentError{err: err} }

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
