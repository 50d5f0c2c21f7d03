package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/alert"
)

// LogNotifier writes events to the process log instead of a webhook.
// Used for --dry-run and when no sink URL is configured.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

// Send logs the event and always succeeds.
func (n *LogNotifier) Send(_ context.Context, ev *alert.Event) error {
	evt := log.Warn().
		Str("kind", string(ev.Kind)).
		Str("event_id", ev.ID).
		Str("title", ev.Title)
	for _, f := range ev.Fields {
		evt = evt.Str(f.Title, f.Value)
	}
	evt.Msg(ev.Message)
	return nil
}
