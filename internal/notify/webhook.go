// Package notify delivers alert events to the outbound sink.
//
// DESIGN: the only transport is a webhook-style HTTP POST with a
// Slack-attachment JSON body. Payloads are built with sjson so the
// shape stays declarative. A 4xx response is a permanent failure (the
// dispatcher stops retrying); 5xx and transport errors are transient.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/sjson"

	"github.com/poolwatch/poolwatch/internal/alert"
)

const footer = "Blue/Green Monitoring"

// Webhook posts alert events to a configured endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook notifier. timeout bounds the whole
// request; the dispatcher additionally applies a per-send context
// deadline.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the event. It returns nil on any 2xx response.
func (w *Webhook) Send(ctx context.Context, ev *alert.Event) error {
	body, err := Payload(ev)
	if err != nil {
		return alert.Permanent(fmt.Errorf("notify: build payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return alert.Permanent(fmt.Errorf("notify: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := fmt.Errorf("notify: HTTP %d from sink", resp.StatusCode)
	if resp.StatusCode < 500 {
		return alert.Permanent(statusErr)
	}
	return statusErr
}

// Payload renders the Slack-attachment JSON body for an event.
func Payload(ev *alert.Event) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		b, err = sjson.SetBytes(b, path, value)
	}

	set("attachments.0.color", color(ev.Kind))
	set("attachments.0.title", ev.Title)
	set("attachments.0.text", ev.Message)
	for i, f := range ev.Fields {
		prefix := "attachments.0.fields." + strconv.Itoa(i)
		set(prefix+".title", f.Title)
		set(prefix+".value", f.Value)
		set(prefix+".short", true)
	}
	set("attachments.0.footer", footer)
	set("attachments.0.ts", ev.At.Unix())
	return b, err
}

func color(kind alert.Kind) string {
	switch kind {
	case alert.KindHighErrorRate:
		return "#ff0000"
	case alert.KindRecovery:
		return "#2eb886"
	default:
		return "#ffa500"
	}
}
