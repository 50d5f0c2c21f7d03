package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/poolwatch/poolwatch/internal/alert"
)

func testEvent() *alert.Event {
	return &alert.Event{
		ID:      "ev-1",
		Kind:    alert.KindFailover,
		Title:   "Failover Detected",
		Message: `Traffic has switched from "blue" to "green"`,
		Fields: []alert.Field{
			{Title: "Previous Pool", Value: "blue"},
			{Title: "Current Pool", Value: "green"},
		},
		At: time.Unix(1738060245, 0),
	}
}

func TestSendSuccess(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	require.NoError(t, w.Send(context.Background(), testEvent()))

	doc := gjson.ParseBytes(got)
	assert.Equal(t, "Failover Detected", doc.Get("attachments.0.title").String())
	assert.Equal(t, "#ffa500", doc.Get("attachments.0.color").String())
	assert.Equal(t, "blue", doc.Get("attachments.0.fields.0.value").String())
	assert.True(t, doc.Get("attachments.0.fields.0.short").Bool())
	assert.Equal(t, int64(1738060245), doc.Get("attachments.0.ts").Int())
	assert.Equal(t, footer, doc.Get("attachments.0.footer").String())
}

func TestSendClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	err := w.Send(context.Background(), testEvent())
	require.Error(t, err)
	assert.True(t, alert.IsPermanent(err))
}

func TestSendServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	err := w.Send(context.Background(), testEvent())
	require.Error(t, err)
	assert.False(t, alert.IsPermanent(err))
}

func TestSendHonorsContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	w := NewWebhook(srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := w.Send(ctx, testEvent())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, alert.IsPermanent(err), "a hung sink is a transient failure")
}

func TestPayloadColorByKind(t *testing.T) {
	ev := testEvent()

	ev.Kind = alert.KindHighErrorRate
	body, err := Payload(ev)
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", gjson.GetBytes(body, "attachments.0.color").String())

	ev.Kind = alert.KindRecovery
	body, err = Payload(ev)
	require.NoError(t, err)
	assert.Equal(t, "#2eb886", gjson.GetBytes(body, "attachments.0.color").String())
}

func TestLogNotifierAlwaysSucceeds(t *testing.T) {
	n := NewLogNotifier()
	assert.NoError(t, n.Send(context.Background(), testEvent()))
}
