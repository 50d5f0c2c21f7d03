package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolwatch/poolwatch/internal/alert"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	s.Record(&alert.Event{ID: "a", Kind: alert.KindFailover, Message: "one"}, alert.DecisionSent)
	s.Record(&alert.Event{ID: "b", Kind: alert.KindHighErrorRate, Message: "two"}, alert.DecisionCooldown)
	s.Record(&alert.Event{ID: "c", Kind: alert.KindRecovery, Message: "three"}, alert.DecisionSuppressed)

	entries, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "c", entries[0].EventID)
	assert.Equal(t, string(alert.DecisionSuppressed), entries[0].Decision)
	assert.Equal(t, "b", entries[1].EventID)
	assert.WithinDuration(t, time.Now(), entries[0].CreatedAt, time.Minute)
}

func TestRecentOnEmptyStore(t *testing.T) {
	s := openTestStore(t)
	entries, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReopenKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")

	s, err := Open(path)
	require.NoError(t, err)
	s.Record(&alert.Event{ID: "a", Kind: alert.KindFailover, Message: "one"}, alert.DecisionSent)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].EventID)
}
