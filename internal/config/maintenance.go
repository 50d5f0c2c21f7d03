// Maintenance mode - the one live-reloadable configuration value.
//
// DESIGN: Reload is called periodically from the watcher loop rather
// than from a file-change notification, so an external edit (or an
// env change injected by the orchestrator) takes effect within one
// poll interval. A read failure keeps the last-known value; flipping
// alerting off because the flag file was briefly unreadable would be
// worse than a late flip.
package config

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Maintenance is the live-reloadable suppression flag. Precedence on
// each Reload: MAINTENANCE_MODE env var, then the flag file, then the
// value carried over from the previous read.
type Maintenance struct {
	mu      sync.RWMutex
	enabled bool
	file    string
}

// NewMaintenance creates the flag with its startup value and an
// optional flag-file path.
func NewMaintenance(initial bool, file string) *Maintenance {
	return &Maintenance{enabled: initial, file: file}
}

// Enabled returns the current flag value. Safe for concurrent use.
func (m *Maintenance) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Reload re-reads the flag from its sources and returns the current
// value.
func (m *Maintenance) Reload() bool {
	enabled, ok := m.read()

	m.mu.Lock()
	defer m.mu.Unlock()
	if ok && enabled != m.enabled {
		log.Info().Bool("maintenance", enabled).Msg("maintenance mode changed")
		m.enabled = enabled
	}
	return m.enabled
}

// read resolves the flag. ok is false when no source is available and
// the last-known value should stand.
func (m *Maintenance) read() (enabled, ok bool) {
	if v := os.Getenv("MAINTENANCE_MODE"); v != "" {
		return parseBool(v), true
	}
	if m.file == "" {
		return false, false
	}

	data, err := os.ReadFile(m.file)
	if err != nil {
		if os.IsNotExist(err) {
			// Absent flag file means maintenance is off.
			return false, true
		}
		log.Warn().Err(err).Str("path", m.file).Msg("maintenance flag read failed, keeping last value")
		return false, false
	}

	content := strings.TrimSpace(string(data))
	// An empty flag file acts as a plain touch-file toggle.
	if content == "" {
		return true, true
	}
	return parseBool(content), true
}
