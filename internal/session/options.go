package session

import (
	"time"

	logger "github.com/PolarWolf314/casevault/internal/logging"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now. Tests use it to simulate inactivity.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithDefaultTimeout sets the timeout used when Unlock or Register is given
// UseDefaultTimeout. Zero disables expiry.
func WithDefaultTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.defaultTimeout = d
	}
}

// WithLogger sets the logger for lifecycle messages.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}
