package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/PolarWolf314/casevault/internal/secrets"
)

// Session is the unlocked state of one vault.
type Session struct {
	// ID identifies the session in logs and audit entries.
	ID string

	// CasePath is the canonical absolute path of the case directory.
	CasePath string

	CreatedAt time.Time

	key  *secrets.Key
	salt []byte

	mu         sync.Mutex
	lastAccess time.Time
	timeout    time.Duration
}

// Key returns the derived vault key. It is zeroed once the session is locked,
// replaced or evicted.
func (s *Session) Key() *secrets.Key {
	return s.key
}

// Salt returns the salt the key was derived with.
func (s *Session) Salt() []byte {
	return append([]byte(nil), s.salt...)
}

// LastAccess returns the time of the last successful lookup.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// Timeout returns the inactivity window. Zero means the session never expires.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// TimeRemaining returns how long the session stays usable without further
// access. ok is false for sessions that never expire.
func (s *Session) TimeRemaining(now time.Time) (remaining time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout == 0 {
		return 0, false
	}

	remaining = s.timeout - now.Sub(s.lastAccess)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// String implements fmt.Stringer without revealing key material.
func (s *Session) String() string {
	return fmt.Sprintf("session(%s, %s)", s.ID, s.CasePath)
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout > 0 && now.Sub(s.lastAccess) > s.timeout
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) destroy() {
	s.key.Destroy()
	for i := range s.salt {
		s.salt[i] = 0
	}
}
