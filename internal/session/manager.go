package session

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	logger "github.com/PolarWolf314/casevault/internal/logging"
	"github.com/PolarWolf314/casevault/internal/secrets"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout is the inactivity window of a Manager built without
	// WithDefaultTimeout.
	DefaultTimeout = 30 * time.Minute

	// UseDefaultTimeout asks Unlock and Register for the manager default.
	UseDefaultTimeout time.Duration = -1
)

// Manager is a registry of unlocked vaults keyed by canonical case path.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	now            func() time.Time
	defaultTimeout time.Duration
	log            logger.Logger
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:       make(map[string]*Session),
		now:            time.Now,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CanonicalPath returns the absolute, symlink-resolved form of path. Paths
// that do not exist yet are only made absolute.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Unlock derives the vault key from password and installs a session,
// replacing any existing one for the same case. Key derivation runs before
// the registry is locked.
func (m *Manager) Unlock(casePath, password string, salt []byte, iterations int, timeout time.Duration) (*Session, error) {
	key, err := secrets.DeriveKey(password, salt, iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}

	s, err := m.Register(casePath, key, salt, timeout)
	if err != nil {
		key.Destroy()
		return nil, err
	}
	return s, nil
}

// Register installs a session for an already derived key. The manager takes
// ownership of key and destroys it when the session ends.
func (m *Manager) Register(casePath string, key *secrets.Key, salt []byte, timeout time.Duration) (*Session, error) {
	s, err := m.NewSession(casePath, key, salt, timeout)
	if err != nil {
		return nil, err
	}
	m.Install(s)
	return s, nil
}

// NewSession builds a session for an already derived key without making it
// live. Pass it to Install to replace the current session, or to Discard.
func (m *Manager) NewSession(casePath string, key *secrets.Key, salt []byte, timeout time.Duration) (*Session, error) {
	path, err := CanonicalPath(casePath)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		timeout = m.defaultTimeout
	}

	now := m.now()
	return &Session{
		ID:         uuid.NewString(),
		CasePath:   path,
		CreatedAt:  now,
		key:        key,
		salt:       append([]byte(nil), salt...),
		lastAccess: now,
		timeout:    timeout,
	}, nil
}

// Install makes s the live session for its case. Any previous session for
// the case is destroyed.
func (m *Manager) Install(s *Session) {
	s.touch(m.now())

	m.mu.Lock()
	prev := m.sessions[s.CasePath]
	m.sessions[s.CasePath] = s
	m.mu.Unlock()

	if prev != nil && prev != s && prev.key != s.key {
		prev.destroy()
	}

	m.log.Debugf("Unlocked session %s for %s (timeout %s)", s.ID, s.CasePath, s.Timeout())
}

// Discard destroys a session built by NewSession that was never installed.
// It is a no-op for the live session.
func (m *Manager) Discard(s *Session) {
	m.mu.Lock()
	live := m.sessions[s.CasePath] == s
	m.mu.Unlock()

	if !live {
		s.destroy()
	}
}

// Get returns the live session for casePath and resets its inactivity
// window, or nil if the vault is locked. An expired session is evicted.
func (m *Manager) Get(casePath string) *Session {
	s, _ := m.lookup(casePath, true)
	return s
}

// Require is Get with errors: ErrVaultLocked when no session exists and
// ErrSessionExpired when one existed but had expired.
func (m *Manager) Require(casePath string) (*Session, error) {
	s, expired := m.lookup(casePath, true)
	if s != nil {
		return s, nil
	}
	if expired {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrSessionExpired, casePath)
	}
	return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultLocked, casePath)
}

// IsUnlocked reports whether casePath has a live session. It does not reset
// the inactivity window.
func (m *Manager) IsUnlocked(casePath string) bool {
	s, _ := m.lookup(casePath, false)
	return s != nil
}

func (m *Manager) lookup(casePath string, touch bool) (s *Session, expired bool) {
	path, err := CanonicalPath(casePath)
	if err != nil {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s = m.sessions[path]
	if s == nil {
		return nil, false
	}

	now := m.now()
	if s.expired(now) {
		delete(m.sessions, path)
		s.destroy()
		m.log.Debugf("Session %s for %s expired", s.ID, path)
		return nil, true
	}

	if touch {
		s.touch(now)
	}
	return s, false
}

// Lock ends the session for casePath. It returns false if the vault was
// already locked.
func (m *Manager) Lock(casePath string) bool {
	path, err := CanonicalPath(casePath)
	if err != nil {
		return false
	}

	m.mu.Lock()
	s := m.sessions[path]
	delete(m.sessions, path)
	m.mu.Unlock()

	if s == nil {
		return false
	}

	s.destroy()
	m.log.Debugf("Locked session %s for %s", s.ID, path)
	return true
}

// LockAll ends every session and returns how many there were.
func (m *Manager) LockAll() int {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.destroy()
	}
	return len(sessions)
}

// Reset is LockAll without a count, for tests.
func (m *Manager) Reset() {
	m.LockAll()
}

// Active returns the live sessions ordered by case path, evicting any that
// have expired.
func (m *Manager) Active() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	active := make([]*Session, 0, len(m.sessions))
	for path, s := range m.sessions {
		if s.expired(now) {
			delete(m.sessions, path)
			s.destroy()
			continue
		}
		active = append(active, s)
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CasePath < active[j].CasePath
	})
	return active
}

// Extend lengthens the inactivity window of a live session by d and resets
// it. It returns false if the vault is locked or its session never expires.
func (m *Manager) Extend(casePath string, d time.Duration) bool {
	s := m.Get(casePath)
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout == 0 {
		return false
	}
	s.timeout += d
	return true
}
