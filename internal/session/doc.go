// Package session caches unlocked vault keys in memory.
//
// A [Manager] maps canonical case paths to [Session] values. A vault is
// locked when it has no entry and unlocked while its entry has not expired.
// Expiry is sliding: every successful lookup resets the inactivity window.
// Expired entries are evicted lazily, on the next access, and their keys are
// zeroed.
//
// Sessions live only in process memory. They are never persisted or logged,
// and are not shared between processes.
//
// The Manager is an ordinary value: construct one at startup and pass it to
// the vault manager and the file accessor. Tests construct their own and
// drive expiry with [WithClock].
package session
