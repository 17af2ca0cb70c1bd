package auth

import (
	"sync/atomic"
	"time"

	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
)

// Session is the in-memory credential record. It is replaced wholesale on
// every successful login or refresh and destroyed on logout or a denied
// refresh. It is never persisted.
type Session struct {
	AccessToken string
	TokenType   string
	User        *domain.Identity
	ExpiresAt   time.Time
}

// Active reports whether the session holds a token that has not expired.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// Store holds the current session in volatile memory. The record is always
// replaced atomically, so concurrent readers never observe a half-updated
// session.
type Store struct {
	cur atomic.Pointer[Session]
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the session snapshot, or nil when logged out.
func (s *Store) Current() *Session {
	return s.cur.Load()
}

// Replace installs a new session record.
func (s *Store) Replace(sess *Session) {
	s.cur.Store(sess)
}

// Clear drops the session record.
func (s *Store) Clear() {
	s.cur.Store(nil)
}
