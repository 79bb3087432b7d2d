package session

import "time"

// TTL is the fixed lifetime of a session; there is no sliding expiration.
const TTL = 7 * 24 * time.Hour

// Session represents a persisted login session.
type Session struct {
	ID         string    `db:"id"`
	Token      string    `db:"token"`
	IdentityID int64     `db:"identity_id"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// ExpiredAt reports whether the session is no longer usable at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
