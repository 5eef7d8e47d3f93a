package domain

import "time"

// Session is a pending OAuth authorization, keyed by its random state token.
// Stored in Redis with a short TTL so abandoned flows expire on their own.
type Session struct {
	State     string    `json:"state"`
	Shop      string    `json:"shop"`
	TenantID  string    `json:"tenant_id"`
	ReturnURL string    `json:"return_url"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
