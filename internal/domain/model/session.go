package model

import "time"

// UpstreamToken is the OAuth token bundle issued by GitHub. Both expiries are
// absolute instants, never durations.
type UpstreamToken struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	TokenType             string
}

// ExpiresWithin reports whether the access token expires before now+horizon.
// A zero AccessTokenExpiresAt means the provider issued a non-expiring token.
func (t UpstreamToken) ExpiresWithin(now time.Time, horizon time.Duration) bool {
	if t.AccessTokenExpiresAt.IsZero() {
		return false
	}
	return t.AccessTokenExpiresAt.Before(now.Add(horizon))
}

// Session is the server-side record for one authenticated user, keyed by
// their GitHub login.
type Session struct {
	Identity string
	Token    UpstreamToken
}
