package keychain

import "time"

// Credential is the persisted token material of the single authenticated
// session: access token, optional refresh and identity tokens, and the
// absolute expiry computed when the token response was received.
type Credential struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
}

// Expired reports whether the credential must be treated as expired.
// The boundary is inclusive (expiry == now is expired) and a missing expiry
// fails closed.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// HasRefreshToken reports whether a refresh can be attempted.
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// TokenPrefix returns a short, log-safe prefix of a token value. Token values
// must never appear at full length in diagnostic output.
func TokenPrefix(token string) string {
	const n = 8
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}
