package agent

import "time"

// Credential is a cached bearer token for the Agentforce APIs.
type Credential struct {
	Token     string
	ExpiresAt int64
}

// Usable reports whether the token may still be presented upstream.
func (c *Credential) Usable(now time.Time) bool {
	return c != nil && now.Unix() < c.ExpiresAt
}
