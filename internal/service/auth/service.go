// Package auth owns the OAuth2 client-credentials exchange and the cached
// bearer token stored in each browser session.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/astrochat/relay/internal/model/agent"
	"github.com/astrochat/relay/internal/session"
)

// tokenLifetimeFallback applies when the token endpoint omits expires_in.
const tokenLifetimeFallback = 1800

// UpstreamError reports a failed token exchange. Status is zero when the
// endpoint was unreachable.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token exchange failed: upstream status %d", e.Status)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Service performs client-credentials grants against the org token endpoint.
// It holds no token itself; credentials live in the per-browser State.
type Service struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
	now          func() time.Time
}

// NewService creates the credential service.
func NewService(tokenURL, clientID, clientSecret string) *Service {
	return &Service{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
	}
}

// AccessToken returns a usable bearer token for the browser session, reusing
// the cached credential when it has not expired and performing exactly one
// exchange otherwise. The expiry check is optimistic: two concurrent callers
// may both refresh, each obtaining a valid token.
func (s *Service) AccessToken(ctx context.Context, state *session.State) (string, error) {
	now := s.now()
	if cred := state.Credential(); cred.Usable(now) {
		return cred.Token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("token endpoint returned %s", resp.Status)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &UpstreamError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if payload.AccessToken == "" {
		return "", &UpstreamError{Err: fmt.Errorf("token response missing access_token")}
	}

	lifetime := payload.ExpiresIn
	if lifetime <= 0 {
		lifetime = tokenLifetimeFallback
	}

	state.SetCredential(&agent.Credential{
		Token:     payload.AccessToken,
		ExpiresAt: now.Unix() + lifetime,
	})
	return payload.AccessToken, nil
}
