// Package agent talks to the Agentforce Einstein AI Agent API: it bootstraps
// one conversation session per browser session and opens the streaming
// message call whose body the relay forwards verbatim.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/astrochat/relay/internal/config"
	"github.com/astrochat/relay/internal/model/agent"
	"github.com/astrochat/relay/internal/service/auth"
	"github.com/astrochat/relay/internal/session"
)

// DefaultWelcome is used when session creation returns no usable greeting.
const DefaultWelcome = "Hi, I'm an AI service assistant. How can I help you?"

// SessionError reports a failed session-creation call.
type SessionError struct {
	Status int
	Err    error
}

func (e *SessionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("agent session creation failed: upstream status %d", e.Status)
	}
	return fmt.Sprintf("agent session creation failed: %v", e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// StreamError reports a streaming call that failed before any body arrived.
type StreamError struct {
	Status int
	Err    error
}

func (e *StreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("agent stream failed: upstream status %d", e.Status)
	}
	return fmt.Sprintf("agent stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Service is the upstream Agentforce client. It is shared across browser
// sessions and keeps no per-session state of its own.
type Service struct {
	cfg  config.SalesforceConfig
	auth *auth.Service

	// sessionClient bounds the whole session-creation call. streamClient
	// bounds only dialing and response headers: once the stream starts the
	// read phase runs until upstream closes.
	sessionClient *http.Client
	streamClient  *http.Client

	now func() time.Time
}

// NewService creates the Agentforce client.
func NewService(cfg config.SalesforceConfig, authSvc *auth.Service) *Service {
	return &Service{
		cfg:           cfg,
		auth:          authSvc,
		sessionClient: &http.Client{Timeout: 10 * time.Second},
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		now: time.Now,
	}
}

// EnsureSession returns the conversation session for the browser session,
// creating one upstream on first use. Creation is serialized per browser
// session; nothing is cached on failure, so the next call retries.
func (s *Service) EnsureSession(ctx context.Context, state *session.State) (*agent.ConversationSession, error) {
	return state.Bootstrap(func() (*agent.ConversationSession, error) {
		return s.createSession(ctx, state)
	})
}

func (s *Service) createSession(ctx context.Context, state *session.State) (*agent.ConversationSession, error) {
	payload := agent.CreateSessionRequest{
		ExternalSessionKey:    uuid.NewString(),
		InstanceConfig:        agent.InstanceConfig{Endpoint: s.cfg.InstanceEndpoint()},
		StreamingCapabilities: agent.StreamingCapabilities{ChunkTypes: []string{"Text"}},
		BypassUser:            false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &SessionError{Err: err}
	}

	resp, err := s.doAuthorized(ctx, state, s.sessionClient, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SessionURL(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		var authErr *auth.UpstreamError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &SessionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SessionError{Status: resp.StatusCode, Err: fmt.Errorf("session endpoint returned %s", resp.Status)}
	}

	var created agent.CreateSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &SessionError{Err: fmt.Errorf("decode session response: %w", err)}
	}
	if created.SessionID == "" {
		return nil, &SessionError{Err: fmt.Errorf("session response missing sessionId")}
	}

	welcome := DefaultWelcome
	if len(created.Messages) > 0 && created.Messages[0].Message != "" {
		welcome = created.Messages[0].Message
	}

	return &agent.ConversationSession{ID: created.SessionID, WelcomeMessage: welcome}, nil
}

// StreamMessage sends one user turn and returns the upstream body for the
// caller to relay line by line. The returned reader must be closed; closing
// it (or cancelling ctx) releases the upstream connection.
func (s *Service) StreamMessage(ctx context.Context, state *session.State, text string) (io.ReadCloser, error) {
	conv, err := s.EnsureSession(ctx, state)
	if err != nil {
		return nil, err
	}

	payload := agent.OutboundMessage{
		Message: agent.Message{
			SequenceID: s.now().Unix(),
			Type:       "Text",
			Text:       text,
		},
		Variables: []agent.ContextVariable{
			{Name: "ContactSfid", Type: "Text", Value: s.cfg.ContactSfid},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &StreamError{Err: err}
	}

	resp, err := s.doAuthorized(ctx, state, s.streamClient, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.StreamURL(conv.ID), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		var authErr *auth.UpstreamError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &StreamError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StreamError{Status: resp.StatusCode, Err: fmt.Errorf("stream endpoint returned %s", resp.Status)}
	}

	return resp.Body, nil
}

// doAuthorized issues an authorized request, refreshing the credential and
// retrying exactly once when upstream answers 401 with a cached token.
func (s *Service) doAuthorized(ctx context.Context, state *session.State, client *http.Client, build func(token string) (*http.Request, error)) (*http.Response, error) {
	token, err := s.auth.AccessToken(ctx, state)
	if err != nil {
		return nil, err
	}

	resp, err := s.issue(client, build, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// The cached token was rejected upstream; refresh once and retry.
	resp.Body.Close()
	state.InvalidateCredential()

	token, err = s.auth.AccessToken(ctx, state)
	if err != nil {
		return nil, err
	}
	return s.issue(client, build, token)
}

func (s *Service) issue(client *http.Client, build func(token string) (*http.Request, error), token string) (*http.Response, error) {
	req, err := build(token)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}
