// Package session implements the per-browser session container that owns the
// cached upstream credential and the agent conversation bound to one browser.
package session

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/astrochat/relay/internal/model/agent"
)

const cookieName = "relay_session"

// State is the mutable per-browser state. The credential and the conversation
// session live here and nowhere else; dropping the State drops both.
type State struct {
	mu         sync.Mutex
	credential *agent.Credential
	conv       *agent.ConversationSession
	lastSeen   time.Time

	// bootMu serializes agent session creation; it is never held across
	// accesses guarded by mu alone.
	bootMu sync.Mutex
}

// Credential returns the cached credential, which may be nil or expired.
func (s *State) Credential() *agent.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// SetCredential replaces the cached credential.
func (s *State) SetCredential(c *agent.Credential) {
	s.mu.Lock()
	s.credential = c
	s.mu.Unlock()
}

// InvalidateCredential drops the cached credential so the next access
// refreshes it.
func (s *State) InvalidateCredential() {
	s.SetCredential(nil)
}

// Conversation returns the remote agent session, or nil before bootstrap.
func (s *State) Conversation() *agent.ConversationSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// SetConversation records the bootstrapped agent session.
func (s *State) SetConversation(c *agent.ConversationSession) {
	s.mu.Lock()
	s.conv = c
	s.mu.Unlock()
}

// Reset drops both the conversation and the credential; the next message
// starts a fresh agent session.
func (s *State) Reset() {
	s.mu.Lock()
	s.credential = nil
	s.conv = nil
	s.mu.Unlock()
}

// Bootstrap serializes session creation within one browser session. It runs
// create only when no conversation exists yet, so concurrent first messages
// trigger a single upstream session-creation call.
func (s *State) Bootstrap(create func() (*agent.ConversationSession, error)) (*agent.ConversationSession, error) {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()

	if conv := s.Conversation(); conv != nil {
		return conv, nil
	}

	conv, err := create()
	if err != nil {
		return nil, err
	}
	s.SetConversation(conv)
	return conv, nil
}

// Store keeps States in memory keyed by an opaque id carried in a signed
// cookie. States expire after sitting idle for the configured TTL.
type Store struct {
	mu     sync.RWMutex
	states map[string]*State
	codec  *securecookie.SecureCookie
	ttl    time.Duration
	now    func() time.Time
}

// NewStore builds a Store signing its cookie with secret. An empty secret
// gets a random key, which invalidates outstanding cookies on restart.
func NewStore(secret []byte, ttl time.Duration) *Store {
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}

	codec := securecookie.New(secret, nil)
	// Idle expiry is enforced server side against lastSeen; the cookie must
	// not die on an absolute timer while the user is still chatting.
	codec.MaxAge(0)

	return &Store{
		states: make(map[string]*State),
		codec:  codec,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Attach resolves the browser session for the request, creating one (and
// setting its cookie) when the request carries none or an invalid one. It
// must run before the response body is started so the cookie header can
// still be written.
func (st *Store) Attach(w http.ResponseWriter, r *http.Request) *State {
	state, cookie := st.Resolve(r)
	if cookie != nil {
		http.SetCookie(w, cookie)
	}
	return state
}

// Resolve looks up or creates the browser session for the request. The
// returned cookie is non-nil only when a fresh session was created and must
// then be delivered to the browser by the caller; WebSocket upgrades cannot
// use Attach because the upgrader writes its own handshake headers.
func (st *Store) Resolve(r *http.Request) (*State, *http.Cookie) {
	if cookie, err := r.Cookie(cookieName); err == nil {
		var id string
		if err := st.codec.Decode(cookieName, cookie.Value, &id); err == nil {
			if state := st.lookup(id); state != nil {
				return state, nil
			}
		}
	}

	id := uuid.NewString()
	state := &State{lastSeen: st.now()}

	st.mu.Lock()
	st.states[id] = state
	st.mu.Unlock()

	encoded, err := st.codec.Encode(cookieName, id)
	if err != nil {
		// Encoding only fails on a broken codec; the state still works for
		// this request, the browser just cannot resume it.
		log.Printf("[session] failed to encode cookie: %v", err)
		return state, nil
	}

	// A browser-session cookie: server-side idle expiry decides when the
	// state dies, not a fixed countdown from issuance.
	return state, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (st *Store) lookup(id string) *State {
	st.mu.RLock()
	state, ok := st.states[id]
	st.mu.RUnlock()
	if !ok {
		return nil
	}

	now := st.now()

	state.mu.Lock()
	expired := now.Sub(state.lastSeen) > st.ttl
	if !expired {
		state.lastSeen = now
	}
	state.mu.Unlock()

	if expired {
		st.mu.Lock()
		delete(st.states, id)
		st.mu.Unlock()
		return nil
	}
	return state
}

// Sweep evicts idle states every interval until ctx is done.
func (st *Store) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.evictIdle()
		}
	}
}

func (st *Store) evictIdle() {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	for id, state := range st.states {
		state.mu.Lock()
		idle := now.Sub(state.lastSeen)
		state.mu.Unlock()
		if idle > st.ttl {
			delete(st.states, id)
		}
	}
}

// Len reports the number of live states.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.states)
}
