package agent

// ConversationSession captures the remote agent session bound to one browser
// session. Created lazily on the first message, then reused; never mutated.
type ConversationSession struct {
	ID             string
	WelcomeMessage string
}

// CreateSessionRequest is the session-creation payload.
type CreateSessionRequest struct {
	ExternalSessionKey    string                `json:"externalSessionKey"`
	InstanceConfig        InstanceConfig        `json:"instanceConfig"`
	StreamingCapabilities StreamingCapabilities `json:"streamingCapabilities"`
	BypassUser            bool                  `json:"bypassUser"`
}

// InstanceConfig declares the org endpoint the agent runs against.
type InstanceConfig struct {
	Endpoint string `json:"endpoint"`
}

// StreamingCapabilities declares which chunk types the relay accepts.
type StreamingCapabilities struct {
	ChunkTypes []string `json:"chunkTypes"`
}

// CreateSessionResponse is the session-creation reply.
type CreateSessionResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []WelcomeMessage `json:"messages"`
}

// WelcomeMessage is the greeting the agent may attach to a new session.
type WelcomeMessage struct {
	Message string `json:"message"`
}
