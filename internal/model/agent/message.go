package agent

// OutboundMessage is the streaming-message payload for one user turn.
type OutboundMessage struct {
	Message   Message           `json:"message"`
	Variables []ContextVariable `json:"variables"`
}

// Message carries the user text. SequenceID is derived from wall-clock
// seconds at send time.
type Message struct {
	SequenceID int64  `json:"sequenceId"`
	Type       string `json:"type"`
	Text       string `json:"text"`
}

// ContextVariable is a typed (name, value) pair forwarded with every turn.
type ContextVariable struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}
