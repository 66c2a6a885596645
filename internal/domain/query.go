package domain

// Query is the input of a single chat turn.
type Query struct {
	Text   string `json:"text"`
	Model  string `json:"model"`
	UseRAG bool   `json:"use_rag"`
}

// NewQuery builds a query for the default model with retrieval enabled.
func NewQuery(text string) Query {
	return Query{Text: text, Model: DefaultModel, UseRAG: true}
}

// Turn is one exchange in a chat session. Response is empty while the turn is in flight.
type Turn struct {
	User     string `json:"user"`
	Response string `json:"response,omitempty"`
}

// ChatHistory is the ordered, append-only list of turns owned by a chat session.
type ChatHistory []Turn

// Latest returns the most recent turn.
func (h ChatHistory) Latest() (Turn, bool) {
	if len(h) == 0 {
		return Turn{}, false
	}
	return h[len(h)-1], true
}

// With returns a copy of the history with t appended.
func (h ChatHistory) With(t Turn) ChatHistory {
	out := make(ChatHistory, len(h), len(h)+1)
	copy(out, h)
	return append(out, t)
}
