package domain

import "strings"

// Tool names.
const (
	ToolSymptomSearch   = "symptom_search"
	ToolTreatment       = "treatment_recommender"
	ToolTrialMatcher    = "trial_matcher"
	ToolMemorySummarize = "memory_summarizer"
)

// Error tags prefix every failed turn so callers can tell failures apart from answers.
const (
	TagMissingCredential = "[MissingCredential]"
	TagModelLoad         = "[ModelLoadError]"
	TagProviderError     = "[ProviderError]"
	TagTimeout           = "[Timeout]"
	TagError             = "[Error]"
)

// Fixed user-facing messages.
const (
	MsgNoTrials        = "No matching clinical trials were found for the provided note."
	MsgNoSearchResults = "No reliable medical source found."
	MsgNoSymptoms      = "No clear symptoms found in memory."
)

// ToolResponse is the successful output of a tool before rendering.
type ToolResponse struct {
	Tool      string   `json:"tool"`
	Body      string   `json:"body"`
	Sources   []string `json:"sources,omitempty"`
	PoweredBy string   `json:"powered_by,omitempty"`
	UsedRAG   bool     `json:"used_rag"`
}

// Markdown renders the response as shown in the chat.
func (r *ToolResponse) Markdown() string {
	var b strings.Builder
	b.WriteString(r.Body)
	if len(r.Sources) > 0 {
		b.WriteString("\n\n**Sources:**\n")
		for i, s := range r.Sources {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + s)
		}
	}
	if r.PoweredBy != "" {
		b.WriteString("\n\n_Powered by " + r.PoweredBy + "_")
	}
	return b.String()
}

// Reply is what the chat boundary hands back for one turn. It is always displayable.
type Reply struct {
	TurnID string `json:"turn_id"`
	Tool   string `json:"tool"`
	Text   string `json:"text"`
	// Tag is set when the turn failed; Text then starts with it.
	Tag string `json:"tag,omitempty"`
}

// Failed reports whether the turn ended in a tagged error.
func (r Reply) Failed() bool { return r.Tag != "" }
