package service

import (
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
)

// Trigger maps a keyword to the tool it selects.
type Trigger struct {
	Keyword string
	Tool    string
	// PassesRAG forwards the caller's RAG flag. Tools without it always run with RAG off.
	PassesRAG bool
}

// Triggers is checked in order; the first keyword found in the query wins,
// so "symptom treatment" routes to symptom search.
var Triggers = []Trigger{
	{Keyword: "symptom", Tool: domain.ToolSymptomSearch, PassesRAG: false},
	{Keyword: "treatment", Tool: domain.ToolTreatment, PassesRAG: true},
	{Keyword: "trial", Tool: domain.ToolTrialMatcher, PassesRAG: true},
}

// FallbackTool runs when no trigger matches.
const FallbackTool = domain.ToolMemorySummarize

// Route is the outcome of routing one query.
type Route struct {
	Tool    string
	Request port.ToolRequest
}

// Router dispatches queries by case-insensitive keyword substring.
type Router struct {
	triggers []Trigger
}

func NewRouter() *Router {
	return &Router{triggers: Triggers}
}

// Select picks the tool for q and builds its request.
func (r *Router) Select(q domain.Query, history domain.ChatHistory) Route {
	lower := strings.ToLower(q.Text)
	req := port.ToolRequest{Query: q.Text, History: history, Model: q.Model}
	for _, t := range r.triggers {
		if strings.Contains(lower, t.Keyword) {
			req.UseRAG = t.PassesRAG && q.UseRAG
			return Route{Tool: t.Tool, Request: req}
		}
	}
	return Route{Tool: FallbackTool, Request: req}
}
