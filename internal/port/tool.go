package port

import (
	"context"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
)

// Tool is one user-intent pathway (search, recommend, match, summarize).
type Tool interface {
	// Name returns the unique name of this tool (e.g. "treatment_recommender").
	Name() string

	// Description returns a human-readable description of what this tool answers.
	Description() string

	// Run answers the request. Failures are returned as errors and rendered by the caller.
	Run(ctx context.Context, req ToolRequest) (*domain.ToolResponse, error)
}

// ToolRequest contains everything a tool needs to answer one turn.
type ToolRequest struct {
	Query   string             `json:"query"`
	History domain.ChatHistory `json:"history,omitempty"`
	Model   string             `json:"model"`
	UseRAG  bool               `json:"use_rag"`
}

// ToolEngine holds the registered tools.
type ToolEngine struct {
	tools map[string]Tool
	order []string
}

// NewToolEngine creates a new engine with the given tools.
func NewToolEngine(tools ...Tool) *ToolEngine {
	e := &ToolEngine{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := e.tools[t.Name()]; !dup {
			e.order = append(e.order, t.Name())
		}
		e.tools[t.Name()] = t
	}
	return e
}

// Get returns the named tool.
func (e *ToolEngine) Get(name string) (Tool, bool) {
	t, ok := e.tools[name]
	return t, ok
}

// Run executes the named tool.
func (e *ToolEngine) Run(ctx context.Context, name string, req ToolRequest) (*domain.ToolResponse, error) {
	t, ok := e.tools[name]
	if !ok {
		return nil, ErrToolNotFound
	}
	return t.Run(ctx, req)
}

// AvailableTools returns the registered tools in registration order.
func (e *ToolEngine) AvailableTools() []Tool {
	out := make([]Tool, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.tools[name])
	}
	return out
}
