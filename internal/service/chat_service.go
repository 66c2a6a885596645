package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ChatService is the single boundary between callers and the tools. Every
// turn ends in a displayable Reply; tool errors and panics are rendered as
// tagged text and never returned.
type ChatService struct {
	router       *Router
	engine       *port.ToolEngine
	audit        port.AuditWriter
	defaultModel string
}

// NewChatService creates a chat service. audit may be nil.
func NewChatService(router *Router, engine *port.ToolEngine, audit port.AuditWriter) *ChatService {
	return &ChatService{router: router, engine: engine, audit: audit, defaultModel: domain.DefaultModel}
}

// SetDefaultModel changes the model used when a query names none.
func (s *ChatService) SetDefaultModel(model string) error {
	if !domain.IsSupportedModel(model) {
		return goerr.Wrap(port.ErrUnknownModel, "unsupported default model", goerr.V("model", model))
	}
	s.defaultModel = model
	return nil
}

// DefaultModel returns the model used when a query names none.
func (s *ChatService) DefaultModel() string {
	return s.defaultModel
}

// Ask routes one query and returns the reply together with the history
// extended by the completed turn. The routed tool sees the history with the
// in-flight turn appended.
func (s *ChatService) Ask(ctx context.Context, q domain.Query, history domain.ChatHistory) (domain.Reply, domain.ChatHistory) {
	if q.Model == "" {
		q.Model = s.defaultModel
	}
	inflight := history.With(domain.Turn{User: q.Text})

	var reply domain.Reply
	if !domain.IsSupportedModel(q.Model) {
		reply = s.render(ctx, "", time.Now(), nil, goerr.Wrap(port.ErrUnknownModel, "unsupported model", goerr.V("model", q.Model)))
	} else {
		route := s.router.Select(q, inflight)
		reply = s.RunTool(ctx, route.Tool, route.Request)
	}

	done := history.With(domain.Turn{User: q.Text, Response: reply.Text})
	return reply, done
}

// RunTool runs the named tool behind the rendering boundary.
func (s *ChatService) RunTool(ctx context.Context, name string, req port.ToolRequest) domain.Reply {
	start := time.Now()
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	resp, err := s.run(ctx, name, req)
	return s.render(ctx, name, start, resp, err, slog.String("model", req.Model), slog.Bool("use_rag", req.UseRAG))
}

// Tools lists the registered tools.
func (s *ChatService) Tools() []port.Tool {
	return s.engine.AvailableTools()
}

func (s *ChatService) run(ctx context.Context, name string, req port.ToolRequest) (resp *domain.ToolResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("tool panicked", goerr.V("tool", name), goerr.V("panic", fmt.Sprint(r)))
		}
	}()

	resp, err = s.engine.Run(ctx, name, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, goerr.New("tool returned no response", goerr.V("tool", name))
	}
	return resp, nil
}

func (s *ChatService) render(ctx context.Context, tool string, start time.Time, resp *domain.ToolResponse, err error, attrs ...any) domain.Reply {
	reply := domain.Reply{TurnID: uuid.NewString(), Tool: tool}

	switch {
	case err == nil:
		reply.Text = resp.Markdown()
	case errors.Is(err, port.ErrNoSearchResults):
		reply.Text = domain.MsgNoSearchResults
	default:
		reply.Tag = Classify(err)
		reply.Text = reply.Tag + " " + err.Error()
		logError(ctx, err, "chat turn failed", tool)
		if reply.Tag == domain.TagError {
			report(err, tool)
		}
	}

	elapsed := time.Since(start)
	slog.InfoContext(ctx, "chat turn",
		append([]any{"turn_id", reply.TurnID, "tool", tool, "tag", reply.Tag, "elapsed", elapsed}, attrs...)...)
	s.writeAudit(ctx, reply, elapsed)
	return reply
}

// Classify maps an error onto the tag shown to the user.
func Classify(err error) string {
	switch {
	case errors.Is(err, port.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.TagTimeout
	case errors.Is(err, port.ErrMissingCredential):
		return domain.TagMissingCredential
	case errors.Is(err, port.ErrModelLoad):
		return domain.TagModelLoad
	case errors.Is(err, port.ErrProviderError):
		return domain.TagProviderError
	default:
		return domain.TagError
	}
}

func (s *ChatService) writeAudit(ctx context.Context, reply domain.Reply, elapsed time.Duration) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]interface{}{
		"tag":         reply.Tag,
		"duration_ms": elapsed.Milliseconds(),
	})
	entry := domain.AuditLog{
		Action:     domain.AuditActionChatTurn,
		Resource:   reply.Tool,
		ResourceID: reply.TurnID,
		Details:    string(details),
		CreatedAt:  time.Now(),
	}
	if err := s.audit.WriteAudit(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to write audit log", "error", err)
	}
}

func logError(ctx context.Context, err error, msg, tool string) {
	var ge *goerr.Error
	if errors.As(err, &ge) {
		slog.ErrorContext(ctx, msg,
			"tool", tool,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
		return
	}
	slog.ErrorContext(ctx, msg, "tool", tool, "error", err.Error())
}

func report(err error, tool string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("tool", tool)
		sentry.CaptureException(err)
	})
}
