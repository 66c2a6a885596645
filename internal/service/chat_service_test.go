package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/adapter/tool"
	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/mock"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type auditRecorder struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *auditRecorder) WriteAudit(_ context.Context, entry domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type fixture struct {
	completer *mock.CompleterMock
	store     *mock.VectorStoreMock
	searcher  *mock.WebSearcherMock
	audit     *auditRecorder
	svc       *service.ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		completer: &mock.CompleterMock{},
		store:     &mock.VectorStoreMock{},
		searcher:  &mock.WebSearcherMock{},
		audit:     &auditRecorder{},
	}
	embedder := &mock.EmbedderMock{}
	timeouts := tool.Timeouts{Completion: time.Second}
	engine := port.NewToolEngine(
		tool.NewSymptomTool(f.searcher, f.completer, timeouts),
		tool.NewTreatmentTool(embedder, f.store, f.completer, timeouts),
		tool.NewTrialTool(embedder, f.store, f.completer, timeouts),
		tool.NewMemoryTool(&mock.PhraseExtractorMock{}, f.completer, timeouts),
	)
	f.svc = service.NewChatService(service.NewRouter(), engine, f.audit)
	return f
}

func TestChatServiceTreatmentWithRAG(t *testing.T) {
	f := newFixture(t)
	f.store.QueryFunc = func(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
		return &domain.RetrievalResult{Collection: collection, Documents: []domain.Document{
			{ID: "note_0", Text: "Patient given aspirin."},
			{ID: "note_1", Text: "Started beta blocker."},
		}}, nil
	}
	f.completer.CompleteFunc = func(ctx context.Context, messages []domain.Message, model string) (string, error) {
		return "Recommend aspirin and a beta blocker.", nil
	}

	reply, history := f.svc.Ask(context.Background(), domain.NewQuery("What treatment is recommended for chest pain?"), nil)

	gt.Bool(t, reply.Failed()).False()
	gt.Value(t, reply.Tool).Equal(domain.ToolTreatment)
	gt.String(t, reply.Text).Contains("Recommend aspirin and a beta blocker.")
	gt.String(t, reply.Text).Contains("Powered by Groq API + RAG")
	gt.Value(t, reply.TurnID).NotEqual("")

	gt.Array(t, history).Length(1).Required()
	gt.Value(t, history[0]).Equal(domain.Turn{User: "What treatment is recommended for chest pain?", Response: reply.Text})

	f.audit.mu.Lock()
	defer f.audit.mu.Unlock()
	gt.Array(t, f.audit.entries).Length(1).Required()
	gt.Value(t, f.audit.entries[0].Action).Equal(domain.AuditActionChatTurn)
	gt.Value(t, f.audit.entries[0].ResourceID).Equal(reply.TurnID)
}

func TestChatServiceNoTrials(t *testing.T) {
	f := newFixture(t)

	reply, _ := f.svc.Ask(context.Background(), domain.NewQuery("trial for diabetes"), nil)
	gt.Value(t, reply.Text).Equal(domain.MsgNoTrials)
	gt.Bool(t, reply.Failed()).False()
}

func TestChatServiceMissingCredential(t *testing.T) {
	queries := map[string]string{
		domain.ToolSymptomSearch:   "symptom: cough",
		domain.ToolTreatment:       "treatment for asthma",
		domain.ToolTrialMatcher:    "trial for asthma",
		domain.ToolMemorySummarize: "I was dizzy",
	}
	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.completer.CompleteFunc = func(ctx context.Context, messages []domain.Message, model string) (string, error) {
				return "", goerr.Wrap(port.ErrMissingCredential, "GROQ_API_KEY environment variable not set")
			}
			f.store.QueryFunc = func(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
				return &domain.RetrievalResult{Collection: collection, Documents: []domain.Document{{ID: "x_0", Text: "doc"}}}, nil
			}
			f.searcher.SearchFunc = func(ctx context.Context, query string) ([]domain.SearchResult, error) {
				return []domain.SearchResult{{Snippet: "s", Link: "https://www.nih.gov/a"}}, nil
			}

			reply, _ := f.svc.Ask(context.Background(), domain.NewQuery(q), nil)
			gt.Value(t, reply.Tool).Equal(name)
			gt.Value(t, reply.Tag).Equal(domain.TagMissingCredential)
			gt.Bool(t, strings.HasPrefix(reply.Text, "[MissingCredential] ")).True()
		})
	}
}

func TestChatServiceMissingSearchKey(t *testing.T) {
	f := newFixture(t)
	f.searcher.SearchFunc = func(ctx context.Context, query string) ([]domain.SearchResult, error) {
		return nil, goerr.Wrap(port.ErrMissingCredential, "Missing SERPAPI_KEY in environment variables")
	}

	reply, _ := f.svc.Ask(context.Background(), domain.NewQuery("symptom: rash"), nil)
	gt.Value(t, reply.Tag).Equal(domain.TagMissingCredential)
	gt.String(t, reply.Text).Contains("SERPAPI_KEY")
}

func TestChatServiceNoSearchResults(t *testing.T) {
	f := newFixture(t)

	reply, _ := f.svc.Ask(context.Background(), domain.NewQuery("symptom: rash"), nil)
	gt.Value(t, reply.Text).Equal("No reliable medical source found.")
	gt.Bool(t, reply.Failed()).False()
}

func TestChatServiceTags(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		tag  string
	}{
		{"provider", goerr.Wrap(port.ErrProviderError, "503"), domain.TagProviderError},
		{"model load", goerr.Wrap(port.ErrModelLoad, "weights"), domain.TagModelLoad},
		{"timeout", goerr.Wrap(port.ErrTimeout, "slow"), domain.TagTimeout},
		{"deadline", context.DeadlineExceeded, domain.TagTimeout},
		{"other", goerr.New("boom"), domain.TagError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.completer.CompleteFunc = func(ctx context.Context, messages []domain.Message, model string) (string, error) {
				return "", tc.err
			}
			reply, _ := f.svc.Ask(context.Background(), domain.NewQuery("how are you"), nil)
			gt.Value(t, reply.Tag).Equal(tc.tag)
			gt.Bool(t, strings.HasPrefix(reply.Text, tc.tag+" ")).True()
		})
	}
}

func TestChatServiceRecoversPanic(t *testing.T) {
	engine := port.NewToolEngine(&mock.ToolMock{
		NameValue: domain.ToolMemorySummarize,
		RunFunc: func(ctx context.Context, req port.ToolRequest) (*domain.ToolResponse, error) {
			panic("nil map write")
		},
	})
	svc := service.NewChatService(service.NewRouter(), engine, nil)

	reply, history := svc.Ask(context.Background(), domain.NewQuery("hello"), nil)
	gt.Value(t, reply.Tag).Equal(domain.TagError)
	gt.String(t, reply.Text).Contains("tool panicked")
	gt.Array(t, history).Length(1)
}

func TestChatServiceUnknownModel(t *testing.T) {
	f := newFixture(t)
	q := domain.Query{Text: "treatment for gout", Model: "gpt-2", UseRAG: true}

	reply, _ := f.svc.Ask(context.Background(), q, nil)
	gt.Value(t, reply.Tag).Equal(domain.TagError)
	gt.Array(t, f.completer.Calls()).Length(0)
}

func TestChatServiceMemoryReadsInflightTurn(t *testing.T) {
	engineTool := &mock.ToolMock{NameValue: domain.ToolMemorySummarize}
	svc := service.NewChatService(service.NewRouter(), port.NewToolEngine(engineTool), nil)

	history := domain.ChatHistory{{User: "first", Response: "answer"}}
	_, next := svc.Ask(context.Background(), domain.NewQuery("second"), history)

	gt.Array(t, engineTool.RunCalls).Length(1).Required()
	gt.Value(t, engineTool.RunCalls[0].History).Equal(domain.ChatHistory{{User: "first", Response: "answer"}, {User: "second"}})
	gt.Array(t, next).Length(2)
	gt.Array(t, history).Length(1)
}

func TestChatServiceDefaultModel(t *testing.T) {
	f := newFixture(t)
	gt.Error(t, f.svc.SetDefaultModel("gpt-2")).Is(port.ErrUnknownModel)
	gt.Value(t, f.svc.DefaultModel()).Equal(domain.DefaultModel)

	gt.NoError(t, f.svc.SetDefaultModel(domain.ModelDeepseek70B)).Required()
	f.svc.Ask(context.Background(), domain.Query{Text: "treatment for gout"}, nil)

	calls := f.completer.Calls()
	gt.Array(t, calls).Length(1).Required()
	gt.Value(t, calls[0].Model).Equal(domain.ModelDeepseek70B)
}
