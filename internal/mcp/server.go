package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/m-mizutani/goerr/v2"
)

const protocolVersion = "2024-11-05"

// Server implements the Model Context Protocol (MCP) server.
// It lets external agents ask medical questions through the same boundary as the chat.
type Server struct {
	chat      *service.ChatService
	retrieval *service.RetrievalService
	audit     port.AuditWriter
	port      string
}

// NewServer creates a new MCP server. audit may be nil.
func NewServer(chat *service.ChatService, retrieval *service.RetrievalService, audit port.AuditWriter, port string) *Server {
	return &Server{
		chat:      chat,
		retrieval: retrieval,
		audit:     audit,
		port:      port,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start serves on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("MCP server starting", "port", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return goerr.Wrap(err, "mcp server stopped", goerr.V("port", s.port))
	}
	return nil
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]string{
				"name":    "medqa-rag",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		writeError(w, req.ID, -32602, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial endpoint message
	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	flusher.Flush()

	<-r.Context().Done()
}

const askSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Question or patient note"},
		"model": {"type": "string", "description": "Completion model", "enum": ["llama-3.3-70b-versatile", "deepseek-r1-distill-llama-70b"]},
		"rag": {"type": "boolean", "description": "Use retrieval (default true)"}
	},
	"required": ["query"]
}`

const retrieveSchema = `{
	"type": "object",
	"properties": {
		"collection": {"type": "string", "enum": ["discharge_notes", "clinical_trials"]},
		"query": {"type": "string", "description": "Text to search for"},
		"k": {"type": "integer", "description": "Number of documents (default 5)"}
	},
	"required": ["collection", "query"]
}`

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "ask",
			Description: "Ask a medical question; routed by keyword to the matching tool",
			InputSchema: json.RawMessage(askSchema),
		},
	}
	for _, t := range s.chat.Tools() {
		tools = append(tools, Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: json.RawMessage(askSchema),
		})
	}
	tools = append(tools, Tool{
		Name:        "retrieve",
		Description: "Return the documents nearest to a query in one collection",
		InputSchema: json.RawMessage(retrieveSchema),
	})
	return map[string]interface{}{"tools": tools}
}

type askArgs struct {
	Query string `json:"query"`
	Model string `json:"model"`
	RAG   *bool  `json:"rag"`
}

func (a askArgs) toQuery() (domain.Query, error) {
	if a.Query == "" {
		return domain.Query{}, goerr.New("query is required")
	}
	q := domain.NewQuery(a.Query)
	if a.Model != "" {
		if !domain.IsSupportedModel(a.Model) {
			return domain.Query{}, goerr.Wrap(port.ErrUnknownModel, "unsupported model", goerr.V("model", a.Model))
		}
		q.Model = a.Model
	}
	if a.RAG != nil {
		q.UseRAG = *a.RAG
	}
	return q, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, goerr.Wrap(err, "invalid params")
	}
	s.writeAudit(ctx, req.Name)

	if req.Name == "retrieve" {
		return s.callRetrieve(ctx, req.Arguments)
	}

	var args askArgs
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, goerr.Wrap(err, "invalid arguments", goerr.V("tool", req.Name))
		}
	}
	q, err := args.toQuery()
	if err != nil {
		return nil, err
	}

	var reply domain.Reply
	if req.Name == "ask" {
		reply, _ = s.chat.Ask(ctx, q, nil)
	} else {
		if !s.hasTool(req.Name) {
			return nil, goerr.Wrap(port.ErrToolNotFound, "unknown tool", goerr.V("tool", req.Name))
		}
		reply = s.chat.RunTool(ctx, req.Name, port.ToolRequest{
			Query:   q.Text,
			History: domain.ChatHistory{{User: q.Text}},
			Model:   q.Model,
			UseRAG:  q.UseRAG,
		})
	}

	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": reply.Text},
		},
		"isError": reply.Failed(),
	}, nil
}

func (s *Server) callRetrieve(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args struct {
		Collection string `json:"collection"`
		Query      string `json:"query"`
		K          int    `json:"k"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, goerr.Wrap(err, "invalid arguments", goerr.V("tool", "retrieve"))
	}
	if args.K <= 0 {
		args.K = 5
	}

	result, err := s.retrieval.Retrieve(ctx, args.Collection, args.Query, args.K)
	if err != nil {
		return map[string]interface{}{
			"content": []map[string]interface{}{{"type": "text", "text": service.Classify(err) + " " + err.Error()}},
			"isError": true,
		}, nil
	}

	content := make([]map[string]interface{}, 0, len(result.Documents))
	for _, d := range result.Documents {
		content = append(content, map[string]interface{}{"type": "text", "text": d.Text})
	}
	return map[string]interface{}{
		"content":   content,
		"documents": result.Documents,
	}, nil
}

func (s *Server) hasTool(name string) bool {
	for _, t := range s.chat.Tools() {
		if t.Name() == name {
			return true
		}
	}
	return false
}

func (s *Server) writeAudit(ctx context.Context, tool string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditLog{
		Action:     domain.AuditActionMCPCall,
		Resource:   "mcp",
		ResourceID: tool,
		CreatedAt:  time.Now(),
	}
	if err := s.audit.WriteAudit(ctx, entry); err != nil {
		slog.Error("failed to write audit log", "error", err)
	}
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
