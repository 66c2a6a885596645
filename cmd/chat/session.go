package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/fatih/color"
)

type asker interface {
	Ask(ctx context.Context, q domain.Query, history domain.ChatHistory) (domain.Reply, domain.ChatHistory)
}

// session is one terminal conversation. It owns the history.
type session struct {
	chat    asker
	out     io.Writer
	model   string
	useRAG  bool
	history domain.ChatHistory

	user  func(a ...interface{}) string
	bot   func(a ...interface{}) string
	warn  func(a ...interface{}) string
	faint func(a ...interface{}) string
}

func newSession(chat asker, out io.Writer, model string) *session {
	return &session{
		chat:   chat,
		out:    out,
		model:  model,
		useRAG: true,
		user:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		bot:    color.New(color.FgCyan, color.Bold).SprintFunc(),
		warn:   color.New(color.FgYellow).SprintFunc(),
		faint:  color.New(color.Faint).SprintFunc(),
	}
}

func (s *session) banner(appName string) {
	fmt.Fprintln(s.out, s.user(appName))
	fmt.Fprintf(s.out, "Model: %s  RAG: %s\n", s.bot(s.model), onOff(s.useRAG))
	fmt.Fprintln(s.out, s.faint("Type /help for commands, /quit to exit."))
	fmt.Fprintln(s.out)
}

// loop reads lines until EOF, /quit or ctx is cancelled.
func (s *session) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, s.user("You: "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		if !s.handle(ctx, scanner.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one input line and reports whether to keep reading.
func (s *session) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, "/") {
		return s.command(line)
	}

	q := domain.Query{Text: line, Model: s.model, UseRAG: s.useRAG}
	reply, history := s.chat.Ask(ctx, q, s.history)
	s.history = history

	text := reply.Text
	if reply.Failed() {
		text = s.warn(text)
	}
	fmt.Fprintf(s.out, "%s %s\n", s.bot("Assistant:"), text)
	fmt.Fprintln(s.out, s.faint("("+reply.Tool+")"))
	fmt.Fprintln(s.out)
	return true
}

func (s *session) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(s.out, "/model <name>   switch completion model")
		fmt.Fprintln(s.out, "/models         list models")
		fmt.Fprintln(s.out, "/rag on|off     toggle retrieval")
		fmt.Fprintln(s.out, "/history        show this session")
		fmt.Fprintln(s.out, "/clear          forget this session")
		fmt.Fprintln(s.out, "/quit           exit")
	case "/models":
		for _, m := range domain.SupportedModels {
			marker := " "
			if m == s.model {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %s\n", marker, m)
		}
	case "/model":
		if len(fields) != 2 || !domain.IsSupportedModel(fields[1]) {
			fmt.Fprintln(s.out, s.warn("usage: /model <"+strings.Join(domain.SupportedModels, "|")+">"))
			break
		}
		s.model = fields[1]
		fmt.Fprintf(s.out, "Model: %s\n", s.bot(s.model))
	case "/rag":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			fmt.Fprintln(s.out, s.warn("usage: /rag on|off"))
			break
		}
		s.useRAG = fields[1] == "on"
		fmt.Fprintf(s.out, "RAG: %s\n", onOff(s.useRAG))
	case "/history":
		if len(s.history) == 0 {
			fmt.Fprintln(s.out, s.faint("(empty)"))
		}
		for i, turn := range s.history {
			fmt.Fprintf(s.out, "%d. %s %s\n", i+1, s.user("You:"), turn.User)
			fmt.Fprintf(s.out, "   %s %s\n", s.bot("Assistant:"), turn.Response)
		}
	case "/clear":
		s.history = nil
		fmt.Fprintln(s.out, s.faint("history cleared"))
	default:
		fmt.Fprintln(s.out, s.warn("unknown command "+fields[0]))
	}
	return true
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
