package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
)

type askRecorder struct {
	queries []domain.Query
	reply   domain.Reply
}

func (a *askRecorder) Ask(_ context.Context, q domain.Query, history domain.ChatHistory) (domain.Reply, domain.ChatHistory) {
	a.queries = append(a.queries, q)
	reply := a.reply
	if reply.Text == "" {
		reply = domain.Reply{Tool: domain.ToolTreatment, Text: "rest and fluids"}
	}
	return reply, history.With(domain.Turn{User: q.Text, Response: reply.Text})
}

func newTestSession() (*session, *askRecorder, *bytes.Buffer) {
	color.NoColor = true
	rec := &askRecorder{}
	var out bytes.Buffer
	return newSession(rec, &out, domain.DefaultModel), rec, &out
}

func TestSessionAsksWithCurrentSettings(t *testing.T) {
	s, rec, out := newTestSession()
	ctx := context.Background()

	gt.Bool(t, s.handle(ctx, "/model "+domain.ModelDeepseek70B)).True()
	gt.Bool(t, s.handle(ctx, "/rag off")).True()
	gt.Bool(t, s.handle(ctx, "treatment for flu")).True()

	gt.Array(t, rec.queries).Length(1).Required()
	gt.Value(t, rec.queries[0]).Equal(domain.Query{Text: "treatment for flu", Model: domain.ModelDeepseek70B, UseRAG: false})
	gt.Array(t, s.history).Length(1)
	gt.String(t, out.String()).Contains("Assistant: rest and fluids")
}

func TestSessionRejectsBadCommands(t *testing.T) {
	s, rec, out := newTestSession()
	ctx := context.Background()

	s.handle(ctx, "/model gpt-2")
	s.handle(ctx, "/rag maybe")
	s.handle(ctx, "/frobnicate")

	gt.Value(t, s.model).Equal(domain.DefaultModel)
	gt.Bool(t, s.useRAG).True()
	gt.Array(t, rec.queries).Length(0)
	gt.String(t, out.String()).Contains("unknown command /frobnicate")
}

func TestSessionHistoryAndClear(t *testing.T) {
	s, _, out := newTestSession()
	ctx := context.Background()

	s.handle(ctx, "I have a headache")
	s.handle(ctx, "/history")
	gt.String(t, out.String()).Contains("1. You: I have a headache")

	s.handle(ctx, "/clear")
	gt.Array(t, s.history).Length(0)
}

func TestSessionLoopStopsOnQuit(t *testing.T) {
	s, rec, _ := newTestSession()
	in := strings.NewReader("hello\n\n/quit\nnever asked\n")

	gt.NoError(t, s.loop(context.Background(), in))
	gt.Array(t, rec.queries).Length(1)
}

func TestSessionShowsFailedTurn(t *testing.T) {
	s, rec, out := newTestSession()
	rec.reply = domain.Reply{Tool: domain.ToolSymptomSearch, Text: "[Timeout] search timed out", Tag: domain.TagTimeout}

	s.handle(context.Background(), "I have a fever")
	gt.String(t, out.String()).Contains("[Timeout] search timed out")
	gt.String(t, out.String()).Contains("(" + domain.ToolSymptomSearch + ")")
}
