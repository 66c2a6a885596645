package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
)

const memorySystem = "You are a medical assistant summarizing prior symptoms from memory."

// SymptomHints is the vocabulary noun phrases are matched against.
var SymptomHints = []string{
	"chest pain", "shortness of breath", "fatigue", "dizziness",
	"nausea", "vomiting", "palpitations", "sweating", "jaw pain",
	"arm pain", "back pain", "tightness", "pressure in chest",
	"arrhythmia", "tachycardia", "bradycardia", "angina",
	"edema", "dyspnea", "syncope", "lightheadedness",
	"ejection fraction", "myocardial infarction", "heart failure",
	"cardiomyopathy", "cardiac arrest",
}

// MemoryTool summarizes the symptoms mentioned in the latest turn.
type MemoryTool struct {
	extractor port.PhraseExtractor
	completer port.Completer
	timeouts  Timeouts
}

func NewMemoryTool(extractor port.PhraseExtractor, completer port.Completer, timeouts Timeouts) *MemoryTool {
	return &MemoryTool{extractor: extractor, completer: completer, timeouts: timeouts}
}

func (t *MemoryTool) Name() string        { return domain.ToolMemorySummarize }
func (t *MemoryTool) Description() string { return "Summary of previously mentioned symptoms" }

func (t *MemoryTool) Run(ctx context.Context, req port.ToolRequest) (*domain.ToolResponse, error) {
	memory := memoryText(req)
	symptoms := MatchSymptoms(t.extractor.NounPhrases(memory))

	symptomContext := domain.MsgNoSymptoms
	if len(symptoms) > 0 {
		symptomContext = fmt.Sprintf("Previously mentioned symptoms include: %s.", strings.Join(symptoms, ", "))
	}

	messages := []domain.Message{
		domain.SystemMessage(memorySystem),
		domain.AssistantMessage(memory),
		domain.UserMessage(fmt.Sprintf(
			"The patient previously reported: %s\n\nSymptoms extracted: %s\n"+
				"Please provide a clear, concise, and helpful summary of these symptoms and suggest next steps.",
			memory, symptomContext)),
	}
	answer, err := complete(ctx, t.completer, t.timeouts.Completion, messages, req.Model)
	if err != nil {
		return nil, err
	}

	return &domain.ToolResponse{Tool: t.Name(), Body: answer}, nil
}

// memoryText is the latest turn's user text, or the query when there is no history.
func memoryText(req port.ToolRequest) string {
	if latest, ok := req.History.Latest(); ok && strings.TrimSpace(latest.User) != "" {
		return latest.User
	}
	return req.Query
}

// MatchSymptoms returns the hints contained in any of the phrases, sorted and without duplicates.
func MatchSymptoms(phrases []string) []string {
	found := make(map[string]struct{})
	for _, phrase := range phrases {
		lower := strings.ToLower(phrase)
		for _, hint := range SymptomHints {
			if strings.Contains(lower, hint) {
				found[hint] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(found))
	for hint := range found {
		out = append(out, hint)
	}
	sort.Strings(out)
	return out
}
