package service_test

import (
	"testing"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/service"
	"github.com/m-mizutani/gt"
)

func TestRouterSelect(t *testing.T) {
	r := service.NewRouter()

	testCases := []struct {
		name   string
		query  string
		useRAG bool
		tool   string
		rag    bool
	}{
		{"treatment with rag", "What treatment is recommended for chest pain?", true, domain.ToolTreatment, true},
		{"treatment upper case", "TREATMENT options for asthma", true, domain.ToolTreatment, true},
		{"treatment rag off", "treatment for gout", false, domain.ToolTreatment, false},
		{"trial", "trial for diabetes", true, domain.ToolTrialMatcher, true},
		{"trial substring misfire is kept", "it was trial and error", true, domain.ToolTrialMatcher, true},
		{"symptom never passes rag", "Symptom: persistent cough", true, domain.ToolSymptomSearch, false},
		{"symptom wins over treatment", "symptom treatment", true, domain.ToolSymptomSearch, false},
		{"treatment wins over trial", "trial of treatment", true, domain.ToolTreatment, true},
		{"fallback", "I felt dizzy yesterday", true, domain.ToolMemorySummarize, false},
		{"empty query falls back", "", true, domain.ToolMemorySummarize, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := domain.Query{Text: tc.query, Model: domain.ModelDeepseek70B, UseRAG: tc.useRAG}
			history := domain.ChatHistory{{User: tc.query}}

			route := r.Select(q, history)
			gt.Value(t, route.Tool).Equal(tc.tool)
			gt.Value(t, route.Request.UseRAG).Equal(tc.rag)
			gt.Value(t, route.Request.Query).Equal(tc.query)
			gt.Value(t, route.Request.Model).Equal(domain.ModelDeepseek70B)
			gt.Value(t, route.Request.History).Equal(history)
		})
	}
}

func TestTriggerOrder(t *testing.T) {
	keywords := make([]string, len(service.Triggers))
	for i, tr := range service.Triggers {
		keywords[i] = tr.Keyword
	}
	gt.Value(t, keywords).Equal([]string{"symptom", "treatment", "trial"})
}
