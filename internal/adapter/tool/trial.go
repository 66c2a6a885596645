package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"golang.org/x/sync/errgroup"
)

const (
	trialTopK        = 3
	trialSystem      = "You are a medically precise clinical research assistant."
	trialSeparator   = "\n\n---\n\n"
	unknownTrialID   = "Unknown ID"
	trialSummaryTmpl = "You are a clinical assistant reviewing a matched clinical trial.\n" +
		"Summarize the trial using **bullet points only** for the following fields:\n" +
		"- NCT ID\n- Study Title\n- Conditions\n- Inclusion Criteria\n- Exclusion Criteria\n\n" +
		"Use bullets under each field. Maintain a clean format. Respond only with the summary.\n\n" +
		"Trial Description:\nNCT ID: %s\n%s"
)

// TrialTool matches a note against the indexed clinical trials. With retrieval
// on, each match is summarized by the model; otherwise the raw text is shown.
type TrialTool struct {
	embedder  port.Embedder
	store     port.VectorStore
	completer port.Completer
	timeouts  Timeouts
}

func NewTrialTool(embedder port.Embedder, store port.VectorStore, completer port.Completer, timeouts Timeouts) *TrialTool {
	return &TrialTool{embedder: embedder, store: store, completer: completer, timeouts: timeouts}
}

func (t *TrialTool) Name() string { return domain.ToolTrialMatcher }
func (t *TrialTool) Description() string {
	return "Clinical trial matching for a patient note"
}

func (t *TrialTool) Run(ctx context.Context, req port.ToolRequest) (*domain.ToolResponse, error) {
	result, err := retrieve(ctx, t.embedder, t.store, t.timeouts.Vector, domain.CollectionClinicalTrials, req.Query, trialTopK)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return &domain.ToolResponse{Tool: t.Name(), Body: domain.MsgNoTrials}, nil
	}

	blocks := make([]string, len(result.Documents))
	if req.UseRAG {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(trialTopK)
		for i, doc := range result.Documents {
			eg.Go(func() error {
				id, text := trialFields(doc)
				messages := []domain.Message{
					domain.SystemMessage(trialSystem),
					domain.UserMessage(fmt.Sprintf(trialSummaryTmpl, id, text)),
				}
				summary, err := complete(egCtx, t.completer, t.timeouts.Completion, messages, req.Model)
				if err != nil {
					return err
				}
				blocks[i] = fmt.Sprintf("### Trial %d:\n%s", i+1, summary)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, doc := range result.Documents {
			id, text := trialFields(doc)
			blocks[i] = fmt.Sprintf("### Trial %d:\nNCT ID: %s\n\n%s", i+1, id, text)
		}
	}

	resp := &domain.ToolResponse{
		Tool:      t.Name(),
		Body:      strings.Join(blocks, trialSeparator),
		PoweredBy: t.completer.ProviderName(),
		UsedRAG:   req.UseRAG,
	}
	if req.UseRAG {
		resp.PoweredBy = poweredBy(t.completer.ProviderName(), "RAG")
	}
	return resp, nil
}

func trialFields(doc domain.Document) (string, string) {
	return doc.Metadata.String(domain.MetaNCTID, unknownTrialID),
		truncateRunes(strings.TrimSpace(doc.Text), maxContextChars)
}
