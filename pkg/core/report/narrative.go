package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"agentic_dcf/pkg/core/llm"
	"agentic_dcf/pkg/core/utils"
)

const narrativeSystemPrompt = `You are an equity analyst writing the narrative sections of a DCF report.
Use only the numbers present in the report. Do not invent figures.
Reply with JSON: {"sections":[{"title":"...","paragraphs":["..."],"refs":["..."]}]}.
Use at most three sections, such as "Investment Thesis", "Key Risks" and "What Moves the Value".`

// Section is one narrative block produced by a model.
type Section struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
	Refs       []string `json:"refs,omitempty"`
}

// Narrative is the decoded model reply.
type Narrative struct {
	Sections []Section `json:"sections"`
}

// NarrativeWriter adds model-written sections to the deterministic report.
// The numbers in the report are never produced by the model.
type NarrativeWriter struct {
	Provider llm.Provider
	Model    string
}

// Write renders r and merges the narrative in front of the per-year table.
// A provider or decoding failure returns the deterministic report with the error.
func (w *NarrativeWriter) Write(ctx context.Context, r Report) (string, error) {
	base := r.Markdown()
	if w == nil || w.Provider == nil {
		return base, nil
	}

	opts := map[string]interface{}{llm.OptJSON: true, llm.OptTemperature: 0.0}
	if w.Model != "" {
		opts[llm.OptModel] = w.Model
	}
	system := w.Provider.AdaptInstructions(narrativeSystemPrompt)
	reply, err := w.Provider.GenerateResponse(ctx, base, system, opts)
	if err != nil {
		log.Warn().Err(err).Str("ticker", r.Inputs.Ticker).Msg("[REPORT] narrative generation failed, using deterministic report")
		return base, fmt.Errorf("narrative generation: %w", err)
	}

	var n Narrative
	strategy, err := utils.SmartParse(reply, &n)
	if err != nil {
		log.Warn().Err(err).Str("ticker", r.Inputs.Ticker).Msg("[REPORT] narrative reply not parsable")
		return base, fmt.Errorf("narrative decode: %w", err)
	}
	log.Debug().Str("strategy", strategy).Int("sections", len(n.Sections)).Msg("[REPORT] narrative parsed")
	return MergeNarrative(base, n), nil
}

// MergeNarrative inserts sections before the per-year table, or at the end when the
// table is absent. Sections whose title already appears are skipped.
func MergeNarrative(md string, n Narrative) string {
	var ins strings.Builder
	for _, s := range n.Sections {
		title := strings.TrimSpace(s.Title)
		if title == "" || strings.Contains(md, "## "+title+"\n") {
			continue
		}
		ins.WriteString("## " + title + "\n\n")
		for _, p := range s.Paragraphs {
			if p = strings.TrimSpace(p); p != "" {
				ins.WriteString(p + "\n\n")
			}
		}
		var refs []string
		for _, r := range s.Refs {
			if r = strings.TrimSpace(r); r != "" {
				refs = append(refs, r)
			}
		}
		if len(refs) > 0 {
			ins.WriteString("[ref:" + strings.Join(refs, ";") + "]\n\n")
		}
	}
	if ins.Len() == 0 {
		return md
	}
	idx := strings.Index(md, SectionPerYear)
	if idx < 0 {
		return strings.TrimRight(md, "\n") + "\n\n" + strings.TrimRight(ins.String(), "\n") + "\n"
	}
	return md[:idx] + ins.String() + md[idx:]
}
