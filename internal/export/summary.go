// ABOUTME: Project summary: equipment counts plus a short narrative for the proposal.
// ABOUTME: The narrative comes from OpenAI when a key is configured, with a static fallback.

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/config"
	"github.com/2389/sitewalk/internal/equipment"
	"github.com/2389/sitewalk/internal/llm"
	"github.com/2389/sitewalk/internal/store"
)

// Narrative sources.
const (
	SourceAI     = "ai"
	SourceStatic = "static"
)

// KindCount is the number of rows of one equipment kind.
type KindCount struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Singular string `json:"singular"`
	Count    int    `json:"count"`
}

type Summary struct {
	Project   *store.Project `json:"project"`
	Counts    []KindCount    `json:"counts"`
	Total     int            `json:"total"`
	Narrative string         `json:"narrative"`
	Source    string         `json:"source"`
}

// Summarizer writes project summaries.
type Summarizer struct {
	ai     *llm.Client
	logger zerolog.Logger
}

// NewSummarizer uses OpenAI when cfg carries an API key.
func NewSummarizer(cfg config.OpenAIConfig, logger zerolog.Logger) *Summarizer {
	s := &Summarizer{ai: llm.New(cfg), logger: logger}
	if s.ai != nil {
		logger.Info().Str("model", cfg.Model).Msg("OpenAI API key found, summaries use AI narratives")
	} else {
		logger.Info().Msg("no OpenAI API key, summaries use static narratives")
	}
	return s
}

// Summarize counts a project's equipment and writes the narrative. AI
// failures fall back to the static narrative rather than failing.
func (s *Summarizer) Summarize(ctx context.Context, st *store.Store, reg *equipment.Registry, projectID int64) (*Summary, error) {
	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byTable, err := st.EquipmentCounts(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("counting equipment: %w", err)
	}

	sum := &Summary{Project: project}
	for _, kind := range reg.All() {
		n := byTable[kind.Table]
		sum.Counts = append(sum.Counts, KindCount{Slug: kind.Slug, Title: kind.Title, Singular: kind.Singular, Count: n})
		sum.Total += n
	}

	sum.Narrative, sum.Source = staticNarrative(sum), SourceStatic
	if s.ai == nil {
		return sum, nil
	}
	narrative, err := s.narrate(ctx, sum)
	if err != nil {
		s.logger.Warn().Err(err).Int64("project_id", projectID).Msg("AI narrative failed, using static")
		return sum, nil
	}
	sum.Narrative, sum.Source = narrative, SourceAI
	return sum, nil
}

func staticNarrative(sum *Summary) string {
	p := sum.Project
	var b strings.Builder
	b.WriteString(p.Name)
	if p.Client != "" {
		fmt.Fprintf(&b, " for %s", p.Client)
	}
	if p.WalkDate != "" {
		fmt.Fprintf(&b, ", walked %s", p.WalkDate)
	}
	b.WriteString(". ")

	if sum.Total == 0 {
		b.WriteString("No equipment has been recorded yet.")
		return b.String()
	}

	var parts []string
	for _, c := range sum.Counts {
		if c.Count == 0 {
			continue
		}
		noun := strings.ToLower(c.Singular)
		if c.Count != 1 {
			noun += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", c.Count, noun))
	}
	items := "items"
	if sum.Total == 1 {
		items = "item"
	}
	fmt.Fprintf(&b, "Recorded %d %s: %s.", sum.Total, items, strings.Join(parts, ", "))
	return b.String()
}

const narratorRole = "You write concise proposal copy for a security integrator."

type narrativeResponse struct {
	Narrative string `json:"narrative"`
}

func (s *Summarizer) narrate(ctx context.Context, sum *Summary) (string, error) {
	facts, err := json.Marshal(sum)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(`Write a 2-3 sentence scope summary for a physical security proposal based on this site walk:
%s

Mention the building, the client, and the equipment counts. Door schedule rows are card-access doors.
Return JSON with a single field: narrative.`, facts)

	out, err := llm.JSON[narrativeResponse](ctx, s.ai, narratorRole, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Narrative) == "" {
		return "", fmt.Errorf("empty narrative from OpenAI")
	}
	return out.Narrative, nil
}
