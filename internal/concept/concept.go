// Package concept synthesizes a higher-level concept from accumulated
// knowledge entries with two generative calls: a five-section report, then a
// structured JSON rendering of that report.
package concept

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/growthbot/internal/llm"
	"github.com/rcliao/growthbot/internal/model"
)

var (
	// ErrEmptyReport means the summarize step produced no text.
	ErrEmptyReport = errors.New("concept report is empty")

	// ErrInvalidConcept means the structure step did not return a usable
	// concept object.
	ErrInvalidConcept = errors.New("invalid concept JSON")
)

// Result is the output of one synthesis.
type Result struct {
	Report  string
	Concept model.Concept
}

// Synthesizer turns knowledge entries into a Concept.
type Synthesizer struct {
	gen    llm.Generator
	logger *zap.Logger
	now    func() time.Time
}

// New creates a synthesizer.
func New(gen llm.Generator, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{gen: gen, logger: logger, now: time.Now}
}

// Synthesize runs both steps.
func (s *Synthesizer) Synthesize(ctx context.Context, entries []model.KnowledgeEntry) (*Result, error) {
	report, err := s.Summarize(ctx, entries)
	if err != nil {
		return nil, err
	}
	c, err := s.Structure(ctx, report)
	if err != nil {
		return nil, err
	}
	return &Result{Report: report, Concept: *c}, nil
}

// Summarize writes the research-report style summary of entries.
func (s *Synthesizer) Summarize(ctx context.Context, entries []model.KnowledgeEntry) (string, error) {
	s.logger.Info("summarizing knowledge", zap.Int("entries", len(entries)))

	report, err := s.gen.Generate(ctx, llm.Request{Prompt: reportPrompt(KnowledgeText(entries))})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	report = strings.TrimSpace(report)
	if report == "" {
		return "", ErrEmptyReport
	}
	if missing := MissingSections(report); len(missing) > 0 {
		s.logger.Warn("concept report is missing sections", zap.Strings("sections", missing))
	}
	return report, nil
}

// Structure converts a report into a Concept. There is no partial fallback:
// anything but a complete JSON object is ErrInvalidConcept.
func (s *Synthesizer) Structure(ctx context.Context, report string) (*model.Concept, error) {
	raw, err := s.gen.Generate(ctx, llm.Request{Prompt: structurePrompt(report)})
	if err != nil {
		return nil, fmt.Errorf("structure: %w", err)
	}
	var c model.Concept
	if err := llm.DecodeJSON(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConcept, err)
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidConcept)
	}
	c.CreatedAt = s.now().UTC()
	s.logger.Info("concept synthesized", zap.String("name", c.Name), zap.Int("components", len(c.Components)))
	return &c, nil
}

// KnowledgeText renders entries as the report's source material.
func KnowledgeText(entries []model.KnowledgeEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("Theme: %s\nPost: %s\nDetails: %s",
			e.Theme, e.GeneratedText, e.Research.Details))
	}
	return strings.Join(parts, "\n\n")
}

func reportPrompt(knowledge string) string {
	return `You are a researcher who extracts essential insight from many investigation reports and builds a single concept from an academic point of view.

Analyze the reports below (daily research notes) across the whole set and find the central concept they all share.
Describe that concept as a research report, strictly with the following structure.

# Research report: {a title that names the concept in a few words}

## 1. Background
Why this concept matters now: the social context, technical trends or problems that emerge from the reports.

## 2. Objective
What this report sets out to clarify by analyzing the concept.

## 3. Method
How the components of the concept were identified: which commonalities and patterns were found in the reports and how they were combined.

## 4. Results
The full picture of the central concept and the main components it consists of, as a bullet list.
- **Component A**: (description)
- **Component B**: (description)

## 5. Discussion
What the concept means and why it matters, and which further research or debate is needed.

---
Reports to analyze:
` + knowledge
}

func structurePrompt(report string) string {
	return `You are a data scientist who converts research reports into an exact JSON format.
Read the research report below and convert it strictly into this JSON format:

{
  "name": "(the report title)",
  "summary": "(a summary of the Results section)",
  "components": ["(the main components listed in Results)"],
  "implication": "(a summary of the Discussion section)"
}

---
Report to convert:
` + report
}
