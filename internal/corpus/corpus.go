// Package corpus loads the base knowledge corpus from disk and prepares it,
// together with synthesized concepts, as clustering input.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/rcliao/growthbot/internal/model"
)

// DefaultBudget bounds the combined clustering input, in runes.
const DefaultBudget = 60000

// Document is one file of the base corpus.
type Document struct {
	Name string
	Text string
}

// Load reads every .txt, .md, .pdf and .docx file directly inside dir,
// sorted by name. A missing directory yields an empty corpus.
func Load(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []Document
	for _, name := range names {
		path := filepath.Join(dir, name)
		var text string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt", ".md":
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
			text = string(b)
		case ".pdf":
			text, err = pdfText(path)
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", name, err)
			}
		case ".docx":
			text, err = docxText(path)
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", name, err)
			}
		default:
			continue
		}
		if strings.TrimSpace(text) != "" {
			docs = append(docs, Document{Name: name, Text: text})
		}
	}
	return docs, nil
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages the extractor cannot decode.
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			b.WriteString(t)
			b.WriteString("\n\n")
		}
	}
	return b.String(), nil
}

// Combine renders the corpus sections followed by the concept, keeping the
// result within budget runes. The concept is always kept; corpus sections
// are dropped from the end once the budget is spent. A concept longer than
// the whole budget is cut to fit.
func Combine(docs []Document, concept *model.Concept, budget int) string {
	if budget <= 0 {
		budget = DefaultBudget
	}

	var conceptText string
	if concept != nil && concept.Name != "" {
		conceptText = renderConcept(*concept)
		if r := []rune(conceptText); len(r) > budget {
			conceptText = string(r[:budget])
		}
	}
	remaining := budget - runeLen(conceptText)

	var b strings.Builder
docs:
	for _, d := range docs {
		for _, s := range Split(d.Text, DefaultOptions()) {
			n := runeLen(s.Text) + 2
			if n > remaining {
				break docs
			}
			b.WriteString(s.Text)
			b.WriteString("\n\n")
			remaining -= n
		}
	}
	b.WriteString(conceptText)
	return strings.TrimSpace(b.String())
}

func renderConcept(c model.Concept) string {
	var b strings.Builder
	b.WriteString("# High-level concepts\n\n")
	fmt.Fprintf(&b, "## %s\n\n", c.Name)
	if c.Summary != "" {
		b.WriteString(c.Summary + "\n\n")
	}
	for _, comp := range c.Components {
		b.WriteString("- " + comp + "\n")
	}
	if c.Implication != "" {
		b.WriteString("\n" + c.Implication + "\n")
	}
	return b.String()
}
