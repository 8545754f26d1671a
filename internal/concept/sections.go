package concept

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// RequiredSections are the report sections, matched case-insensitively
// against heading text.
var RequiredSections = []string{"background", "objective", "method", "results", "discussion"}

var parser = goldmark.New().Parser()

// Headings returns the text of every heading in a Markdown document.
func Headings(markdown string) []string {
	src := []byte(markdown)
	doc := parser.Parse(text.NewReader(src))

	var headings []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, strings.TrimSpace(inlineText(h, src)))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return headings
}

// MissingSections lists the RequiredSections without a matching heading.
func MissingSections(markdown string) []string {
	headings := Headings(markdown)
	var missing []string
	for _, want := range RequiredSections {
		found := false
		for _, h := range headings {
			if strings.Contains(strings.ToLower(h), want) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	return missing
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}
