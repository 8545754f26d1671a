package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadings(t *testing.T) {
	got := Headings("# Title *emphasized*\n\ntext\n\n## 1. Background\n\nSetext\n------\n")
	assert.Equal(t, []string{"Title emphasized", "1. Background", "Setext"}, got)
}

func TestMissingSections(t *testing.T) {
	assert.Empty(t, MissingSections(report))

	partial := "# R\n\n## Background\n\n## Results and findings\n"
	assert.Equal(t, []string{"objective", "method", "discussion"}, MissingSections(partial))
}
