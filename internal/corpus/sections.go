package corpus

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 1200
	DefaultMaxSize    = 2000
)

// Options configures splitting. Sizes are in runes.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default splitting options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// Section is a contiguous piece of a document.
type Section struct {
	Text      string
	StartLine int
	EndLine   int
}

// Split breaks text into sections on Markdown headings and blank-line
// paragraphs, merging small blocks up to TargetSize and cutting anything
// longer than MaxSize. Short text (<= MaxSize) is a single section.
func Split(text string, opts Options) []Section {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if runeLen(text) <= opts.MaxSize {
		return []Section{{Text: text, StartLine: 1, EndLine: strings.Count(text, "\n") + 1}}
	}

	return merge(splitBlocks(text), opts)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// splitBlocks splits on heading lines and blank lines.
func splitBlocks(text string) []Section {
	lines := strings.Split(text, "\n")
	var blocks []Section
	var current []string
	startLine := 1

	flush := func(endLine int) {
		if t := strings.TrimSpace(strings.Join(current, "\n")); t != "" {
			blocks = append(blocks, Section{Text: t, StartLine: startLine, EndLine: endLine})
		}
		current = nil
		startLine = endLine + 1
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "#") && len(current) > 0:
			flush(lineNum - 1)
		case trimmed == "" && len(current) > 0:
			flush(lineNum - 1)
			startLine = lineNum + 1
			continue
		case trimmed == "":
			startLine = lineNum + 1
			continue
		}
		current = append(current, line)
	}
	flush(len(lines))

	return blocks
}

// merge combines small blocks and cuts oversized ones.
func merge(blocks []Section, opts Options) []Section {
	var out []Section
	var acc Section

	flush := func() {
		if acc.Text == "" {
			return
		}
		if runeLen(acc.Text) > opts.MaxSize {
			out = append(out, cut(acc, opts)...)
		} else {
			out = append(out, acc)
		}
		acc = Section{}
	}

	for _, b := range blocks {
		if acc.Text == "" {
			acc = b
			continue
		}
		combined := acc.Text + "\n\n" + b.Text
		if runeLen(combined) <= opts.TargetSize {
			acc.Text = combined
			acc.EndLine = b.EndLine
			continue
		}
		flush()
		acc = b
	}
	flush()

	return out
}

// cut breaks an oversized block on line boundaries, and a single oversized
// line on rune boundaries.
func cut(s Section, opts Options) []Section {
	lines := strings.Split(s.Text, "\n")
	var out []Section
	var current []string
	curStart := s.StartLine
	curLen := 0

	emit := func(endLine int) {
		if t := strings.TrimSpace(strings.Join(current, "\n")); t != "" {
			out = append(out, Section{Text: t, StartLine: curStart, EndLine: endLine})
		}
		current = nil
		curLen = 0
	}

	for i, line := range lines {
		lineNum := s.StartLine + i
		n := runeLen(line)

		if n > opts.MaxSize {
			emit(lineNum - 1)
			for _, piece := range runeChunks(line, opts.TargetSize) {
				out = append(out, Section{Text: piece, StartLine: lineNum, EndLine: lineNum})
			}
			curStart = lineNum + 1
			continue
		}

		if curLen+n > opts.TargetSize && len(current) > 0 {
			emit(lineNum - 1)
			curStart = lineNum
		}
		current = append(current, line)
		curLen += n + 1
	}
	emit(s.StartLine + len(lines) - 1)

	return out
}

func runeChunks(s string, size int) []string {
	var out []string
	r := []rune(s)
	for len(r) > 0 {
		n := size
		if n > len(r) {
			n = len(r)
		}
		if t := strings.TrimSpace(string(r[:n])); t != "" {
			out = append(out, t)
		}
		r = r[n:]
	}
	return out
}
