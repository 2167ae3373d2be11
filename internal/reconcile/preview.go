package reconcile

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line is one row of a rendered proposal preview.
type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// Hunk groups preview lines for the UI.
type Hunk struct {
	Lines []Line `json:"lines"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// MaxPreviewLines caps the preview size; legal exhibits can run to
// thousands of pages and the UI only needs to say "too large to preview".
const MaxPreviewLines = 5000

// Preview renders the line-level difference between a proposal's original
// and edited text for human review before apply.
func Preview(p Proposal) []Hunk {
	return lineDiff(p.Original, p.Edited)
}

// PreviewWithLimit is Preview with an explicit line cap. The boolean result
// reports whether the preview was suppressed for size.
func PreviewWithLimit(p Proposal, maxLines int) ([]Hunk, bool) {
	if maxLines <= 0 {
		maxLines = MaxPreviewLines
	}
	if lineCount(p.Original)+lineCount(p.Edited) > maxLines {
		return nil, true
	}
	return Preview(p), false
}

func lineDiff(before, after string) []Hunk {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldLine := 1
	newLine := 1
	for _, diff := range diffs {
		chunkLines := strings.Split(diff.Text, "\n")
		if len(chunkLines) > 0 && chunkLines[len(chunkLines)-1] == "" {
			chunkLines = chunkLines[:len(chunkLines)-1]
		}
		for _, line := range chunkLines {
			switch diff.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: line, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: line, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: line, NewLine: newLine})
				newLine++
			}
		}
	}
	return []Hunk{{Lines: lines}}
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
