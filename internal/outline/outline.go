// Package outline models the editable section-title list that feeds the
// outline checkpoint: an ordered mutable list, the pipeline's original
// proposal kept for reset, and the subset of titles flagged for
// per-section human review.
package outline

import "strings"

// Model is one job's outline under human editing. Not safe for concurrent
// use; the owning session serializes access.
type Model struct {
	titles   []string
	original []string
	hil      map[string]bool
}

// New builds a Model from the pipeline-proposed titles. The proposal is
// retained verbatim as the reset baseline.
func New(proposed []string) *Model {
	m := &Model{
		titles:   append([]string(nil), proposed...),
		original: append([]string(nil), proposed...),
		hil:      map[string]bool{},
	}
	return m
}

// Titles returns the current ordered title list as a copy.
func (m *Model) Titles() []string {
	return append([]string(nil), m.titles...)
}

// Original returns the pipeline-proposed titles the model was created with.
func (m *Model) Original() []string {
	return append([]string(nil), m.original...)
}

// Add appends an empty editable title.
func (m *Model) Add() {
	m.titles = append(m.titles, "")
}

// Update replaces the title at index. Out-of-range indexes are ignored.
func (m *Model) Update(index int, text string) {
	if index < 0 || index >= len(m.titles) {
		return
	}
	m.titles[index] = text
	m.pruneHILTargets()
}

// Remove deletes the title at index. Removing the last item yields an empty
// list; out-of-range indexes are ignored.
func (m *Model) Remove(index int) {
	if index < 0 || index >= len(m.titles) {
		return
	}
	m.titles = append(m.titles[:index], m.titles[index+1:]...)
	m.pruneHILTargets()
}

// Reorder replaces the whole list with newOrder, as produced by a
// drag-reorder of the current titles.
func (m *Model) Reorder(newOrder []string) {
	m.titles = append([]string(nil), newOrder...)
	m.pruneHILTargets()
}

// Reset restores the original pipeline-proposed titles, discarding all
// human edits and review targets.
func (m *Model) Reset() {
	m.titles = append([]string(nil), m.original...)
	m.hil = map[string]bool{}
}

// ToggleHILTarget flips whether title is selected for per-section human
// review. Titles not currently in the list are ignored.
func (m *Model) ToggleHILTarget(title string) {
	if !m.contains(title) {
		return
	}
	if m.hil[title] {
		delete(m.hil, title)
		return
	}
	m.hil[title] = true
}

// HILTargets returns the selected titles in current list order.
func (m *Model) HILTargets() []string {
	var targets []string
	for _, title := range m.titles {
		if m.hil[title] {
			targets = append(targets, title)
		}
	}
	return targets
}

// Serialize joins the trimmed non-empty titles by newline, in order. Empty
// titles are dropped silently; they count as deleted, not as errors.
func (m *Model) Serialize() string {
	var kept []string
	for _, title := range m.titles {
		trimmed := strings.TrimSpace(title)
		if trimmed == "" {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

// ParseTitles inverts Serialize: newline-separated, trimmed, empties dropped.
func ParseTitles(serialized string) []string {
	var titles []string
	for _, line := range strings.Split(serialized, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		titles = append(titles, trimmed)
	}
	return titles
}

func (m *Model) contains(title string) bool {
	for _, t := range m.titles {
		if t == title {
			return true
		}
	}
	return false
}

// pruneHILTargets drops review targets whose titles left the list, so no
// dangling references survive a deletion, rename, or reorder.
func (m *Model) pruneHILTargets() {
	for title := range m.hil {
		if !m.contains(title) {
			delete(m.hil, title)
		}
	}
}
