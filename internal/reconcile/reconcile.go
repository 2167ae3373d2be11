// Package reconcile applies an externally produced text replacement back
// into a live document whose content may have moved since the replacement's
// target range was captured. Stale offsets are never trusted: content is
// verified before any write, and ambiguity fails instead of guessing.
package reconcile

import "strings"

// Range is a half-open character span [From, To) captured against the
// document at selection time.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Proposal pairs the text a replacement was generated against with its
// replacement, plus the captured range when one exists. Agents records
// which models produced the edit, for provenance display only.
type Proposal struct {
	Original string   `json:"original"`
	Edited   string   `json:"edited"`
	Range    *Range   `json:"range,omitempty"`
	Agents   []string `json:"agents,omitempty"`
}

// Reason explains an Apply outcome.
type Reason string

const (
	ReasonOK       Reason = "ok"
	ReasonPending  Reason = "pending"
	ReasonStale    Reason = "stale"
	ReasonNotFound Reason = "not_found"
)

// Result is the typed outcome of an Apply. Failures are values: Document is
// only set on success and the input document is never mutated.
type Result struct {
	Success  bool   `json:"success"`
	Document string `json:"document,omitempty"`
	Reason   Reason `json:"reason"`
}

// Document is the live canvas text at apply time. Ready is false while the
// content is still streaming in; nothing may be applied to a moving target.
type Document struct {
	Text  string
	Ready bool
}

// Apply reconciles a proposal into doc.
//
// The captured range is honored only when the document still carries the
// exact original text at those offsets. Otherwise the document has drifted
// since capture, and Apply falls back to a literal content search: a unique
// occurrence is replaced, zero occurrences fail with not_found, and multiple
// occurrences fail with stale because picking one silently would corrupt the
// document. Callers surface stale/not_found to the human for reselection.
func Apply(doc Document, p Proposal) Result {
	if !doc.Ready {
		return Result{Reason: ReasonPending}
	}
	text := doc.Text

	if p.Range != nil && rangeValid(*p.Range, len(text)) {
		if text[p.Range.From:p.Range.To] == p.Original {
			return Result{
				Success:  true,
				Document: text[:p.Range.From] + p.Edited + text[p.Range.To:],
				Reason:   ReasonOK,
			}
		}
	}

	switch strings.Count(text, p.Original) {
	case 0:
		return Result{Reason: ReasonNotFound}
	case 1:
		idx := strings.Index(text, p.Original)
		return Result{
			Success:  true,
			Document: text[:idx] + p.Edited + text[idx+len(p.Original):],
			Reason:   ReasonOK,
		}
	default:
		return Result{Reason: ReasonStale}
	}
}

func rangeValid(r Range, docLen int) bool {
	return r.From >= 0 && r.To >= r.From && r.To <= docLen
}
