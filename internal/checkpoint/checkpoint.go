// Package checkpoint implements the human-in-the-loop gate for a document
// pipeline run: at most one pending request per job, superseded on arrival
// of a newer one, resolved by exactly one human decision.
package checkpoint

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Kind names the pipeline gates that pause for a human decision.
type Kind string

const (
	KindOutline      Kind = "outline"
	KindSection      Kind = "section"
	KindDivergence   Kind = "divergence"
	KindCorrection   Kind = "correction"
	KindFinal        Kind = "final"
	KindDocumentGate Kind = "document_gate"
	KindStyleCheck   Kind = "style_check"
)

func (k Kind) Valid() bool {
	switch k {
	case KindOutline, KindSection, KindDivergence, KindCorrection,
		KindFinal, KindDocumentGate, KindStyleCheck:
		return true
	}
	return false
}

// AuditIssue is one finding attached to a divergence or correction gate.
type AuditIssue struct {
	Section     string `json:"section,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description"`
}

// Request identifies one pending gate and its kind-specific payload.
type Request struct {
	RequestID string `json:"request_id"`
	JobID     string `json:"job_id"`
	Kind      Kind   `json:"checkpoint"`

	Outline          []string           `json:"outline,omitempty"`
	SectionTitle     string             `json:"section_title,omitempty"`
	Content          string             `json:"content,omitempty"`
	Issues           []AuditIssue       `json:"issues,omitempty"`
	Report           string             `json:"report,omitempty"`
	MissingDocuments []string           `json:"missing_documents,omitempty"`
	StyleMetrics     map[string]float64 `json:"style_metrics,omitempty"`
}

// Decision is the human's response to a pending Request, sent back to the
// pipeline. Edits only travel with approvals, instructions and proposal only
// with rejections; Normalize enforces that instead of rejecting imprecise
// payloads from the UI layer.
type Decision struct {
	RequestID         string   `json:"request_id"`
	Checkpoint        Kind     `json:"checkpoint"`
	Approved          bool     `json:"approved"`
	Edits             string   `json:"edits,omitempty"`
	Instructions      string   `json:"instructions,omitempty"`
	Proposal          string   `json:"proposal,omitempty"`
	HILTargetSections []string `json:"hil_target_sections,omitempty"`
}

var (
	ErrNonePending  = errors.New("no checkpoint pending")
	ErrStaleRequest = errors.New("checkpoint request superseded")
)

// Machine holds the single pending gate of one pipeline run.
type Machine struct {
	mu      sync.Mutex
	pending *Request
}

func NewMachine() *Machine {
	return &Machine{}
}

// Raise installs req as the pending gate. Only one human decision is in
// flight per job, so an already-pending request is replaced, not queued; the
// superseded request is returned so the caller can tell the UI. Requests
// arriving without an ID get one assigned.
func (m *Machine) Raise(req Request) (superseded *Request) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	superseded = m.pending
	copied := req
	m.pending = &copied
	return superseded
}

// Pending returns a copy of the current pending request, or nil.
func (m *Machine) Pending() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	copied := *m.pending
	return &copied
}

// Clear drops any pending request. Used when the owning job goes away.
func (m *Machine) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

// Approve resolves the pending gate positively and returns the decision to
// submit. requestID must match the pending request: a decision targeting a
// superseded request is stale and must not reach the pipeline.
func (m *Machine) Approve(requestID, edits string, hilTargets []string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, err := m.take(requestID)
	if err != nil {
		return Decision{}, err
	}
	return Normalize(Decision{
		RequestID:         req.RequestID,
		Checkpoint:        req.Kind,
		Approved:          true,
		Edits:             edits,
		HILTargetSections: hilTargets,
	}), nil
}

// Reject resolves the pending gate negatively, with instructions for the
// pipeline and an optional alternative full-text proposal.
func (m *Machine) Reject(requestID, instructions, proposal string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, err := m.take(requestID)
	if err != nil {
		return Decision{}, err
	}
	return Normalize(Decision{
		RequestID:    req.RequestID,
		Checkpoint:   req.Kind,
		Approved:     false,
		Instructions: instructions,
		Proposal:     proposal,
	}), nil
}

// take validates the pending request against requestID and consumes it,
// returning the machine to its no-pending state.
func (m *Machine) take(requestID string) (Request, error) {
	if m.pending == nil {
		return Request{}, ErrNonePending
	}
	if requestID != "" && requestID != m.pending.RequestID {
		return Request{}, ErrStaleRequest
	}
	req := *m.pending
	m.pending = nil
	return req, nil
}

// Normalize drops decision fields that are inconsistent with the approval
// flag or with the checkpoint kind's transition set. The UI that builds
// decisions is trusted but may be imprecise in edge flows.
func Normalize(d Decision) Decision {
	if d.Approved {
		d.Instructions = ""
		d.Proposal = ""
	} else {
		d.Edits = ""
		d.HILTargetSections = nil
	}
	if d.Checkpoint != KindOutline {
		d.HILTargetSections = nil
	}
	switch d.Checkpoint {
	case KindDocumentGate:
		// Binary gate: block or proceed with caveat, nothing free-text.
		d.Edits = ""
		d.Instructions = ""
		d.Proposal = ""
	case KindStyleCheck:
		d.Proposal = ""
	}
	return d
}
