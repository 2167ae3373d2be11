// Package stream holds the pipeline progress event model and the pure
// reducer that folds an event log into a renderable snapshot.
package stream

import (
	"bytes"
	"encoding/json"
)

// Kind discriminates pipeline progress events. The vocabulary is closed:
// the reducer ignores anything it does not recognize instead of failing,
// because upstream stages ship event kinds at their own pace.
type Kind string

const (
	KindProviderStart    Kind = "provider_start"
	KindProviderThinking Kind = "provider_thinking"
	KindProviderSource   Kind = "provider_source"
	KindProviderDone     Kind = "provider_done"
	KindProviderError    Kind = "provider_error"
	KindCacheHit         Kind = "cache_hit"

	KindMergeStart Kind = "merge_start"
	KindMergeDone  Kind = "merge_done"

	KindStudyOutline Kind = "study_outline"
	KindStudyToken   Kind = "study_token"
	KindStudyDone    Kind = "study_done"

	KindAgentIteration  Kind = "agent_iteration"
	KindAgentThinking   Kind = "agent_thinking"
	KindAgentToolCall   Kind = "agent_tool_call"
	KindAgentToolResult Kind = "agent_tool_result"
	KindAgentAskUser    Kind = "agent_ask_user"

	KindSectionProcessed  Kind = "section_processed"
	KindQualityGateDone   Kind = "quality_gate_done"
	KindStructuralFixDone Kind = "structural_fix_done"
	KindTargetedPatchDone Kind = "targeted_patch_done"
	KindQualityReportDone Kind = "quality_report_done"
)

// Event is one progress record as delivered by the pipeline. Fields beyond
// Type are kind-specific; absent fields decode to zero values and the
// reducer decides per kind which ones are required.
type Event struct {
	Type     Kind   `json:"type"`
	Provider string `json:"provider,omitempty"`
	Section  string `json:"section,omitempty"`

	Text     string `json:"text,omitempty"`
	Token    string `json:"token,omitempty"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Question string `json:"question,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   string `json:"status,omitempty"`

	Sections []string `json:"sections,omitempty"`

	Iteration int             `json:"iteration,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    string          `json:"result,omitempty"`
	CallID    string          `json:"call_id,omitempty"`

	ResultsCount     int      `json:"results_count,omitempty"`
	Passed           *bool    `json:"passed,omitempty"`
	Issues           []string `json:"issues,omitempty"`
	PendingCitations int      `json:"pending_citations,omitempty"`
	RemovedClaims    int      `json:"removed_claims,omitempty"`
	RiskFlags        int      `json:"risk_flags,omitempty"`
	Report           string   `json:"report,omitempty"`
}

// ParseLines decodes a newline-delimited batch of event records. Lines that
// fail to decode are dropped; a malformed record never poisons the batch.
func ParseLines(data []byte) []Event {
	lines := bytes.Split(data, []byte("\n"))
	var events []Event
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// ParseBatch decodes a JSON array of event records. Entries that fail to
// decode individually are dropped.
func ParseBatch(raw json.RawMessage) []Event {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	var events []Event
	for _, entry := range entries {
		var evt Event
		if err := json.Unmarshal(entry, &evt); err != nil {
			continue
		}
		events = append(events, evt)
	}
	return events
}
