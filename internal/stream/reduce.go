package stream

// Status is the derived state of one logical entity in the snapshot.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
	StatusCached  Status = "cached"
)

// ProviderStatus is the derived view of one search provider.
type ProviderStatus struct {
	Status       Status `json:"status"`
	Thinking     string `json:"thinking,omitempty"`
	Sources      int    `json:"sources,omitempty"`
	ResultsCount int    `json:"results_count,omitempty"`
	Error        string `json:"error,omitempty"`
}

// StageStatus is the derived view of a single-shot pipeline stage.
type StageStatus struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// StudyStatus covers the outline-drafting stage, including the streamed
// draft text accumulated from study_token events.
type StudyStatus struct {
	Status  Status   `json:"status"`
	Outline []string `json:"outline,omitempty"`
	Draft   string   `json:"draft,omitempty"`
}

// ToolCall is one agent tool invocation and, once reported, its result.
type ToolCall struct {
	CallID string `json:"call_id,omitempty"`
	Tool   string `json:"tool"`
	Args   string `json:"args,omitempty"`
	Status Status `json:"status"`
	Result string `json:"result,omitempty"`
}

// AgentStatus is the derived view of the drafting agent loop.
type AgentStatus struct {
	Status       Status     `json:"status"`
	Iteration    int        `json:"iteration,omitempty"`
	Thinking     string     `json:"thinking,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	AwaitingUser bool       `json:"awaiting_user,omitempty"`
	Question     string     `json:"question,omitempty"`
}

// SectionStatus is the latest derived state of one drafted section.
type SectionStatus struct {
	Status     Status   `json:"status"`
	Stage      string   `json:"stage,omitempty"`
	GatePassed *bool    `json:"gate_passed,omitempty"`
	Issues     []string `json:"issues,omitempty"`
}

// AuditTotals aggregates the quality audit counters across the run.
type AuditTotals struct {
	PendingCitations int    `json:"pending_citations"`
	RemovedClaims    int    `json:"removed_claims"`
	RiskFlags        int    `json:"risk_flags"`
	Report           string `json:"report,omitempty"`
	ReportReady      bool   `json:"report_ready"`
}

// Snapshot is the reducer's complete derived view of one pipeline run. It is
// recomputed from the full event log on every change, never patched in place.
type Snapshot struct {
	JobID     string                    `json:"job_id"`
	Search    StageStatus               `json:"search"`
	Providers map[string]ProviderStatus `json:"providers"`
	Merge     StageStatus               `json:"merge"`
	Study     StudyStatus               `json:"study"`
	Agent     AgentStatus               `json:"agent"`
	Sections  map[string]SectionStatus  `json:"sections"`
	Audit     AuditTotals               `json:"audit"`
}

// Reduce folds an event log into a Snapshot. It is a pure function of its
// inputs: same log in, same snapshot out, no clocks and no hidden state.
//
// Ordering is arrival order. Later events for a key override earlier ones;
// embedded timestamps are not trusted. Events missing the required field for
// their kind are skipped, unknown kinds are ignored.
//
// Some pipeline stages only emit on completion, so when a job is active the
// stage statuses default to running rather than idle until evidence arrives.
func Reduce(jobID string, events []Event) Snapshot {
	base := StatusIdle
	if jobID != "" {
		base = StatusRunning
	}
	snap := Snapshot{
		JobID:     jobID,
		Search:    StageStatus{Status: base},
		Providers: map[string]ProviderStatus{},
		Merge:     StageStatus{Status: base},
		Study:     StudyStatus{Status: base},
		Agent:     AgentStatus{Status: base},
		Sections:  map[string]SectionStatus{},
	}

	for _, evt := range events {
		switch evt.Type {
		case KindProviderStart:
			if evt.Provider == "" {
				continue
			}
			p := snap.Providers[evt.Provider]
			p.Status = StatusRunning
			snap.Providers[evt.Provider] = p
			snap.Search.Status = StatusRunning

		case KindProviderThinking:
			if evt.Provider == "" {
				continue
			}
			p := snap.Providers[evt.Provider]
			if p.Status == "" || p.Status == StatusIdle {
				p.Status = StatusRunning
			}
			p.Thinking = evt.Text
			snap.Providers[evt.Provider] = p

		case KindProviderSource:
			if evt.Provider == "" {
				continue
			}
			p := snap.Providers[evt.Provider]
			if p.Status == "" || p.Status == StatusIdle {
				p.Status = StatusRunning
			}
			p.Sources++
			snap.Providers[evt.Provider] = p

		case KindProviderDone:
			if evt.Provider == "" {
				continue
			}
			p := snap.Providers[evt.Provider]
			p.Status = StatusDone
			p.ResultsCount = evt.ResultsCount
			p.Error = ""
			snap.Providers[evt.Provider] = p

		case KindProviderError:
			if evt.Provider == "" {
				continue
			}
			p := snap.Providers[evt.Provider]
			p.Status = StatusError
			p.Error = evt.Error
			snap.Providers[evt.Provider] = p

		case KindCacheHit:
			// Fast path: the search result came from cache. Settles to
			// cached unless a later done/error event overrides it.
			if evt.Provider != "" {
				p := snap.Providers[evt.Provider]
				p.Status = StatusCached
				snap.Providers[evt.Provider] = p
				continue
			}
			snap.Search.Status = StatusCached

		case KindMergeStart:
			snap.Merge.Status = StatusRunning

		case KindMergeDone:
			snap.Merge.Status = StatusDone
			snap.Merge.Detail = evt.Summary
			if snap.Search.Status == StatusRunning {
				snap.Search.Status = StatusDone
			}

		case KindStudyOutline:
			if len(evt.Sections) == 0 {
				continue
			}
			snap.Study.Outline = append([]string(nil), evt.Sections...)
			if snap.Study.Status != StatusDone {
				snap.Study.Status = StatusRunning
			}

		case KindStudyToken:
			snap.Study.Draft += evt.Token
			if snap.Study.Status != StatusDone {
				snap.Study.Status = StatusRunning
			}

		case KindStudyDone:
			snap.Study.Status = StatusDone

		case KindAgentIteration:
			snap.Agent.Status = StatusRunning
			snap.Agent.Iteration = evt.Iteration
			snap.Agent.AwaitingUser = false
			snap.Agent.Question = ""

		case KindAgentThinking:
			if snap.Agent.Status == "" || snap.Agent.Status == StatusIdle {
				snap.Agent.Status = StatusRunning
			}
			snap.Agent.Thinking = evt.Text

		case KindAgentToolCall:
			if evt.Tool == "" {
				continue
			}
			snap.Agent.Status = StatusRunning
			snap.Agent.ToolCalls = append(snap.Agent.ToolCalls, ToolCall{
				CallID: evt.CallID,
				Tool:   evt.Tool,
				Args:   string(evt.Args),
				Status: StatusRunning,
			})

		case KindAgentToolResult:
			if evt.Tool == "" {
				continue
			}
			settleToolCall(snap.Agent.ToolCalls, evt)

		case KindAgentAskUser:
			snap.Agent.AwaitingUser = true
			snap.Agent.Question = evt.Question

		case KindSectionProcessed:
			if evt.Section == "" {
				continue
			}
			s := snap.Sections[evt.Section]
			s.Status = sectionStatus(evt.Status)
			s.Stage = "drafted"
			snap.Sections[evt.Section] = s

		case KindQualityGateDone:
			snap.Audit.PendingCitations += evt.PendingCitations
			snap.Audit.RemovedClaims += evt.RemovedClaims
			snap.Audit.RiskFlags += evt.RiskFlags
			if evt.Section == "" {
				continue
			}
			s := snap.Sections[evt.Section]
			if s.Status == "" || s.Status == StatusIdle || s.Status == StatusRunning {
				s.Status = StatusDone
			}
			s.Stage = "quality_gate"
			s.GatePassed = evt.Passed
			s.Issues = append([]string(nil), evt.Issues...)
			snap.Sections[evt.Section] = s

		case KindStructuralFixDone:
			if evt.Section == "" {
				continue
			}
			s := snap.Sections[evt.Section]
			s.Status = StatusDone
			s.Stage = "structural_fix"
			snap.Sections[evt.Section] = s

		case KindTargetedPatchDone:
			if evt.Section == "" {
				continue
			}
			s := snap.Sections[evt.Section]
			s.Status = StatusDone
			s.Stage = "targeted_patch"
			snap.Sections[evt.Section] = s

		case KindQualityReportDone:
			// The final report carries authoritative totals; it overrides
			// whatever the per-section gates accumulated.
			snap.Audit.Report = evt.Report
			snap.Audit.ReportReady = true
			snap.Audit.PendingCitations = evt.PendingCitations
			snap.Audit.RemovedClaims = evt.RemovedClaims
			snap.Audit.RiskFlags = evt.RiskFlags

		default:
			// Unknown kind: ignore, never fail.
		}
	}
	return snap
}

// settleToolCall marks the most recent unresolved call for the tool done.
// Calls are matched by call_id when present, otherwise by tool name.
func settleToolCall(calls []ToolCall, evt Event) {
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Status != StatusRunning {
			continue
		}
		if evt.CallID != "" && calls[i].CallID != evt.CallID {
			continue
		}
		if evt.CallID == "" && calls[i].Tool != evt.Tool {
			continue
		}
		calls[i].Status = StatusDone
		calls[i].Result = evt.Result
		return
	}
}

func sectionStatus(value string) Status {
	switch Status(value) {
	case StatusRunning, StatusDone, StatusError, StatusCached:
		return Status(value)
	default:
		return StatusDone
	}
}
