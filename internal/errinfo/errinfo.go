package errinfo

// ErrorInfo is the structured error payload returned by every engine
// operation. Failures are values, never panics, so the UI host can render
// them directly.
type ErrorInfo struct {
	ErrorCode  string   `json:"error_code"`
	Phase      string   `json:"phase,omitempty"`
	Subphase   string   `json:"subphase,omitempty"`
	Retryable  bool     `json:"retryable"`
	Actions    []string `json:"actions,omitempty"`
	ChatID     string   `json:"chat_id,omitempty"`
	JobID      string   `json:"job_id,omitempty"`
	Checkpoint string   `json:"checkpoint,omitempty"`
	Section    string   `json:"section,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeFileReadFailed      = "FILE_READ_FAILED"
	CodeFileWriteFailed     = "FILE_WRITE_FAILED"
	CodeChatNotFound        = "CHAT_NOT_FOUND"
	CodeChatNotActive       = "CHAT_NOT_ACTIVE"
	CodeRunInProgress       = "RUN_IN_PROGRESS"
	CodeNoRunActive         = "NO_RUN_ACTIVE"
	CodeCheckpointNone      = "CHECKPOINT_NONE_PENDING"
	CodeCheckpointStale     = "CHECKPOINT_STALE"
	CodeEditTargetStale     = "EDIT_TARGET_STALE"
	CodeEditTargetNotFound  = "EDIT_TARGET_NOT_FOUND"
	CodeDocumentPending     = "DOCUMENT_PENDING"
	CodeNoProposalPending   = "NO_PROPOSAL_PENDING"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeUserCanceled        = "USER_CANCELED"
	CodeExportFailed        = "EXPORT_FAILED"
)

const (
	ActionRetry          = "retry"
	ActionReselect       = "reselect_text"
	ActionReviewProposal = "review_proposal"
	ActionOpenSettings   = "open_settings"
)

const (
	PhaseChat       = "chat"
	PhasePipeline   = "pipeline"
	PhaseCheckpoint = "checkpoint"
	PhaseCanvas     = "canvas"
	PhaseOutline    = "outline"
	PhaseExport     = "export"
	PhaseSettings   = "settings"
)

const (
	SubphaseIngest   = "ingest"
	SubphaseDecision = "decision"
	SubphaseStream   = "stream"
	SubphaseApply    = "apply"
)

func ValidationFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeValidationFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileReadFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileReadFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileWriteFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileWriteFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func ChatNotFound(phase, chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeChatNotFound,
		Phase:     phase,
		Retryable: false,
		ChatID:    chatID,
	}
}

// ChatNotActive marks work that raced a chat switch: the target chat is no
// longer the active one, so the effect was refused rather than applied.
func ChatNotActive(phase, chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeChatNotActive,
		Phase:     phase,
		Retryable: false,
		ChatID:    chatID,
	}
}

func RunInProgress(chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeRunInProgress,
		Phase:     PhasePipeline,
		Retryable: false,
		ChatID:    chatID,
	}
}

func NoRunActive(chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeNoRunActive,
		Phase:     PhasePipeline,
		Retryable: false,
		ChatID:    chatID,
	}
}

func EditInProgress(chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeRunInProgress,
		Phase:     PhaseCanvas,
		Subphase:  SubphaseStream,
		Retryable: false,
		ChatID:    chatID,
	}
}

func CheckpointNonePending(chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeCheckpointNone,
		Phase:     PhaseCheckpoint,
		Retryable: false,
		ChatID:    chatID,
	}
}

func CheckpointStale(chatID, checkpoint string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:  CodeCheckpointStale,
		Phase:      PhaseCheckpoint,
		Subphase:   SubphaseDecision,
		Retryable:  false,
		ChatID:     chatID,
		Checkpoint: checkpoint,
	}
}

func EditTargetStale(chatID, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeEditTargetStale,
		Phase:     PhaseCanvas,
		Subphase:  SubphaseApply,
		Retryable: false,
		Actions:   []string{ActionReselect},
		ChatID:    chatID,
		Detail:    detail,
	}
}

func EditTargetNotFound(chatID, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeEditTargetNotFound,
		Phase:     PhaseCanvas,
		Subphase:  SubphaseApply,
		Retryable: false,
		Actions:   []string{ActionReselect},
		ChatID:    chatID,
		Detail:    detail,
	}
}

func DocumentPending(chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeDocumentPending,
		Phase:     PhaseCanvas,
		Subphase:  SubphaseApply,
		Retryable: true,
		Actions:   []string{ActionRetry},
		ChatID:    chatID,
	}
}

func NoProposalPending(chatID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeNoProposalPending,
		Phase:     PhaseCanvas,
		Retryable: false,
		ChatID:    chatID,
	}
}

func ProviderUnavailable(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderUnavailable,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func UserCanceled(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeUserCanceled,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func ExportFailed(detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeExportFailed,
		Phase:     PhaseExport,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}
