// Package llm defines the narrow boundary to the model backends that
// produce document edits. The engine owns request construction and stream
// consumption; inference, transport, and provider auth live behind
// DocumentEditor implementations supplied by the host.
package llm

import "context"

// EditRequest asks a model to rewrite part (or all) of a document.
// Selection carries the text the human selected; the context fields carry
// the surrounding characters so the model can match tone across the seam.
type EditRequest struct {
	Message                string   `json:"message"`
	Document               string   `json:"document"`
	Selection              string   `json:"selection,omitempty"`
	SelectionContextBefore string   `json:"selection_context_before,omitempty"`
	SelectionContextAfter  string   `json:"selection_context_after,omitempty"`
	Models                 []string `json:"models,omitempty"`
	UseDebate              bool     `json:"use_debate,omitempty"`
}

// EditResult is a model's completed rewrite: the text it edited against,
// its replacement, and the models that contributed.
type EditResult struct {
	Original string   `json:"original"`
	Edited   string   `json:"edited"`
	Agents   []string `json:"agents,omitempty"`
}

// DocumentEditor produces one model's edit for a request, streaming
// intermediate tokens through onToken as they arrive.
type DocumentEditor interface {
	EditDocument(ctx context.Context, modelID string, req EditRequest, onToken func(string)) (EditResult, error)
}

// StreamEvent is one item on an edit stream: a token delta while the edit
// is in flight, then exactly one terminal event carrying Result or Err.
// The channel closes after the terminal event, or without one when the
// context is canceled mid-stream.
type StreamEvent struct {
	Token  string
	Result *EditResult
	Err    error
}
