package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeEditor is a scripted DocumentEditor for tests. Each model ID can be
// given a canned result or error; unscripted models echo the selection
// uppercased so tests have a deterministic visible transformation.
type FakeEditor struct {
	mu      sync.Mutex
	results map[string]EditResult
	errs    map[string]error
	calls   []string
}

func NewFakeEditor() *FakeEditor {
	return &FakeEditor{
		results: map[string]EditResult{},
		errs:    map[string]error{},
	}
}

func (f *FakeEditor) Script(modelID string, result EditResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[modelID] = result
}

func (f *FakeEditor) Fail(modelID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[modelID] = err
}

// Calls returns the model IDs invoked, in call order.
func (f *FakeEditor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeEditor) EditDocument(ctx context.Context, modelID string, req EditRequest, onToken func(string)) (EditResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, modelID)
	scripted, hasResult := f.results[modelID]
	err := f.errs[modelID]
	f.mu.Unlock()

	if err != nil {
		return EditResult{}, err
	}
	if ctx.Err() != nil {
		return EditResult{}, ctx.Err()
	}

	result := scripted
	if !hasResult {
		original := req.Selection
		if original == "" {
			original = req.Document
		}
		result = EditResult{
			Original: original,
			Edited:   strings.ToUpper(original),
			Agents:   []string{fmt.Sprintf("fake:%s", modelID)},
		}
	}
	for _, token := range strings.SplitAfter(result.Edited, " ") {
		if token == "" {
			continue
		}
		onToken(token)
	}
	return result, nil
}
