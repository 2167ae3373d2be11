package engine

import (
	"context"
	"sync"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/checkpoint"
	"github.com/NicholasJacob1990/iudex0-sub002/internal/stream"
)

// fakePipeline is a scripted PipelineClient for tests: Run emits the
// scripted events and then either returns or holds until canceled.
type fakePipeline struct {
	mu        sync.Mutex
	events    []stream.Event
	runErr    error
	submitErr error
	hold      bool
	decisions []checkpoint.Decision
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{}
}

func (f *fakePipeline) scriptEvents(events ...stream.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
}

func (f *fakePipeline) Run(ctx context.Context, jobID string, emit func(stream.Event)) error {
	f.mu.Lock()
	events := f.events
	runErr := f.runErr
	hold := f.hold
	f.mu.Unlock()
	for _, evt := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		emit(evt)
	}
	if hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return runErr
}

func (f *fakePipeline) SubmitDecision(ctx context.Context, jobID string, decision checkpoint.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.decisions = append(f.decisions, decision)
	return nil
}

func (f *fakePipeline) recordedDecisions() []checkpoint.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]checkpoint.Decision, len(f.decisions))
	copy(out, f.decisions)
	return out
}
