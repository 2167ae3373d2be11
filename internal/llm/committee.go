package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultModel is used when a request names no models.
const DefaultModel = "gemini-2.5-pro"

var ErrNoModelSucceeded = errors.New("no model produced an edit")

// Committee fans a single edit request out to one or more models and
// reduces their answers to one result. The first listed model is the lead:
// its token stream is the one forwarded live, and its edit wins. The other
// models run as silent debaters whose successful participation is recorded
// in the result's agent list.
type Committee struct {
	editor DocumentEditor
	logger *slog.Logger
}

func NewCommittee(editor DocumentEditor, logger *slog.Logger) *Committee {
	return &Committee{editor: editor, logger: logger}
}

// Run starts the edit and returns a stream of events. The stream carries
// token deltas followed by one terminal Result or Err event, then closes.
// Canceling ctx closes the stream without a terminal event; callers treat a
// closed-early stream as an abandoned edit, never as a result.
func (c *Committee) Run(ctx context.Context, req EditRequest) <-chan StreamEvent {
	out := make(chan StreamEvent, 64)
	models := req.Models
	if len(models) == 0 {
		models = []string{DefaultModel}
	}
	if !req.UseDebate {
		models = models[:1]
	}

	go func() {
		defer close(out)

		results := make([]*EditResult, len(models))
		group, groupCtx := errgroup.WithContext(ctx)
		var emitMu sync.Mutex
		emit := func(evt StreamEvent) {
			emitMu.Lock()
			defer emitMu.Unlock()
			select {
			case out <- evt:
			case <-ctx.Done():
			}
		}

		for i, modelID := range models {
			i, modelID := i, modelID
			lead := i == 0
			onToken := func(string) {}
			if lead {
				onToken = func(token string) {
					emit(StreamEvent{Token: token})
				}
			}
			group.Go(func() error {
				res, err := c.editor.EditDocument(groupCtx, modelID, req, onToken)
				if err != nil {
					c.logger.Warn("llm.edit_failed", "model", modelID, "error", err.Error())
					if lead {
						// Without the lead there is nothing to stream or
						// apply; cancel the debaters.
						return err
					}
					return nil
				}
				results[i] = &res
				return nil
			})
		}

		err := group.Wait()
		if ctx.Err() != nil {
			return
		}
		if err != nil || results[0] == nil {
			if err == nil {
				err = ErrNoModelSucceeded
			}
			emit(StreamEvent{Err: err})
			return
		}

		final := *results[0]
		final.Agents = nil
		for i, res := range results {
			if res == nil {
				continue
			}
			agent := models[i]
			if len(res.Agents) > 0 {
				agent = res.Agents[0]
			}
			final.Agents = append(final.Agents, agent)
		}
		emit(StreamEvent{Result: &final})
	}()

	return out
}
