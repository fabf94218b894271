package observability

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
)

// Forward republishes every event of from onto to until ctx is done or from
// is closed. The returned function stops forwarding and waits for it to finish.
func Forward(ctx context.Context, from, to *Channel) (stop func()) {
	stopObserve := from.Observe(to.Publish)
	quit := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
		case <-quit:
		}
		stopObserve()
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		<-finished
	}
}

// LogEvents returns a subscriber that writes each event as a structured record.
// Failures are logged at Warn, everything else at Debug.
func LogEvents(logger *slog.Logger) func(domain.Event) {
	return func(e domain.Event) {
		base := e.Base()
		attrs := []any{
			"type", base.Type,
			"submission_id", base.SubmissionID,
		}
		if base.ParentID != "" {
			attrs = append(attrs, "parent_id", base.ParentID)
		}
		if failed, ok := e.(domain.EvaluationFailed); ok {
			logger.Warn("Evaluation failed", append(attrs, "err", failed.Message)...)
			return
		}
		logger.Debug("Kernel event", attrs...)
	}
}
