package jobs

import (
	"context"
	"fmt"
	"time"
)

// WaitForJobs polls store until every job in ids is completed or failed and
// returns their final state in the order of ids.
func WaitForJobs(ctx context.Context, store JobStore, ids []string, interval time.Duration) ([]*ImportFileJob, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done := make([]*ImportFileJob, 0, len(ids))
		for _, id := range ids {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("WaitForJobs: %w", err)
			}
			if !job.Status.Terminal() {
				break
			}
			done = append(done, job)
		}
		if len(done) == len(ids) {
			return done, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("WaitForJobs: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
