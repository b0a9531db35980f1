package worker

import (
	"context"
	"fmt"
)

type JobCreator interface {
	CreateProcessingJobs(ctx context.Context, imageIDs []string, maxRetries int) error
}

// Queue schedules thumbnail jobs for newly committed images.
type Queue struct {
	jobs       JobCreator
	maxRetries int
}

func NewQueue(jobs JobCreator, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Queue{jobs: jobs, maxRetries: maxRetries}
}

func (q *Queue) EnqueueThumbnails(ctx context.Context, imageIDs []string) error {
	if len(imageIDs) == 0 {
		return nil
	}
	if err := q.jobs.CreateProcessingJobs(ctx, imageIDs, q.maxRetries); err != nil {
		return fmt.Errorf("enqueue thumbnails: %w", err)
	}
	return nil
}
