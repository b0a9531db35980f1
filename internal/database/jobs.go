package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const jobColumns = `id, image_id, status, retry_count, max_retries, error_message,
        thumbnail_small, thumbnail_medium, thumbnail_large, original_width, original_height,
        created_at, updated_at, completed_at`

// CreateProcessingJobs queues thumbnail jobs. Images that already have a job
// are skipped.
func (p *PostgresDB) CreateProcessingJobs(ctx context.Context, imageIDs []string, maxRetries int) error {
	if len(imageIDs) == 0 {
		return nil
	}
	query := `
        INSERT INTO image_jobs (image_id, max_retries)
        SELECT unnest($1::uuid[]), $2
        ON CONFLICT (image_id) DO NOTHING
    `
	if _, err := p.db.ExecContext(ctx, query, pq.Array(imageIDs), maxRetries); err != nil {
		return fmt.Errorf("create processing jobs: %w", err)
	}
	return nil
}

// GetNextPendingJob claims the oldest pending job and marks it processing.
// It returns nil, nil when the queue is empty.
func (p *PostgresDB) GetNextPendingJob(ctx context.Context) (*ProcessingJob, error) {
	query := `
        UPDATE image_jobs SET status = 'processing', updated_at = NOW()
        WHERE id = (
            SELECT id FROM image_jobs
            WHERE status = 'pending'
            ORDER BY created_at
            FOR UPDATE SKIP LOCKED
            LIMIT 1
        )
        RETURNING ` + jobColumns

	job, err := scanJob(p.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (p *PostgresDB) GetJobByImageID(ctx context.Context, imageID string) (*ProcessingJob, error) {
	job, err := scanJob(p.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM image_jobs WHERE image_id = $1`, imageID))
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return nil, ErrNotFound
	}
	return job, err
}

func (p *PostgresDB) UpdateJobStatus(ctx context.Context, jobID int64, status JobStatus, errorMsg string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE image_jobs SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`,
		jobID, string(status), errorMsg)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// RetryJob records a failed attempt. The job goes back to pending until it
// has used up max_retries, then it is marked failed. The resulting status is
// returned.
func (p *PostgresDB) RetryJob(ctx context.Context, jobID int64, errorMsg string) (JobStatus, error) {
	query := `
        UPDATE image_jobs SET
            retry_count = retry_count + 1,
            error_message = $2,
            status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
            updated_at = NOW()
        WHERE id = $1
        RETURNING status
    `
	var status string
	if err := p.db.QueryRowContext(ctx, query, jobID, errorMsg).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("retry job: %w", err)
	}
	return JobStatus(status), nil
}

// CompleteJob stores the results of a finished job. It returns ErrNotFound
// when the job no longer exists, which happens when its image was deleted
// while it was processing.
func (p *PostgresDB) CompleteJob(ctx context.Context, jobID int64, thumbs Thumbnails) error {
	query := `
        UPDATE image_jobs SET
            status = 'completed',
            error_message = '',
            thumbnail_small = $2,
            thumbnail_medium = $3,
            thumbnail_large = $4,
            original_width = $5,
            original_height = $6,
            updated_at = NOW(),
            completed_at = NOW()
        WHERE id = $1
    `
	res, err := p.db.ExecContext(ctx, query, jobID,
		thumbs.Small, thumbs.Medium, thumbs.Large, thumbs.Width, thumbs.Height)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(s scanner) (*ProcessingJob, error) {
	var (
		job    ProcessingJob
		status string
	)
	err := s.Scan(&job.ID, &job.ImageID, &status, &job.RetryCount, &job.MaxRetries, &job.ErrorMessage,
		&job.ThumbnailSmall, &job.ThumbnailMedium, &job.ThumbnailLarge, &job.OriginalWidth, &job.OriginalHeight,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan processing job: %w", err)
	}
	job.Status = JobStatus(status)
	return &job, nil
}
