// Package worker generates thumbnails for committed gallery images in the
// background. Jobs live in the image_jobs table and are claimed one at a
// time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/database"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"go.uber.org/zap"
)

const bookkeepingTimeout = 10 * time.Second

// JobStore is the slice of the database the worker needs.
type JobStore interface {
	GetNextPendingJob(ctx context.Context) (*database.ProcessingJob, error)
	GetImage(ctx context.Context, imageID string) (*models.ImageAsset, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status database.JobStatus, errorMsg string) error
	RetryJob(ctx context.Context, jobID int64, errorMsg string) (database.JobStatus, error)
	// CompleteJob returns database.ErrNotFound when the job is gone because
	// its image was deleted.
	CompleteJob(ctx context.Context, jobID int64, thumbs database.Thumbnails) error
}

type WorkerConfig struct {
	Jobs         JobStore
	Store        ObjectStore
	PollInterval time.Duration
	Logger       *zap.Logger
}

type ProcessingWorker struct {
	config    *WorkerConfig
	processor *ImageProcessor
	logger    *zap.Logger
}

func NewProcessingWorker(config *WorkerConfig) *ProcessingWorker {
	if config.PollInterval == 0 {
		config.PollInterval = 2 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingWorker{
		config:    config,
		processor: NewImageProcessor(config.Store),
		logger:    logger.Named("worker"),
	}
}

// Run polls for jobs until ctx is cancelled. It always returns nil so it can
// sit in an errgroup next to the servers.
func (pw *ProcessingWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(pw.config.PollInterval)
	defer ticker.Stop()

	pw.logger.Info("processing worker started", zap.Duration("poll_interval", pw.config.PollInterval))
	defer pw.logger.Info("processing worker stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for pw.ProcessNext(ctx) {
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// ProcessNext handles a single job. It reports whether a job was claimed.
//
// Once a job is claimed its status is always written back, even when ctx is
// cancelled mid-job, so it never stays in processing.
func (pw *ProcessingWorker) ProcessNext(ctx context.Context) bool {
	job, err := pw.config.Jobs.GetNextPendingJob(ctx)
	if err != nil {
		if ctx.Err() == nil {
			pw.logger.Error("failed to claim job", zap.Error(err))
		}
		return false
	}
	if job == nil {
		return false
	}

	log := pw.logger.With(zap.Int64("job_id", job.ID), zap.String("image_id", job.ImageID))

	image, err := pw.config.Jobs.GetImage(ctx, job.ImageID)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("image for job no longer exists")
		bookCtx, cancel := bookkeepingContext(ctx)
		defer cancel()
		if err := pw.config.Jobs.UpdateJobStatus(bookCtx, job.ID, database.JobFailed, "image not found"); err != nil {
			log.Error("failed to mark job failed", zap.Error(err))
		}
		return true
	}
	if err != nil {
		pw.retry(ctx, log, job, fmt.Errorf("load image: %w", err))
		return true
	}

	thumbs, err := pw.processor.ProcessImage(ctx, image.Bucket, image.Path)
	if err != nil {
		pw.retry(ctx, log, job, err)
		return true
	}

	bookCtx, cancel := bookkeepingContext(ctx)
	defer cancel()
	err = pw.config.Jobs.CompleteJob(bookCtx, job.ID, thumbs)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// The image was deleted while its thumbnails were being written.
		log.Warn("image deleted during processing, removing thumbnails")
		if err := pw.config.Store.Remove(bookCtx, image.Bucket, thumbs.Paths()...); err != nil {
			log.Warn("failed to remove thumbnails of deleted image", zap.Error(err))
		}
		return true
	case err != nil:
		pw.retry(ctx, log, job, fmt.Errorf("save results: %w", err))
		return true
	}
	log.Info("thumbnails generated", zap.Int("width", thumbs.Width), zap.Int("height", thumbs.Height))
	return true
}

// bookkeepingContext outlives a cancelled worker context long enough to
// write a job's status back.
func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (pw *ProcessingWorker) retry(ctx context.Context, log *zap.Logger, job *database.ProcessingJob, cause error) {
	bookCtx, cancel := bookkeepingContext(ctx)
	defer cancel()

	status, err := pw.config.Jobs.RetryJob(bookCtx, job.ID, cause.Error())
	if err != nil {
		log.Error("failed to record job failure", zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	if status == database.JobFailed {
		log.Error("job failed permanently", zap.Int("retries", job.RetryCount+1), zap.Error(cause))
		return
	}
	log.Warn("job failed, will retry", zap.Int("retries", job.RetryCount+1), zap.Error(cause))
}
