package database

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ProcessingJob tracks thumbnail generation for one listing image.
type ProcessingJob struct {
	ID              int64
	ImageID         string
	Status          JobStatus
	RetryCount      int
	MaxRetries      int
	ErrorMessage    string
	ThumbnailSmall  string
	ThumbnailMedium string
	ThumbnailLarge  string
	OriginalWidth   int
	OriginalHeight  int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// Thumbnails produced for an image, keyed by object path.
type Thumbnails struct {
	Small  string
	Medium string
	Large  string
	Width  int
	Height int
}

// Paths lists the thumbnail objects that were written.
func (t Thumbnails) Paths() []string {
	var paths []string
	for _, p := range []string{t.Small, t.Medium, t.Large} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
