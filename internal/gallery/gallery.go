// Package gallery turns a selection of image files into stored gallery
// images for a listing.
//
// A commit uploads every file in order, one at a time, then inserts all
// metadata rows with a single call. The first failed upload aborts the batch
// and leaves the objects it already wrote in place. A failed insert triggers
// a best-effort removal of the objects written by that commit. Nothing is
// retried.
package gallery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/observability"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const cleanupTimeout = 30 * time.Second

var tracer = otel.Tracer("github.com/PaulBabatuyi/CarLot-gRPC/internal/gallery")

type ObjectStore interface {
	Put(ctx context.Context, bucket, path string, r io.Reader, size int64, opts storage.PutOptions) error
	Remove(ctx context.Context, bucket string, paths ...string) error
	PublicURL(bucket, path string) string
}

type ImageRepository interface {
	// MaxPosition returns -1 for a listing without images.
	MaxPosition(ctx context.Context, listingID string) (int, error)
	InsertImages(ctx context.Context, images []models.ImageAsset) ([]models.ImageAsset, error)
	ListImages(ctx context.Context, listingID string) ([]models.ImageAsset, error)
	GetImage(ctx context.Context, imageID string) (*models.ImageAsset, error)
	DeleteImage(ctx context.Context, imageID string) error
}

// ThumbnailQueue schedules derived images for committed uploads.
type ThumbnailQueue interface {
	EnqueueThumbnails(ctx context.Context, imageIDs []string) error
}

type Config struct {
	Bucket     string
	Logger     *zap.Logger
	Metrics    *observability.GalleryMetrics // optional
	Thumbnails ThumbnailQueue                // optional
	NewID      func() string                 // defaults to uuid.NewString
}

type Workflow struct {
	store      ObjectStore
	images     ImageRepository
	bucket     string
	logger     *zap.Logger
	metrics    *observability.GalleryMetrics
	thumbnails ThumbnailQueue
	newID      func() string
}

func New(store ObjectStore, images ImageRepository, cfg Config) *Workflow {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Workflow{
		store:      store,
		images:     images,
		bucket:     cfg.Bucket,
		logger:     logger.Named("gallery"),
		metrics:    cfg.Metrics,
		thumbnails: cfg.Thumbnails,
		newID:      newID,
	}
}

type UploadResult struct {
	ListingID string
	Images    []models.ImageAsset
}

// Commit stores every file of batch as a gallery image of listingID. On
// success the batch is cleared; on failure it is left untouched so the
// caller can try again.
func (w *Workflow) Commit(ctx context.Context, listingID string, batch *models.UploadBatch) (*UploadResult, error) {
	if strings.TrimSpace(listingID) == "" {
		return nil, ErrMissingListing
	}
	if batch.Empty() {
		return &UploadResult{ListingID: listingID}, nil
	}

	ctx, span := tracer.Start(ctx, "gallery.Commit", trace.WithAttributes(
		attribute.String("listing.id", listingID),
		attribute.Int("batch.size", batch.Len()),
	))
	defer span.End()

	log := w.logger.With(zap.String("listing_id", listingID), zap.Int("batch_size", batch.Len()))

	maxPos, err := w.images.MaxPosition(ctx, listingID)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("read gallery positions: %w", err))
	}
	start := maxPos + 1

	pending := make([]models.ImageAsset, 0, batch.Len())
	for i, f := range batch.Files() {
		ext := NormalizeExtension(f.Filename)
		path := ObjectPath(listingID, w.newID(), ext)
		opts := storage.PutOptions{
			ContentType: contentTypeFor(f.ContentType, ext),
			Overwrite:   false,
		}

		if err := w.store.Put(ctx, w.bucket, path, bytes.NewReader(f.Data), f.Size(), opts); err != nil {
			// Objects written earlier in this batch are not rolled back.
			log.Error("image upload failed",
				zap.String("filename", f.Filename),
				zap.String("path", path),
				zap.Int("uploaded", len(pending)),
				zap.Error(err),
			)
			w.metrics.Upload("upload_error")
			return nil, failSpan(span, &UploadError{Stage: StageUpload, Filename: f.Filename, Path: path, Err: err})
		}

		pending = append(pending, models.ImageAsset{
			ListingID: listingID,
			Bucket:    w.bucket,
			Path:      path,
			Position:  start + i,
		})
	}
	span.AddEvent("uploads complete")

	inserted, err := w.images.InsertImages(ctx, pending)
	if err != nil {
		log.Error("image metadata insert failed", zap.Error(err))
		w.removeUploaded(ctx, log, pending)
		w.metrics.Upload("commit_error")
		return nil, failSpan(span, &UploadError{Stage: StageCommit, Err: err})
	}

	batch.Clear()
	w.metrics.Upload("ok")
	log.Info("images committed", zap.Int("first_position", start))

	w.enqueueThumbnails(ctx, log, inserted)

	return &UploadResult{ListingID: listingID, Images: inserted}, nil
}

// removeUploaded is the compensating step after a failed insert. Its own
// failure is logged and counted, never returned.
func (w *Workflow) removeUploaded(ctx context.Context, log *zap.Logger, uploaded []models.ImageAsset) {
	paths := make([]string, 0, len(uploaded))
	for _, img := range uploaded {
		paths = append(paths, img.Path)
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := w.store.Remove(cleanupCtx, w.bucket, paths...); err != nil {
		log.Warn("failed to remove uploaded images after insert failure",
			zap.Strings("paths", paths),
			zap.Error(err),
		)
		w.metrics.Rollback(false)
		w.metrics.Orphaned(len(paths))
		return
	}
	w.metrics.Rollback(true)
}

func (w *Workflow) enqueueThumbnails(ctx context.Context, log *zap.Logger, images []models.ImageAsset) {
	if w.thumbnails == nil || len(images) == 0 {
		return
	}
	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	if err := w.thumbnails.EnqueueThumbnails(ctx, ids); err != nil {
		log.Warn("failed to enqueue thumbnail jobs", zap.Error(err))
	}
}

type DeleteResult struct {
	// Warning is set when the row is gone but the object could not be
	// removed from the store.
	Warning string
}

// Delete removes the image row, then its object and thumbnails. Only a row
// deletion failure is an error.
func (w *Workflow) Delete(ctx context.Context, image models.ImageAsset) (*DeleteResult, error) {
	if err := w.images.DeleteImage(ctx, image.ID); err != nil {
		return nil, fmt.Errorf("delete image row: %w", err)
	}

	bucket := image.Bucket
	if bucket == "" {
		bucket = w.bucket
	}
	paths := append([]string{image.Path}, ThumbnailPaths(image.Path)...)

	if err := w.store.Remove(ctx, bucket, paths...); err != nil {
		w.logger.Warn("image row deleted but object removal failed",
			zap.String("image_id", image.ID),
			zap.String("path", image.Path),
			zap.Error(err),
		)
		w.metrics.Orphaned(1)
		return &DeleteResult{Warning: fmt.Sprintf("image removed, but its file could not be deleted: %v", err)}, nil
	}
	return &DeleteResult{}, nil
}

// List returns the listing's images in gallery order.
func (w *Workflow) List(ctx context.Context, listingID string) ([]models.ImageAsset, error) {
	if strings.TrimSpace(listingID) == "" {
		return nil, ErrMissingListing
	}
	images, err := w.images.ListImages(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	models.SortGallery(images)
	return images, nil
}

func (w *Workflow) Get(ctx context.Context, imageID string) (*models.ImageAsset, error) {
	image, err := w.images.GetImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return image, nil
}

// URL returns the public URL of an image. It makes no network call.
func (w *Workflow) URL(image models.ImageAsset) string {
	return w.store.PublicURL(image.Bucket, image.Path)
}

// ThumbnailURL returns "" until a thumbnail exists.
func (w *Workflow) ThumbnailURL(image models.ImageAsset) string {
	if image.ThumbnailPath == "" {
		return ""
	}
	return w.store.PublicURL(image.Bucket, image.ThumbnailPath)
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}
