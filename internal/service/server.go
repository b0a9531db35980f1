package service

import (
	"context"

	galleryv1 "github.com/PaulBabatuyi/CarLot-gRPC/api/gallery/v1"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/gallery"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type galleryServer struct {
	galleryv1.UnimplementedGalleryServiceServer

	workflow  Workflow
	guard     Authorizer
	limits    Limits
	logger    *zap.Logger
	uploadSem *semaphore.Weighted
}

// Workflow is implemented by *gallery.Workflow.
type Workflow interface {
	Commit(ctx context.Context, listingID string, batch *models.UploadBatch) (*gallery.UploadResult, error)
	Delete(ctx context.Context, image models.ImageAsset) (*gallery.DeleteResult, error)
	List(ctx context.Context, listingID string) ([]models.ImageAsset, error)
	Get(ctx context.Context, imageID string) (*models.ImageAsset, error)
	URL(image models.ImageAsset) string
	ThumbnailURL(image models.ImageAsset) string
}

// Authorizer is implemented by *middleware.ListingGuard.
type Authorizer interface {
	Authorize(ctx context.Context, listingID string) error
}

type Options struct {
	Limits Limits
	// MaxConcurrentUploads caps open UploadImages streams. Zero means 8.
	MaxConcurrentUploads int64
	Logger               *zap.Logger
}
