package service

import (
	"bytes"
	"context"
	"io"

	galleryv1 "github.com/PaulBabatuyi/CarLot-gRPC/api/gallery/v1"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func NewGalleryServer(workflow Workflow, guard Authorizer, opts Options) *galleryServer {
	maxUploads := opts.MaxConcurrentUploads
	if maxUploads <= 0 {
		maxUploads = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &galleryServer{
		workflow:  workflow,
		guard:     guard,
		limits:    opts.Limits,
		logger:    logger.Named("service"),
		uploadSem: semaphore.NewWeighted(maxUploads),
	}
}

// pendingFile accumulates the chunks of the file currently being received.
type pendingFile struct {
	header *galleryv1.FileHeader
	data   bytes.Buffer
}

func (s *galleryServer) UploadImages(stream galleryv1.GalleryService_UploadImagesServer) error {
	ctx := stream.Context()

	if !s.uploadSem.TryAcquire(1) {
		return status.Error(codes.ResourceExhausted, "too many concurrent uploads, retry later")
	}
	defer s.uploadSem.Release(1)

	// Receive first message
	firstMsg, err := stream.Recv()
	if err != nil {
		return status.Error(codes.InvalidArgument, "no listing received")
	}
	if firstMsg.Listing == nil {
		return status.Error(codes.InvalidArgument, "first message must carry the listing")
	}
	if err := validateRequest(firstMsg.Listing); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	listingID := firstMsg.Listing.ListingID

	if err := s.guard.Authorize(ctx, listingID); err != nil {
		return toStatus(err)
	}

	batch := models.NewUploadBatch()
	var current *pendingFile

	finish := func() error {
		if current == nil {
			return nil
		}
		f := models.PendingFile{
			Filename:    current.header.Filename,
			ContentType: current.header.ContentType,
			Data:        current.data.Bytes(),
		}
		if current.header.Size > 0 && current.header.Size != f.Size() {
			return ErrSizeMismatch
		}
		current = nil
		return s.limits.Admit(batch, f)
	}

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return status.FromContextError(ctxErr).Err()
			}
			return status.Error(codes.Internal, "failed to receive chunk")
		}

		if msg.File != nil {
			if err := finish(); err != nil {
				return toStatus(err)
			}
			if err := validateRequest(msg.File); err != nil {
				return status.Error(codes.InvalidArgument, err.Error())
			}
			if err := s.limits.CheckSize(msg.File.Filename, msg.File.Size); err != nil {
				return toStatus(err)
			}
			current = &pendingFile{header: msg.File}
		}
		if len(msg.Chunk) > 0 {
			if current == nil {
				return toStatus(ErrMissingHeader)
			}
			if err := s.limits.CheckSize(current.header.Filename, int64(current.data.Len()+len(msg.Chunk))); err != nil {
				return toStatus(err)
			}
			current.data.Write(msg.Chunk)
		}
	}
	if err := finish(); err != nil {
		return toStatus(err)
	}

	result, err := s.workflow.Commit(ctx, listingID, batch)
	if err != nil {
		s.logger.Error("upload failed",
			zap.String("listing_id", listingID),
			zap.Int("files", batch.Len()),
			zap.Error(err),
		)
		return toStatus(err)
	}

	resp := &galleryv1.UploadImagesResponse{ListingID: listingID, Images: []*galleryv1.ImageEntry{}}
	for _, img := range result.Images {
		resp.Images = append(resp.Images, s.entry(img))
	}
	return stream.SendAndClose(resp)
}

func (s *galleryServer) ListImages(ctx context.Context, req *galleryv1.ListImagesRequest) (*galleryv1.ListImagesResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	images, err := s.workflow.List(ctx, req.ListingID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &galleryv1.ListImagesResponse{Images: make([]*galleryv1.ImageEntry, 0, len(images))}
	for _, img := range images {
		resp.Images = append(resp.Images, s.entry(img))
	}
	return resp, nil
}

func (s *galleryServer) GetImage(ctx context.Context, req *galleryv1.GetImageRequest) (*galleryv1.GetImageResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	img, err := s.workflow.Get(ctx, req.ImageID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &galleryv1.GetImageResponse{Image: s.entry(*img)}, nil
}

func (s *galleryServer) DeleteImage(ctx context.Context, req *galleryv1.DeleteImageRequest) (*galleryv1.DeleteImageResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	img, err := s.workflow.Get(ctx, req.ImageID)
	if err != nil {
		return nil, toStatus(err)
	}

	// Ownership check
	if err := s.guard.Authorize(ctx, img.ListingID); err != nil {
		return nil, toStatus(err)
	}

	result, err := s.workflow.Delete(ctx, *img)
	if err != nil {
		return nil, toStatus(err)
	}

	return &galleryv1.DeleteImageResponse{
		Success: true,
		Message: "image deleted",
		Warning: result.Warning,
	}, nil
}

func (s *galleryServer) entry(img models.ImageAsset) *galleryv1.ImageEntry {
	return &galleryv1.ImageEntry{
		ImageID:      img.ID,
		ListingID:    img.ListingID,
		Bucket:       img.Bucket,
		Path:         img.Path,
		Position:     int32(img.Position),
		URL:          s.workflow.URL(img),
		ThumbnailURL: s.workflow.ThumbnailURL(img),
		CreatedAt:    img.CreatedAt,
	}
}
