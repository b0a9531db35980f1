package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	galleryv1 "github.com/PaulBabatuyi/CarLot-gRPC/api/gallery/v1"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/database"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

const (
	filesFormField = "files"
	healthTimeout  = 2 * time.Second
)

var httpStatus = map[codes.Code]int{
	codes.InvalidArgument:   http.StatusBadRequest,
	codes.Unauthenticated:   http.StatusUnauthorized,
	codes.PermissionDenied:  http.StatusForbidden,
	codes.NotFound:          http.StatusNotFound,
	codes.ResourceExhausted: http.StatusTooManyRequests,
	codes.Unavailable:       http.StatusServiceUnavailable,
}

func writeError(c *gin.Context, err error) {
	code, ok := httpStatus[service.Code(err)]
	if !ok {
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{"status": "error", "error": service.Message(err)})
}

func (a *AppHandler) GetHealth(c *gin.Context) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := a.health(ctx); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "payload": "ok"})
}

func (a *AppHandler) GetImageList(c *gin.Context) {
	images, err := a.workflow.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	result := make([]*galleryv1.ImageEntry, 0, len(images))
	for _, img := range images {
		result = append(result, a.entry(img))
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "payload": result})
}

// PostImages commits the multipart "files" field of the request as one batch.
func (a *AppHandler) PostImages(c *gin.Context) {
	ctx := c.Request.Context()
	listingID := c.Param("id")

	if err := a.guard.Authorize(ctx, listingID); err != nil {
		writeError(c, err)
		return
	}

	if a.limits.MaxFileBytes > 0 && a.limits.MaxFiles > 0 {
		// Room for every file at the limit plus multipart framing.
		maxBody := a.limits.MaxFileBytes*int64(a.limits.MaxFiles) + 1<<20
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(c, fmt.Errorf("request: %w", service.ErrFileTooLarge))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": fmt.Sprintf("can not read multipart form: %v", err)})
		return
	}

	batch := models.NewUploadBatch()
	for _, fh := range form.File[filesFormField] {
		f, err := readPart(fh, a.limits)
		if err == nil {
			err = a.limits.Admit(batch, f)
		}
		if err != nil {
			writeError(c, err)
			return
		}
	}

	result, err := a.workflow.Commit(ctx, listingID, batch)
	if err != nil {
		a.logger.Error("upload failed",
			zap.String("listing_id", listingID),
			zap.Int("files", batch.Len()),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	entries := make([]*galleryv1.ImageEntry, 0, len(result.Images))
	for _, img := range result.Images {
		entries = append(entries, a.entry(img))
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "payload": entries})
}

func readPart(fh *multipart.FileHeader, limits service.Limits) (models.PendingFile, error) {
	if err := limits.CheckSize(fh.Filename, fh.Size); err != nil {
		return models.PendingFile{}, err
	}
	file, err := fh.Open()
	if err != nil {
		return models.PendingFile{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.PendingFile{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return models.PendingFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (a *AppHandler) DeleteImage(c *gin.Context) {
	ctx := c.Request.Context()

	img, err := a.workflow.Get(ctx, c.Param("imageId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if img.ListingID != c.Param("id") {
		writeError(c, database.ErrNotFound)
		return
	}
	if err := a.guard.Authorize(ctx, img.ListingID); err != nil {
		writeError(c, err)
		return
	}

	result, err := a.workflow.Delete(ctx, *img)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "payload": gin.H{"warning": result.Warning}})
}
