package worker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/database"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/gallery"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/storage"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const thumbnailQuality = 85

// ObjectStore reads originals and writes or removes derived images.
type ObjectStore interface {
	Get(ctx context.Context, bucket, path string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, path string, r io.Reader, size int64, opts storage.PutOptions) error
	Remove(ctx context.Context, bucket string, paths ...string) error
}

type ImageProcessor struct {
	store ObjectStore
}

func NewImageProcessor(store ObjectStore) *ImageProcessor {
	return &ImageProcessor{store: store}
}

// ProcessImage decodes the object at bucket/path and writes one JPEG per
// gallery.ThumbnailSizes entry next to it. Images are never upscaled.
func (ip *ImageProcessor) ProcessImage(ctx context.Context, bucket, path string) (database.Thumbnails, error) {
	var thumbs database.Thumbnails

	rc, err := ip.store.Get(ctx, bucket, path)
	if err != nil {
		return thumbs, fmt.Errorf("open image: %w", err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return thumbs, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	thumbs.Width, thumbs.Height = bounds.Dx(), bounds.Dy()

	for _, size := range gallery.ThumbnailSizes {
		thumbPath := gallery.ThumbnailPath(path, size.Name)
		if err := ip.saveThumbnail(ctx, bucket, thumbPath, img, size.MaxWidth); err != nil {
			return thumbs, fmt.Errorf("%s thumbnail: %w", size.Name, err)
		}
		switch size.Name {
		case "small":
			thumbs.Small = thumbPath
		case "medium":
			thumbs.Medium = thumbPath
		case "large":
			thumbs.Large = thumbPath
		}
	}
	return thumbs, nil
}

func (ip *ImageProcessor) saveThumbnail(ctx context.Context, bucket, path string, img image.Image, maxWidth int) error {
	width := img.Bounds().Dx()
	if width > maxWidth {
		width = maxWidth
	}
	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return ip.store.Put(ctx, bucket, path, &buf, int64(buf.Len()), storage.PutOptions{
		ContentType: "image/jpeg",
		Overwrite:   true,
	})
}
