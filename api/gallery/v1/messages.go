package galleryv1

import "time"

// UploadImagesRequest is one message of the UploadImages client stream.
// The first message carries Listing, every file starts with a File header,
// and Chunk messages append bytes to the most recent file.
type UploadImagesRequest struct {
	Listing *UploadTarget `json:"listing,omitempty"`
	File    *FileHeader   `json:"file,omitempty"`
	Chunk   []byte        `json:"chunk,omitempty"`
}

type UploadTarget struct {
	ListingID string `json:"listing_id" validate:"required,max=64"`
}

type FileHeader struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"omitempty,max=128"`
	Size        int64  `json:"size" validate:"gte=0"`
}

type UploadImagesResponse struct {
	ListingID string        `json:"listing_id"`
	Images    []*ImageEntry `json:"images"`
}

type ImageEntry struct {
	ImageID      string    `json:"image_id"`
	ListingID    string    `json:"listing_id"`
	Bucket       string    `json:"bucket"`
	Path         string    `json:"path"`
	Position     int32     `json:"position"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListImagesRequest struct {
	ListingID string `json:"listing_id" validate:"required,max=64"`
}

type ListImagesResponse struct {
	Images []*ImageEntry `json:"images"`
}

type GetImageRequest struct {
	ImageID string `json:"image_id" validate:"required,uuid"`
}

type GetImageResponse struct {
	Image *ImageEntry `json:"image"`
}

type DeleteImageRequest struct {
	ImageID string `json:"image_id" validate:"required,uuid"`
}

type DeleteImageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Warning is set when the row was deleted but the stored object could
	// not be removed.
	Warning string `json:"warning,omitempty"`
}
