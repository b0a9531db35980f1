package models

import (
	"sort"
	"time"
)

// ImageAsset is one stored gallery image of a listing. The (Bucket, Path)
// pair addresses the bytes in the object store; the row is the
// authoritative pointer to them.
type ImageAsset struct {
	ID            string
	ListingID     string
	Bucket        string
	Path          string
	Position      int
	CreatedAt     time.Time
	ThumbnailPath string // empty until the thumbnail job completes
}

// SortGallery orders images for rendering. Positions can repeat when two
// batches race, so ties fall back to insertion time and then id.
func SortGallery(images []ImageAsset) {
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type Listing struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
}
