package gallery

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const defaultExtension = "jpg"

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

var extensionContentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// NormalizeExtension returns the lowercase extension of filename when it is
// an accepted image type, and "jpg" otherwise.
func NormalizeExtension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if allowedExtensions[ext] {
		return ext
	}
	return defaultExtension
}

// ObjectPath builds listings/<listingID>/<id>.<ext>. Existing stored data
// uses this layout, so it must not change.
func ObjectPath(listingID, id, ext string) string {
	return fmt.Sprintf("listings/%s/%s.%s", listingID, id, ext)
}

type ThumbnailSize struct {
	Name     string
	MaxWidth int
}

// ThumbnailSizes are generated by the worker for every committed image.
var ThumbnailSizes = []ThumbnailSize{
	{Name: "small", MaxWidth: 150},
	{Name: "medium", MaxWidth: 400},
	{Name: "large", MaxWidth: 800},
}

// ThumbnailPath maps listings/l/abc.png to listings/l/thumbs/abc-small.jpg.
func ThumbnailPath(objectPath, size string) string {
	base := path.Base(objectPath)
	base = strings.TrimSuffix(base, path.Ext(base))
	return path.Join(path.Dir(objectPath), "thumbs", base+"-"+size+".jpg")
}

// ThumbnailPaths lists every derived object of objectPath.
func ThumbnailPaths(objectPath string) []string {
	paths := make([]string, 0, len(ThumbnailSizes))
	for _, s := range ThumbnailSizes {
		paths = append(paths, ThumbnailPath(objectPath, s.Name))
	}
	return paths
}

func contentTypeFor(declared, ext string) string {
	if declared != "" {
		return declared
	}
	return extensionContentTypes[ext]
}
