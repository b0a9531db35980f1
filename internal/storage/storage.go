package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrObjectExists is returned by Put when Overwrite is false and the
	// path is already taken.
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
)

const defaultContentType = "application/octet-stream"

// PutOptions controls a single object write.
type PutOptions struct {
	ContentType string
	Overwrite   bool
}

func (o PutOptions) contentType() string {
	if o.ContentType == "" {
		return defaultContentType
	}
	return o.ContentType
}

// ObjectStore defines how image bytes are stored
type ObjectStore interface {
	Put(ctx context.Context, bucket, path string, r io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, bucket, path string) (io.ReadCloser, error)
	// Remove deletes every path. Missing objects are not an error.
	Remove(ctx context.Context, bucket string, paths ...string) error
	// PublicURL is pure; it never touches the network.
	PublicURL(bucket, path string) string
}

// publicURL joins base, bucket and the escaped object path.
func publicURL(base, bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), url.PathEscape(bucket), strings.Join(segments, "/"))
}

// validKey rejects empty keys and keys that try to climb out of the bucket.
func validKey(path string) error {
	if path == "" {
		return errors.New("empty object path")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("object path %q must be relative", path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return fmt.Errorf("object path %q escapes bucket", path)
		}
	}
	return nil
}
