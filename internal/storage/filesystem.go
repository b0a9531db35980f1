package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemStorage stores objects on local disk under <basePath>/<bucket>/<path>
type FilesystemStorage struct {
	basePath string // e.g., "./data/objects"
	baseURL  string // e.g., "http://localhost:8080/objects"
}

func NewFilesystemStorage(basePath, baseURL string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FilesystemStorage{basePath: basePath, baseURL: baseURL}, nil
}

// Root returns the directory objects are written under.
func (fs *FilesystemStorage) Root() string {
	return fs.basePath
}

func (fs *FilesystemStorage) objectPath(bucket, path string) (string, error) {
	if err := validKey(bucket); err != nil {
		return "", fmt.Errorf("bucket: %w", err)
	}
	if err := validKey(path); err != nil {
		return "", err
	}
	return filepath.Join(fs.basePath, bucket, filepath.FromSlash(path)), nil
}

func (fs *FilesystemStorage) Put(ctx context.Context, bucket, path string, r io.Reader, size int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := fs.objectPath(bucket, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(full, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectExists)
		}
		return fmt.Errorf("open object: %w", err)
	}

	n, err := io.Copy(file, r)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write: wrote %d of %d bytes", n, size)
	}
	if err != nil {
		// Don't leave a truncated object behind under a name we own.
		os.Remove(full)
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func (fs *FilesystemStorage) Get(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := fs.objectPath(bucket, path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
	}
	return file, err
}

func (fs *FilesystemStorage) Remove(ctx context.Context, bucket string, paths ...string) error {
	var errs []error
	for _, p := range paths {
		full, err := fs.objectPath(bucket, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (fs *FilesystemStorage) PublicURL(bucket, path string) string {
	return publicURL(fs.baseURL, bucket, path)
}
