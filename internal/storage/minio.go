package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ClientMinio is the subset of *minio.Client used by MinioStorage.
type ClientMinio interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type MinioStorage struct {
	client  ClientMinio
	baseURL string
}

// NewMinioStorage creates a MinIO backed object store.
func NewMinioStorage(endpoint, accessKeyID, secretAccessKey string, useSSL bool, baseURL string) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if baseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}
	return NewMinioStorageWithClient(client, baseURL), nil
}

func NewMinioStorageWithClient(client ClientMinio, baseURL string) *MinioStorage {
	return &MinioStorage{client: client, baseURL: baseURL}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStorage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *MinioStorage) Put(ctx context.Context, bucket, path string, r io.Reader, size int64, opts PutOptions) error {
	if err := validKey(path); err != nil {
		return err
	}
	if !opts.Overwrite {
		// MinIO has no conditional put here; a stat probe is the closest
		// guard. Paths are random per upload so the window is academic.
		_, err := s.client.StatObject(ctx, bucket, path, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectExists)
		}
		if !isMinioNotFound(err) {
			return fmt.Errorf("stat object: %w", err)
		}
	}

	_, err := s.client.PutObject(ctx, bucket, path, r, size, minio.PutObjectOptions{
		ContentType: opts.contentType(),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *MinioStorage) Get(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, path, minio.GetObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	// GetObject is lazy; Stat sends the request so a missing key surfaces here.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj, nil
}

func (s *MinioStorage) Remove(ctx context.Context, bucket string, paths ...string) error {
	var errs []error
	for _, p := range paths {
		err := s.client.RemoveObject(ctx, bucket, p, minio.RemoveObjectOptions{})
		if err != nil && !isMinioNotFound(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (s *MinioStorage) PublicURL(bucket, path string) string {
	return publicURL(s.baseURL, bucket, path)
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
