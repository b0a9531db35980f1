package storage

import (
	"context"
	"fmt"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/config"
)

// New builds the object store selected by props.Backend.
func New(ctx context.Context, props config.StorageProperties) (ObjectStore, error) {
	switch props.Backend {
	case "fs":
		baseURL := props.PublicBaseURL
		if baseURL == "" {
			// served by the HTTP API under /objects
			baseURL = "/objects"
		}
		return NewFilesystemStorage(props.FSRoot, baseURL)
	case "minio":
		m := props.Minio
		store, err := NewMinioStorage(m.Endpoint, m.AccessKey, m.SecretKey, m.UseSSL, props.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx, props.Bucket); err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Region:       props.S3.Region,
			AccessKey:    props.S3.AccessKey,
			SecretKey:    props.S3.SecretKey,
			Endpoint:     props.S3.Endpoint,
			UsePathStyle: props.S3.UsePathStyle,
			BaseURL:      props.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", props.Backend)
	}
}
