package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Storage.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type S3Storage struct {
	client  S3API
	baseURL string
}

type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the AWS endpoint, e.g. for an S3 compatible gateway.
	Endpoint     string
	UsePathStyle bool
	BaseURL      string
}

func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://s3.%s.amazonaws.com", opts.Region)
	}
	return NewS3StorageWithClient(client, baseURL), nil
}

func NewS3StorageWithClient(client S3API, baseURL string) *S3Storage {
	return &S3Storage{client: client, baseURL: baseURL}
}

func (s *S3Storage) Put(ctx context.Context, bucket, path string, r io.Reader, size int64, opts PutOptions) error {
	if err := validKey(path); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(path),
		Body:        r,
		ContentType: aws.String(opts.contentType()),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if !opts.Overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if apiErrorCode(err) == "PreconditionFailed" {
			return fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectExists)
		}
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *S3Storage) Get(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

func (s *S3Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	objects := make([]s3types.ObjectIdentifier, 0, len(paths))
	for _, p := range paths {
		objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(p)})
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}

	var errs []error
	for _, e := range out.Errors {
		errs = append(errs, fmt.Errorf("remove %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
	}
	return errors.Join(errs...)
}

func (s *S3Storage) PublicURL(bucket, path string) string {
	return publicURL(s.baseURL, bucket, path)
}

// apiErrorCode extracts the service error code without depending on smithy
// directly; smithy.APIError satisfies this interface.
func apiErrorCode(err error) string {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
