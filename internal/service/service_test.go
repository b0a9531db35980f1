package service_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	galleryv1 "github.com/PaulBabatuyi/CarLot-gRPC/api/gallery/v1"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/database"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/gallery"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/middleware"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/service"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const (
	bufSize     = 1024 * 1024
	testBucket  = "listing-images"
	sellerKey   = "dev-key-123"
	otherKey    = "test-key-456"
	sellerID    = "seller-1"
	testListing = "5b0c1f7e-5d55-4a8c-a0c5-3b1b1d7a9e10"
)

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 200)...)
	// HEIC is not recognised by content sniffing.
	heicData = []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic")
)

// memRepo is an in-memory gallery.ImageRepository.
type memRepo struct {
	mu        sync.Mutex
	rows      []models.ImageAsset
	insertErr error
}

func (r *memRepo) MaxPosition(ctx context.Context, listingID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maxPos := -1
	for _, row := range r.rows {
		if row.ListingID == listingID && row.Position > maxPos {
			maxPos = row.Position
		}
	}
	return maxPos, nil
}

func (r *memRepo) InsertImages(ctx context.Context, images []models.ImageAsset) ([]models.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	out := make([]models.ImageAsset, 0, len(images))
	for _, img := range images {
		img.ID = uuid.NewString()
		img.CreatedAt = time.Now()
		r.rows = append(r.rows, img)
		out = append(out, img)
	}
	return out, nil
}

func (r *memRepo) ListImages(ctx context.Context, listingID string) ([]models.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ImageAsset
	for _, row := range r.rows {
		if row.ListingID == listingID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memRepo) GetImage(ctx context.Context, imageID string) (*models.ImageAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == imageID {
			img := row
			return &img, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *memRepo) DeleteImage(ctx context.Context, imageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows {
		if row.ID == imageID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

type owners map[string]string

func (o owners) ListingOwner(ctx context.Context, listingID string) (string, error) {
	owner, ok := o[listingID]
	if !ok {
		return "", database.ErrNotFound
	}
	return owner, nil
}

// flakyStore fails removals on demand.
type flakyStore struct {
	*storage.FilesystemStorage
	removeErr error
}

func (f *flakyStore) Remove(ctx context.Context, bucket string, paths ...string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.FilesystemStorage.Remove(ctx, bucket, paths...)
}

type testEnv struct {
	client galleryv1.GalleryServiceClient
	repo   *memRepo
	store  *flakyStore
	root   string
}

func setupTestServer(t *testing.T, limits service.Limits) *testEnv {
	t.Helper()

	root := t.TempDir()
	fs, err := storage.NewFilesystemStorage(root, "http://localhost:8080/objects")
	require.NoError(t, err)
	store := &flakyStore{FilesystemStorage: fs}
	repo := &memRepo{}

	workflow := gallery.New(store, repo, gallery.Config{Bucket: testBucket})
	guard := middleware.NewListingGuard(owners{testListing: sellerID})
	auth := middleware.NewAPIKeyAuthenticator(map[string]string{sellerKey: sellerID, otherKey: "seller-2"})

	lis := bufconn.Listen(bufSize)
	server := grpc.NewServer(
		grpc.UnaryInterceptor(middleware.AuthInterceptor(auth)),
		grpc.StreamInterceptor(middleware.StreamAuthInterceptor(auth)),
	)
	galleryv1.RegisterGalleryServiceServer(server, service.NewGalleryServer(workflow, guard, service.Options{Limits: limits}))

	go func() {
		if err := server.Serve(lis); err != nil {
			t.Logf("Server error: %v", err)
		}
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		server.Stop()
	})

	return &testEnv{
		client: galleryv1.NewGalleryServiceClient(conn),
		repo:   repo,
		store:  store,
		root:   root,
	}
}

func defaultLimits() service.Limits {
	return service.Limits{MaxFileBytes: 1024, MaxFiles: 5}
}

func withKey(key string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "api-key", key)
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func sendUpload(t *testing.T, ctx context.Context, client galleryv1.GalleryServiceClient, listingID string, files ...upload) (*galleryv1.UploadImagesResponse, error) {
	t.Helper()
	stream, err := client.UploadImages(ctx)
	require.NoError(t, err)

	if err := stream.Send(&galleryv1.UploadImagesRequest{Listing: &galleryv1.UploadTarget{ListingID: listingID}}); err != nil {
		return stream.CloseAndRecv()
	}
	for _, f := range files {
		header := &galleryv1.FileHeader{Filename: f.name, ContentType: f.contentType, Size: int64(len(f.data))}
		if err := stream.Send(&galleryv1.UploadImagesRequest{File: header}); err != nil {
			return stream.CloseAndRecv()
		}
		// Two chunks per file exercise reassembly.
		half := len(f.data) / 2
		for _, chunk := range [][]byte{f.data[:half], f.data[half:]} {
			if err := stream.Send(&galleryv1.UploadImagesRequest{Chunk: chunk}); err != nil {
				return stream.CloseAndRecv()
			}
		}
	}
	return stream.CloseAndRecv()
}

func TestUploadListDeleteFlow(t *testing.T) {
	env := setupTestServer(t, defaultLimits())
	ctx := withKey(sellerKey)

	resp, err := sendUpload(t, ctx, env.client, testListing,
		upload{"front.png", "image/png", pngData},
		upload{"photo.heic", "image/heic", heicData},
	)
	require.NoError(t, err)
	require.Len(t, resp.Images, 2)
	assert.Equal(t, testListing, resp.ListingID)
	assert.EqualValues(t, 0, resp.Images[0].Position)
	assert.EqualValues(t, 1, resp.Images[1].Position)
	assert.Equal(t, ".png", filepath.Ext(resp.Images[0].Path))
	assert.Equal(t, ".jpg", filepath.Ext(resp.Images[1].Path))
	assert.Contains(t, resp.Images[0].URL, "http://localhost:8080/objects/listing-images/listings/"+testListing+"/")

	stored, err := os.ReadFile(filepath.Join(env.root, testBucket, filepath.FromSlash(resp.Images[0].Path)))
	require.NoError(t, err)
	assert.Equal(t, pngData, stored, "chunks are reassembled in order")

	// A second upload appends after the existing images.
	resp2, err := sendUpload(t, ctx, env.client, testListing, upload{"rear.png", "image/png", pngData})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp2.Images[0].Position)

	list, err := env.client.ListImages(ctx, &galleryv1.ListImagesRequest{ListingID: testListing})
	require.NoError(t, err)
	require.Len(t, list.Images, 3)
	for i, img := range list.Images {
		assert.EqualValues(t, i, img.Position)
	}

	got, err := env.client.GetImage(ctx, &galleryv1.GetImageRequest{ImageID: resp.Images[0].ImageID})
	require.NoError(t, err)
	assert.Equal(t, resp.Images[0].Path, got.Image.Path)

	del, err := env.client.DeleteImage(ctx, &galleryv1.DeleteImageRequest{ImageID: resp.Images[0].ImageID})
	require.NoError(t, err)
	assert.True(t, del.Success)
	assert.Empty(t, del.Warning)

	list, err = env.client.ListImages(ctx, &galleryv1.ListImagesRequest{ListingID: testListing})
	require.NoError(t, err)
	assert.Len(t, list.Images, 2)
}

func TestUploadEmptySelection(t *testing.T) {
	env := setupTestServer(t, defaultLimits())

	resp, err := sendUpload(t, withKey(sellerKey), env.client, testListing)
	require.NoError(t, err)
	assert.Empty(t, resp.Images)
	assert.Empty(t, env.repo.rows)
}

func TestUploadAuthorization(t *testing.T) {
	env := setupTestServer(t, defaultLimits())
	file := upload{"a.png", "image/png", pngData}

	_, err := sendUpload(t, context.Background(), env.client, testListing, file)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = sendUpload(t, withKey(otherKey), env.client, testListing, file)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = sendUpload(t, withKey(sellerKey), env.client, uuid.NewString(), file)
	assert.Equal(t, codes.NotFound, status.Code(err))

	assert.Empty(t, env.repo.rows)
}

func TestUploadValidation(t *testing.T) {
	env := setupTestServer(t, defaultLimits())
	ctx := withKey(sellerKey)

	tests := []struct {
		name    string
		files   []upload
		message string
	}{
		{"too large", []upload{{"big.png", "image/png", append(pngData, make([]byte, 2048)...)}}, "file too large"},
		{"not an image", []upload{{"notes.png", "image/png", []byte("just some text, not a picture")}}, "file is not an image"},
		{"declared text", []upload{{"fake.txt", "text/plain", pngData}}, "file is not an image"},
		{"too many files", []upload{
			{"1.png", "image/png", pngData}, {"2.png", "image/png", pngData}, {"3.png", "image/png", pngData},
			{"4.png", "image/png", pngData}, {"5.png", "image/png", pngData}, {"6.png", "image/png", pngData},
		}, "too many files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sendUpload(t, ctx, env.client, testListing, tt.files...)
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
	assert.Empty(t, env.repo.rows, "nothing is committed for a rejected batch")
}

func TestUploadStreamProtocolErrors(t *testing.T) {
	env := setupTestServer(t, defaultLimits())
	ctx := withKey(sellerKey)

	// Chunk before any file header.
	stream, err := env.client.UploadImages(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(&galleryv1.UploadImagesRequest{Listing: &galleryv1.UploadTarget{ListingID: testListing}}))
	_ = stream.Send(&galleryv1.UploadImagesRequest{Chunk: pngData})
	_, err = stream.CloseAndRecv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// First message without a listing.
	stream, err = env.client.UploadImages(ctx)
	require.NoError(t, err)
	_ = stream.Send(&galleryv1.UploadImagesRequest{File: &galleryv1.FileHeader{Filename: "a.png"}})
	_, err = stream.CloseAndRecv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, err.Error(), "first message must carry the listing")
}

func TestUploadCommitFailureSurfacesStoreMessage(t *testing.T) {
	env := setupTestServer(t, defaultLimits())
	env.repo.insertErr = errors.New("new row violates row-level security policy for table \"listing_images\"")

	_, err := sendUpload(t, withKey(sellerKey), env.client, testListing, upload{"a.png", "image/png", pngData})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, env.repo.insertErr.Error(), status.Convert(err).Message())

	entries, err := os.ReadDir(filepath.Join(env.root, testBucket, "listings", testListing))
	require.NoError(t, err)
	assert.Empty(t, entries, "uploaded objects are removed after a failed insert")
}

func TestDeleteWarnsWhenObjectRemovalFails(t *testing.T) {
	env := setupTestServer(t, defaultLimits())
	ctx := withKey(sellerKey)

	resp, err := sendUpload(t, ctx, env.client, testListing, upload{"a.png", "image/png", pngData})
	require.NoError(t, err)

	env.store.removeErr = errors.New("bucket is read-only")
	del, err := env.client.DeleteImage(ctx, &galleryv1.DeleteImageRequest{ImageID: resp.Images[0].ImageID})
	require.NoError(t, err)
	assert.True(t, del.Success)
	assert.Contains(t, del.Warning, "bucket is read-only")

	list, err := env.client.ListImages(ctx, &galleryv1.ListImagesRequest{ListingID: testListing})
	require.NoError(t, err)
	assert.Empty(t, list.Images)
}

func TestDeleteAndGetErrors(t *testing.T) {
	env := setupTestServer(t, defaultLimits())
	ctx := withKey(sellerKey)

	_, err := env.client.GetImage(ctx, &galleryv1.GetImageRequest{ImageID: "not-a-uuid"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.GetImage(ctx, &galleryv1.GetImageRequest{ImageID: uuid.NewString()})
	assert.Equal(t, codes.NotFound, status.Code(err))

	resp, err := sendUpload(t, ctx, env.client, testListing, upload{"a.png", "image/png", pngData})
	require.NoError(t, err)

	_, err = env.client.DeleteImage(withKey(otherKey), &galleryv1.DeleteImageRequest{ImageID: resp.Images[0].ImageID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = env.client.ListImages(ctx, &galleryv1.ListImagesRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
