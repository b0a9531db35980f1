package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/database"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/gallery"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/middleware"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	listingID = "l-1"
	apiKey    = "dev-key-123"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 64)...)

type fakeWorkflow struct {
	images    []models.ImageAsset
	committed *models.UploadBatch
	commitErr error
	warning   string
	deleted   []string
}

func (f *fakeWorkflow) Commit(ctx context.Context, listing string, batch *models.UploadBatch) (*gallery.UploadResult, error) {
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	f.committed = batch
	res := &gallery.UploadResult{ListingID: listing}
	for i, file := range batch.Files() {
		res.Images = append(res.Images, models.ImageAsset{
			ID:        "img-" + file.Filename,
			ListingID: listing,
			Bucket:    "listing-images",
			Path:      gallery.ObjectPath(listing, "x", gallery.NormalizeExtension(file.Filename)),
			Position:  i,
		})
	}
	return res, nil
}

func (f *fakeWorkflow) Delete(ctx context.Context, image models.ImageAsset) (*gallery.DeleteResult, error) {
	f.deleted = append(f.deleted, image.ID)
	return &gallery.DeleteResult{Warning: f.warning}, nil
}

func (f *fakeWorkflow) List(ctx context.Context, listing string) ([]models.ImageAsset, error) {
	return f.images, nil
}

func (f *fakeWorkflow) Get(ctx context.Context, imageID string) (*models.ImageAsset, error) {
	for _, img := range f.images {
		if img.ID == imageID {
			return &img, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeWorkflow) URL(image models.ImageAsset) string {
	return "http://cdn.test/" + image.Path
}

func (f *fakeWorkflow) ThumbnailURL(image models.ImageAsset) string { return "" }

type allowOwner string

func (o allowOwner) Authorize(ctx context.Context, listing string) error {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return middleware.ErrUnauthenticated
	}
	if p.UserID != string(o) {
		return middleware.ErrForbidden
	}
	return nil
}

func newTestRouter(t *testing.T, wf *fakeWorkflow, mutate ...func(*Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := Config{
		Workflow:     wf,
		Guard:        allowOwner("seller-1"),
		Auth:         middleware.NewAPIKeyAuthenticator(map[string]string{apiKey: "seller-1", "other": "seller-2"}),
		Limits:       service.Limits{MaxFileBytes: 1024, MaxFiles: 3},
		AllowOrigins: []string{"http://localhost:3000"},
		DevMode:      true,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewRouter(cfg)
}

type part struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		fw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func doUpload(t *testing.T, router *gin.Engine, key string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/listings/"+listingID+"/images", body)
	req.Header.Set("Content-Type", contentType)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string          `json:"status"`
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestNewRouterKeepsGinMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	NewRouter(Config{Workflow: &fakeWorkflow{}, DevMode: false})
	assert.Equal(t, gin.TestMode, gin.Mode())
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeWorkflow{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode(t, rec).Status)

	router = newTestRouter(t, &fakeWorkflow{}, func(c *Config) {
		c.Health = func(ctx context.Context) error { return errors.New("db down") }
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(t, &fakeWorkflow{}, func(c *Config) { c.Metrics = promhttp.Handler() })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPostImages(t *testing.T) {
	wf := &fakeWorkflow{}
	router := newTestRouter(t, wf)

	rec := doUpload(t, router, apiKey,
		part{"front.png", "image/png", pngData},
		part{"photo.heic", "image/heic", []byte("\x00\x00\x00\x18ftypheic")},
	)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var entries []struct {
		ImageID  string `json:"image_id"`
		Path     string `json:"path"`
		Position int    `json:"position"`
		URL      string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Payload, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Position)
	assert.Equal(t, ".jpg", filepath.Ext(entries[1].Path))
	assert.Equal(t, "http://cdn.test/"+entries[0].Path, entries[0].URL)

	require.NotNil(t, wf.committed)
	files := wf.committed.Files()
	assert.Equal(t, "front.png", files[0].Filename)
	assert.Equal(t, "image/png", files[0].ContentType)
	assert.Equal(t, pngData, files[0].Data)
}

func TestPostImagesRejections(t *testing.T) {
	router := newTestRouter(t, &fakeWorkflow{})

	rec := doUpload(t, router, "", part{"a.png", "image/png", pngData})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doUpload(t, router, "wrong", part{"a.png", "image/png", pngData})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doUpload(t, router, "other", part{"a.png", "image/png", pngData})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doUpload(t, router, apiKey, part{"big.png", "image/png", append(pngData, make([]byte, 2048)...)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error, "file too large")

	rec = doUpload(t, router, apiKey, part{"notes.png", "image/png", []byte("plain text pretending")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error, "not an image")
}

func TestPostImagesCommitFailure(t *testing.T) {
	storeErr := errors.New("Bucket not found")
	wf := &fakeWorkflow{commitErr: &gallery.UploadError{Stage: gallery.StageUpload, Filename: "a.png", Err: storeErr}}
	router := newTestRouter(t, wf)

	rec := doUpload(t, router, apiKey, part{"a.png", "image/png", pngData})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "Bucket not found", env.Error)
}

func TestGetImageList(t *testing.T) {
	wf := &fakeWorkflow{images: []models.ImageAsset{
		{ID: "a", ListingID: listingID, Path: "listings/l-1/a.jpg", Position: 0},
		{ID: "b", ListingID: listingID, Path: "listings/l-1/b.png", Position: 1},
	}}
	router := newTestRouter(t, wf)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listings/"+listingID+"/images", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Payload, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0]["image_id"])
	assert.Equal(t, "http://cdn.test/listings/l-1/b.png", entries[1]["url"])
}

func TestDeleteImage(t *testing.T) {
	wf := &fakeWorkflow{
		images:  []models.ImageAsset{{ID: "a", ListingID: listingID, Path: "listings/l-1/a.jpg"}},
		warning: "image removed, but its file could not be deleted: timeout",
	}
	router := newTestRouter(t, wf)

	del := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := del("/listings/other-listing/images/a", apiKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = del("/listings/"+listingID+"/images/missing", apiKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = del("/listings/"+listingID+"/images/a", "other")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, wf.deleted)

	rec = del("/listings/"+listingID+"/images/a", apiKey)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Warning string `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Payload, &payload))
	assert.Contains(t, payload.Warning, "timeout")
	assert.Equal(t, []string{"a"}, wf.deleted)
}

func TestObjectsAreServedFromFilesystem(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "listing-images", "listings", "l-1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "listing-images", "listings", "l-1", "a.png"), pngData, 0o644))

	router := newTestRouter(t, &fakeWorkflow{}, func(c *Config) { c.ObjectsRoot = root })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/objects/listing-images/listings/l-1/a.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngData, rec.Body.Bytes())
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, &fakeWorkflow{})
	req := httptest.NewRequest(http.MethodOptions, "/listings/"+listingID+"/images", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
