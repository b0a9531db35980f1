package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	props, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "50051", props.Server.GRPCPort)
	assert.Equal(t, 30*time.Second, props.Server.ReadHeaderTimeout)
	assert.Equal(t, "fs", props.Storage.Backend)
	assert.Equal(t, "listing-images", props.Storage.Bucket)
	assert.Equal(t, int64(10485760), props.Upload.MaxFileBytes)
	assert.Equal(t, 2*time.Second, props.Worker.PollInterval)
	assert.Equal(t, []string{"http://localhost:3000"}, props.HTTPCors.AllowOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("STORAGE_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("AUTH_API_KEYS", "k1:seller-1, k2:seller-2")
	t.Setenv("UPLOAD_MAX_FILES", "5")
	t.Setenv("SERVER_GRPC_PORT", "6000")
	t.Setenv("SERVER_READ_HEADER_TIMEOUT", "5s")
	t.Setenv("DB_URL", "postgres://u:p@db:5432/carlot")

	props, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "minio", props.Storage.Backend)
	assert.Equal(t, "minio:9000", props.Storage.Minio.Endpoint)
	assert.Equal(t, 5, props.Upload.MaxFiles)
	assert.Equal(t, "6000", props.Server.GRPCPort)
	assert.Equal(t, 5*time.Second, props.Server.ReadHeaderTimeout)
	assert.Equal(t, "postgres://u:p@db:5432/carlot", props.DB.URL)

	owners, err := props.Auth.KeyOwners()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k1": "seller-1", "k2": "seller-2"}, owners)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown backend", "STORAGE_BACKEND", "ftp"},
		{"malformed key", "AUTH_API_KEYS", "no-user"},
		{"zero concurrency", "UPLOAD_MAX_CONCURRENT", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
