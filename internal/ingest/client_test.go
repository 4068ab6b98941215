package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDownload(t *testing.T) {
	t.Parallel()

	t.Run("fetches monthly parquet file", func(t *testing.T) {
		t.Parallel()
		var requested string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requested = r.URL.Path
			w.Write([]byte("parquet-bytes"))
		}))
		defer srv.Close()

		client := NewClient(zap.NewNop(), srv.URL)
		dir := t.TempDir()

		path, err := client.Download(context.Background(), 2024, 1, dir)
		require.NoError(t, err)
		assert.Equal(t, "/trip-data/yellow_tripdata_2024-01.parquet", requested)
		assert.Equal(t, filepath.Join(dir, "yellow_tripdata_2024-01.parquet"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "parquet-bytes", string(data))
	})

	t.Run("existing file is reused without a request", func(t *testing.T) {
		t.Parallel()
		hits := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
		}))
		defer srv.Close()

		dir := t.TempDir()
		dest := filepath.Join(dir, "yellow_tripdata_2024-02.parquet")
		require.NoError(t, os.WriteFile(dest, []byte("cached"), 0644))

		client := NewClient(zap.NewNop(), srv.URL)
		path, err := client.Download(context.Background(), 2024, 2, dir)
		require.NoError(t, err)
		assert.Equal(t, dest, path)
		assert.Zero(t, hits)
	})

	t.Run("non-200 status fails", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client := NewClient(zap.NewNop(), srv.URL)
		_, err := client.Download(context.Background(), 2024, 3, t.TempDir())
		assert.Error(t, err)
	})
}
