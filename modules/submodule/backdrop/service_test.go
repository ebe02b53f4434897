package backdrop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-stream-server/modules/common/model"
	"muse-stream-server/modules/poller"
)

func testService(t *testing.T, apiURL string) *Service {
	t.Helper()
	return &Service{
		apiKey:       "test-key",
		apiURL:       apiURL,
		assetsDir:    t.TempDir(),
		costEstimate: 0.02,
		pollInterval: 10 * time.Second,
		maxWait:      300 * time.Second,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestSubmitStartsRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate/video", r.URL.Path)

		var body videoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Loop)
		assert.Equal(t, loopDurationSec, body.DurationSec)
		assert.Equal(t, loopResolution, body.Resolution)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(videoResponse{JobID: "vid-7"})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	sub, err := s.Submit(context.Background(), "rainy city lights", model.GenerationRequest{ID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, "vid-7", sub.JobID)
}

func TestPollStatusLifecycle(t *testing.T) {
	var status jobStatusResponse
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/vid-7", r.URL.Path)
		json.NewEncoder(w).Encode(status)
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	ctx := context.Background()

	status = jobStatusResponse{Status: "processing"}
	result, err := s.PollStatus(ctx, "vid-7")
	require.NoError(t, err)
	assert.Equal(t, poller.StatusPending, result.Status)

	status = jobStatusResponse{Status: "succeeded", DownloadURL: "https://cdn.example/vid-7.mp4"}
	result, err = s.PollStatus(ctx, "vid-7")
	require.NoError(t, err)
	assert.Equal(t, poller.StatusCompleted, result.Status)
	assert.Equal(t, "https://cdn.example/vid-7.mp4", result.PayloadRef)

	status = jobStatusResponse{Status: "failed", Error: "render crashed"}
	result, err = s.PollStatus(ctx, "vid-7")
	require.NoError(t, err)
	assert.Equal(t, poller.StatusFailed, result.Status)
	assert.Equal(t, "render crashed", result.Reason)
}

func TestFetchAssetDownloadsVideo(t *testing.T) {
	video := []byte("fake mp4 bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write(video)
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	asset, err := s.FetchAsset(context.Background(), srv.URL+"/vid-7.mp4", model.GenerationRequest{ID: "req-1", Mood: "chill"})
	require.NoError(t, err)

	assert.Equal(t, loopResolution, asset.Resolution)
	assert.EqualValues(t, loopDurationSec, asset.DurationSec)
	assert.Equal(t, filepath.Join(s.assetsDir, "backdrops", "chill.mp4"), asset.FilePath, "backdrops are stored per mood for reuse")

	data, err := os.ReadFile(asset.FilePath)
	require.NoError(t, err)
	assert.Equal(t, video, data)
}

func TestSubmitReusesFreshBackdrop(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(videoResponse{JobID: "vid-7"})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	dir := filepath.Join(s.assetsDir, "backdrops")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chill.mp4"), []byte("cached mp4"), 0o644))

	sub, err := s.Submit(context.Background(), "prompt", model.GenerationRequest{ID: "req-2", Mood: "chill"})
	require.NoError(t, err)
	require.NotNil(t, sub.Asset)
	assert.Equal(t, "true", sub.Asset.Metadata["cached"])
	assert.Equal(t, filepath.Join(dir, "chill.mp4"), sub.Asset.FilePath)
	assert.Zero(t, requests, "a fresh cached backdrop never hits the API")
}

func TestSubmitIgnoresStaleCachedBackdrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(videoResponse{JobID: "vid-8"})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	dir := filepath.Join(s.assetsDir, "backdrops")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := filepath.Join(dir, "chill.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("old mp4"), 0o644))
	old := time.Now().Add(-2 * cacheTTL)
	require.NoError(t, os.Chtimes(stale, old, old))

	sub, err := s.Submit(context.Background(), "prompt", model.GenerationRequest{ID: "req-3", Mood: "chill"})
	require.NoError(t, err)
	assert.Nil(t, sub.Asset)
	assert.Equal(t, "vid-8", sub.JobID, "a stale backdrop triggers a new render")
}

func TestFetchAssetPrunesOldBackdrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh mp4"))
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	dir := filepath.Join(s.assetsDir, "backdrops")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := filepath.Join(dir, "romantic.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("ancient mp4"), 0o644))
	old := time.Now().Add(-2 * cleanupAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	asset, err := s.FetchAsset(context.Background(), srv.URL+"/vid-9.mp4", model.GenerationRequest{ID: "req-4", Mood: "chill"})
	require.NoError(t, err)

	assert.FileExists(t, asset.FilePath)
	assert.NoFileExists(t, stale, "backdrops past the cleanup age are pruned after a download")
}
