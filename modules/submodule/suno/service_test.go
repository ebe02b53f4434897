package suno

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
		model:        "v3_5",
		assetsDir:    t.TempDir(),
		costEstimate: 0.01,
		pollInterval: 10 * time.Second,
		maxWait:      300 * time.Second,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestSubmitCreatesTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "city pop, smooth bass", body.Prompt)
		assert.True(t, body.Instrumental)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 200,
			"data": map[string]string{"taskId": "task-123"},
		})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	sub, err := s.Submit(context.Background(), "city pop, smooth bass", model.GenerationRequest{ID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, "task-123", sub.JobID)
	assert.Empty(t, sub.PayloadRef)
	assert.Nil(t, sub.Asset)
}

func TestSubmitRejectedByAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 429, "msg": "credit exhausted"})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	_, err := s.Submit(context.Background(), "prompt", model.GenerationRequest{ID: "req-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credit exhausted")
}

func TestPollStatusPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "task-123", r.URL.Query().Get("taskId"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 200,
			"data": map[string]interface{}{"status": "TEXT_SUCCESS"},
		})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	result, err := s.PollStatus(context.Background(), "task-123")
	require.NoError(t, err)
	assert.Equal(t, poller.StatusPending, result.Status)
}

func TestPollStatusSuccessCarriesTrackPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 200,
			"data": map[string]interface{}{
				"status": "SUCCESS",
				"response": map[string]interface{}{
					"sunoData": []map[string]interface{}{
						{"audioUrl": "https://cdn.example/audio.mp3", "title": "Midnight Drive", "duration": 182.4},
					},
				},
			},
		})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	result, err := s.PollStatus(context.Background(), "task-123")
	require.NoError(t, err)
	assert.Equal(t, poller.StatusCompleted, result.Status)

	var payload trackPayload
	require.NoError(t, json.Unmarshal([]byte(result.PayloadRef), &payload))
	assert.Equal(t, "https://cdn.example/audio.mp3", payload.URL)
	assert.Equal(t, "Midnight Drive", payload.Title)
	assert.InDelta(t, 182.4, payload.Duration, 0.001)
}

func TestPollStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 200,
			"data": map[string]interface{}{"status": "GENERATE_AUDIO_FAILED", "errorMessage": "model overload"},
		})
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	result, err := s.PollStatus(context.Background(), "task-123")
	require.NoError(t, err)
	assert.Equal(t, poller.StatusFailed, result.Status)
	assert.Equal(t, "model overload", result.Reason)
}

func TestFetchAssetDownloadsTrack(t *testing.T) {
	audio := []byte("ID3 fake mp3 bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(audio)
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	ref, err := json.Marshal(trackPayload{URL: srv.URL + "/audio.mp3", Title: "Midnight Drive", Duration: 182.4})
	require.NoError(t, err)

	req := model.GenerationRequest{ID: "req-1", Prompt: "jazzy", Mood: "chill", Requester: "alice"}
	asset, err := s.FetchAsset(context.Background(), string(ref), req)
	require.NoError(t, err)

	assert.Equal(t, "Midnight Drive", asset.Title)
	assert.Equal(t, "chill", asset.Mood)
	assert.Equal(t, "alice", asset.Requester)
	assert.InDelta(t, 182.4, asset.DurationSec, 0.001)
	assert.Equal(t, filepath.Join(s.assetsDir, "music", "req-1.mp3"), asset.FilePath)

	data, err := os.ReadFile(asset.FilePath)
	require.NoError(t, err)
	assert.Equal(t, audio, data)
}

func TestFetchAssetDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := testService(t, srv.URL)
	ref, _ := json.Marshal(trackPayload{URL: srv.URL + "/gone.mp3"})

	_, err := s.FetchAsset(context.Background(), string(ref), model.GenerationRequest{ID: "req-1"})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(s.assetsDir, "music", "req-1.mp3"))
}
