package backdrop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/config"
	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
	"muse-stream-server/modules/poller"
)

const (
	loopDurationSec = 30
	loopResolution  = "1920x1080"

	// A backdrop is reusable for the same mood within cacheTTL; anything
	// older than cleanupAge is pruned after each download.
	cacheTTL   = time.Hour
	cleanupAge = 24 * time.Hour
)

// Service drives the looping-backdrop video API as an asynchronous backend.
// Videos render slowly, so the poll cadence matches the music backend
// rather than the image one.
type Service struct {
	apiKey       string
	apiURL       string
	assetsDir    string
	costEstimate float64
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	log          zerolog.Logger
}

var _ poller.Backend = (*Service)(nil)

// NewService builds the backdrop backend, or returns nil when the video API
// is not configured.
func NewService(cfg *config.Config) *Service {
	log := logger.WithComponent("backdrop")

	if !cfg.HasBackdrop() {
		log.Info().Msg("⚠️  Video API not configured, backdrop generation disabled")
		return nil
	}

	log.Info().Msg("✅ Backdrop backend initialized")
	return &Service{
		apiKey:       cfg.BackdropAPIKey,
		apiURL:       cfg.BackdropAPIURL,
		assetsDir:    cfg.AssetsDir,
		costEstimate: cfg.VideoCostUSD,
		pollInterval: cfg.VideoPollInterval,
		maxWait:      cfg.VideoMaxWait,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		log:          log,
	}
}

func (s *Service) Name() string                { return "backdrop" }
func (s *Service) PollInterval() time.Duration { return s.pollInterval }
func (s *Service) MaxWait() time.Duration      { return s.maxWait }
func (s *Service) CostEstimate() float64       { return s.costEstimate }

// Submit starts a video render and returns its job id. A fresh backdrop
// already on disk for the same mood is reused instead of rendering again.
func (s *Service) Submit(ctx context.Context, prompt string, req model.GenerationRequest) (*poller.Submission, error) {
	if asset := s.cachedScene(req); asset != nil {
		s.log.Info().Str("file", asset.FilePath).Str("mood", asset.Mood).Msg("♻️  Reusing cached backdrop")
		return &poller.Submission{Asset: asset}, nil
	}

	body, err := json.Marshal(videoRequest{
		Prompt:      prompt,
		DurationSec: loopDurationSec,
		Resolution:  loopResolution,
		Loop:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/generate/video", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build video request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("video request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("video generate returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed videoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode video response: %w", err)
	}
	if parsed.JobID == "" {
		return nil, fmt.Errorf("video generate rejected: %s", parsed.Error)
	}

	s.log.Info().Str("job_id", parsed.JobID).Str("request_id", req.ID).Msg("🎬 Backdrop job created")
	return &poller.Submission{JobID: parsed.JobID}, nil
}

// PollStatus checks a render job.
func (s *Service) PollStatus(ctx context.Context, jobID string) (*poller.PollResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status returned %d", resp.StatusCode)
	}

	var parsed jobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	switch parsed.Status {
	case statusSucceeded:
		if parsed.DownloadURL == "" {
			return &poller.PollResult{Status: poller.StatusFailed, Reason: "job succeeded without download url"}, nil
		}
		return &poller.PollResult{Status: poller.StatusCompleted, PayloadRef: parsed.DownloadURL}, nil
	case statusFailed:
		reason := parsed.Error
		if reason == "" {
			reason = statusFailed
		}
		return &poller.PollResult{Status: poller.StatusFailed, Reason: reason}, nil
	case statusQueued, statusProcessing:
		return &poller.PollResult{Status: poller.StatusPending}, nil
	default:
		return &poller.PollResult{Status: poller.StatusPending}, nil
	}
}

// cachedScene returns the stored backdrop for the request's mood when it
// is still fresh, nil otherwise.
func (s *Service) cachedScene(req model.GenerationRequest) *model.GeneratedAsset {
	mood := model.NormalizeMood(req.Mood)
	filePath := filepath.Join(s.assetsDir, "backdrops", mood+".mp4")

	info, err := os.Stat(filePath)
	if err != nil || time.Since(info.ModTime()) >= cacheTTL {
		return nil
	}
	return &model.GeneratedAsset{
		ID:          req.ID,
		FilePath:    filePath,
		Mood:        mood,
		Requester:   req.Requester,
		DurationSec: loopDurationSec,
		Resolution:  loopResolution,
		CreatedAt:   info.ModTime(),
		Metadata:    map[string]string{"cached": "true"},
	}
}

// FetchAsset downloads the rendered mp4. Backdrops are stored per mood so
// the next request with the same mood can reuse them; old files are pruned
// after every download.
func (s *Service) FetchAsset(ctx context.Context, payloadRef string, req model.GenerationRequest) (*model.GeneratedAsset, error) {
	dir := filepath.Join(s.assetsDir, "backdrops")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backdrops dir: %w", err)
	}
	mood := model.NormalizeMood(req.Mood)
	filePath := filepath.Join(dir, mood+".mp4")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, payloadRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("video download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned %d", resp.StatusCode)
	}

	out, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create video file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write video file: %w", err)
	}

	s.log.Info().Str("file", filePath).Int64("bytes", written).Msg("🎞️  Backdrop downloaded")
	s.cleanupOld(dir)

	return &model.GeneratedAsset{
		ID:          req.ID,
		FilePath:    filePath,
		Mood:        mood,
		Requester:   req.Requester,
		DurationSec: loopDurationSec,
		Resolution:  loopResolution,
		CreatedAt:   time.Now(),
	}, nil
}

// cleanupOld removes backdrops older than cleanupAge. Best-effort; a file
// that cannot be removed is only logged.
func (s *Service) cleanupOld(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn().Err(err).Msg("⚠️  Failed to scan backdrops dir for cleanup")
		return
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < cleanupAge {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("file", path).Msg("⚠️  Failed to remove stale backdrop")
			continue
		}
		s.log.Info().Str("file", path).Msg("🧹 Removed stale backdrop")
	}
}
