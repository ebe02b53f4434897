package suno

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

// Service drives the Suno music API as an asynchronous generation backend.
// Submit creates a task, PollStatus tracks it, FetchAsset downloads the
// finished mp3 into the assets directory.
type Service struct {
	apiKey       string
	apiURL       string
	model        string
	assetsDir    string
	costEstimate float64
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	log          zerolog.Logger
}

var _ poller.Backend = (*Service)(nil)

// NewService builds the music backend from configuration.
func NewService(cfg *config.Config) *Service {
	log := logger.WithComponent("suno")
	log.Info().Str("model", cfg.SunoModel).Msg("✅ Music backend initialized")

	return &Service{
		apiKey:       cfg.SunoAPIKey,
		apiURL:       cfg.SunoAPIURL,
		model:        cfg.SunoModel,
		assetsDir:    cfg.AssetsDir,
		costEstimate: cfg.MusicCostUSD,
		pollInterval: cfg.MusicPollInterval,
		maxWait:      cfg.MusicMaxWait,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		log:          log,
	}
}

func (s *Service) Name() string                { return "suno" }
func (s *Service) PollInterval() time.Duration { return s.pollInterval }
func (s *Service) MaxWait() time.Duration      { return s.maxWait }
func (s *Service) CostEstimate() float64       { return s.costEstimate }

// Submit creates a generation task and returns its id.
func (s *Service) Submit(ctx context.Context, prompt string, req model.GenerationRequest) (*poller.Submission, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:       prompt,
		Model:        s.model,
		Instrumental: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("generate returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode generate response: %w", err)
	}
	if parsed.Code != 200 || parsed.Data.TaskID == "" {
		return nil, fmt.Errorf("generate rejected: code=%d msg=%s", parsed.Code, parsed.Msg)
	}

	s.log.Info().Str("task_id", parsed.Data.TaskID).Str("request_id", req.ID).Msg("🎵 Music task created")
	return &poller.Submission{JobID: parsed.Data.TaskID}, nil
}

// PollStatus checks a task. On success the payload ref carries the audio
// URL plus the title and duration needed to build the asset.
func (s *Service) PollStatus(ctx context.Context, jobID string) (*poller.PollResult, error) {
	url := fmt.Sprintf("%s/generate/record-info?taskId=%s", s.apiURL, jobID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

	var parsed recordInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	switch parsed.Data.Status {
	case statusSuccess:
		tracks := parsed.Data.Response.SunoData
		if len(tracks) == 0 || tracks[0].AudioURL == "" {
			return &poller.PollResult{Status: poller.StatusFailed, Reason: "task succeeded without audio"}, nil
		}
		ref, err := json.Marshal(trackPayload{
			URL:      tracks[0].AudioURL,
			Title:    tracks[0].Title,
			Duration: tracks[0].Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal track payload: %w", err)
		}
		return &poller.PollResult{Status: poller.StatusCompleted, PayloadRef: string(ref)}, nil
	case statusCreateFailed, statusGenerateFailed, statusCallbackFailed, statusSensitive:
		reason := parsed.Data.ErrorMessage
		if reason == "" {
			reason = parsed.Data.Status
		}
		return &poller.PollResult{Status: poller.StatusFailed, Reason: reason}, nil
	default:
		return &poller.PollResult{Status: poller.StatusPending}, nil
	}
}

// FetchAsset downloads the mp3 behind the payload ref.
func (s *Service) FetchAsset(ctx context.Context, payloadRef string, req model.GenerationRequest) (*model.GeneratedAsset, error) {
	var payload trackPayload
	if err := json.Unmarshal([]byte(payloadRef), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse track payload: %w", err)
	}

	dir := filepath.Join(s.assetsDir, "music")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create music dir: %w", err)
	}
	filePath := filepath.Join(dir, req.ID+".mp3")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("audio download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio download returned %d", resp.StatusCode)
	}

	out, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	title := payload.Title
	if title == "" {
		title = "Untitled Track"
	}

	s.log.Info().Str("file", filePath).Int64("bytes", written).Msg("🎧 Track downloaded")

	return &model.GeneratedAsset{
		ID:          req.ID,
		FilePath:    filePath,
		Title:       title,
		Prompt:      req.Prompt,
		Mood:        req.Mood,
		Requester:   req.Requester,
		DurationSec: payload.Duration,
		CreatedAt:   time.Now(),
	}, nil
}
