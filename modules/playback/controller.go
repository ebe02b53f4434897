package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/config"
	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
)

// Player states reported by the playback controller.
const (
	PlayerIdle     = "idle"
	PlayerPlaying  = "playing"
	PlayerFinished = "finished"
)

// Controller is the media player the stream runs on. The real player is a
// separate process exposing a small HTTP API.
type Controller interface {
	// IsCurrentFinished reports whether the player needs the next track:
	// true when nothing is playing or the current track has ended.
	IsCurrentFinished(ctx context.Context) (bool, error)
	// Load replaces the playing track.
	Load(ctx context.Context, asset model.GeneratedAsset) error
	// UpdateDisplayedInfo refreshes the on-stream overlay text and art.
	UpdateDisplayedInfo(ctx context.Context, asset model.GeneratedAsset) error
	// StreamStatus reports the outer stream state (live, offline, ...).
	StreamStatus(ctx context.Context) (string, error)
}

// HTTPController talks to the player over its local HTTP API.
type HTTPController struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ Controller = (*HTTPController)(nil)

// NewHTTPController builds the player client from configuration.
func NewHTTPController(cfg *config.Config) *HTTPController {
	return &HTTPController{
		baseURL:    cfg.PlaybackAPIURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logger.WithComponent("playback"),
	}
}

type playerStatus struct {
	State  string `json:"state"`
	Stream string `json:"stream"`
}

type loadRequest struct {
	TrackID      string `json:"track_id"`
	FilePath     string `json:"file_path"`
	Title        string `json:"title"`
	Requester    string `json:"requester"`
	Mood         string `json:"mood"`
	CoverPath    string `json:"cover_path,omitempty"`
	BackdropPath string `json:"backdrop_path,omitempty"`
}

func (c *HTTPController) status(ctx context.Context) (*playerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/player/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("player status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("player status returned %d", resp.StatusCode)
	}
	var parsed playerStatus
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode player status: %w", err)
	}
	return &parsed, nil
}

// IsCurrentFinished asks the player for its state.
func (c *HTTPController) IsCurrentFinished(ctx context.Context) (bool, error) {
	status, err := c.status(ctx)
	if err != nil {
		return false, err
	}
	return status.State != PlayerPlaying, nil
}

// Load pushes the next track into the player.
func (c *HTTPController) Load(ctx context.Context, asset model.GeneratedAsset) error {
	if err := c.post(ctx, "/player/load", asset); err != nil {
		return err
	}
	c.log.Info().Str("track_id", asset.ID).Str("title", asset.Title).Msg("▶️  Track loaded into player")
	return nil
}

// UpdateDisplayedInfo refreshes the overlay text and art for the track.
func (c *HTTPController) UpdateDisplayedInfo(ctx context.Context, asset model.GeneratedAsset) error {
	return c.post(ctx, "/player/info", asset)
}

func (c *HTTPController) post(ctx context.Context, path string, asset model.GeneratedAsset) error {
	body, err := json.Marshal(loadRequest{
		TrackID:      asset.ID,
		FilePath:     asset.FilePath,
		Title:        asset.Title,
		Requester:    asset.Requester,
		Mood:         asset.Mood,
		CoverPath:    asset.CoverPath,
		BackdropPath: asset.BackdropPath,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("player %s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("player %s returned %d", path, resp.StatusCode)
	}
	return nil
}

// StreamStatus reports the outer stream state.
func (c *HTTPController) StreamStatus(ctx context.Context) (string, error) {
	status, err := c.status(ctx)
	if err != nil {
		return "", err
	}
	if status.Stream == "" {
		return "unknown", nil
	}
	return status.Stream, nil
}
