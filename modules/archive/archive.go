package archive

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"

	"muse-stream-server/modules/common/config"
	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
)

// Archive persists a row per finished track (and per dropped request) to
// Supabase. Entirely best-effort: callers log failures and move on.
type Archive struct {
	client *supabase.Client
	log    zerolog.Logger
}

// New builds the archive client, or returns nil when Supabase is not
// configured. A nil *Archive is safe to call.
func New(cfg *config.Config) *Archive {
	log := logger.WithComponent("archive")

	if !cfg.HasArchive() {
		log.Info().Msg("⚠️  Supabase not configured, track archive disabled")
		return nil
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to create Supabase client, track archive disabled")
		return nil
	}

	log.Info().Msg("✅ Track archive initialized")
	return &Archive{client: client, log: log}
}

// RecordTrack archives a generated track.
func (a *Archive) RecordTrack(asset model.GeneratedAsset) error {
	if a == nil {
		return nil
	}

	row := map[string]interface{}{
		"track_id":      asset.ID,
		"title":         asset.Title,
		"prompt":        asset.Prompt,
		"mood":          asset.Mood,
		"requester":     asset.Requester,
		"file_path":     asset.FilePath,
		"cover_path":    asset.CoverPath,
		"backdrop_path": asset.BackdropPath,
		"duration_sec":  asset.DurationSec,
		"created_at":    asset.CreatedAt.UTC().Format(time.RFC3339),
	}

	_, _, err := a.client.From("stream_tracks").
		Insert(row, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to archive track %s: %w", asset.ID, err)
	}

	a.log.Info().Str("track_id", asset.ID).Str("title", asset.Title).Msg("💾 Track archived")
	return nil
}

// RecordDrop archives a request that was dropped before producing a track.
func (a *Archive) RecordDrop(req model.GenerationRequest, reason string) error {
	if a == nil {
		return nil
	}

	row := map[string]interface{}{
		"request_id": req.ID,
		"prompt":     req.Prompt,
		"mood":       req.Mood,
		"requester":  req.Requester,
		"reason":     reason,
		"dropped_at": time.Now().UTC().Format(time.RFC3339),
	}

	_, _, err := a.client.From("stream_drops").
		Insert(row, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to archive drop %s: %w", req.ID, err)
	}
	return nil
}
