package coverart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"muse-stream-server/modules/common/config"
	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
	"muse-stream-server/modules/common/utils"
	"muse-stream-server/modules/poller"
)

const webpQuality = 85

// Service generates cover art through Gemini. The model answers inline, so
// this backend is synchronous: Submit returns a finished asset and the poll
// methods are never reached.
type Service struct {
	client       *genai.Client
	model        string
	assetsDir    string
	costEstimate float64
	pollInterval time.Duration
	maxWait      time.Duration
	log          zerolog.Logger
}

var _ poller.Backend = (*Service)(nil)

// NewService builds the cover-art backend, or returns nil when Gemini is
// not configured.
func NewService(cfg *config.Config) *Service {
	log := logger.WithComponent("coverart")

	if !cfg.HasCoverArt() {
		log.Info().Msg("⚠️  Gemini not configured, cover art disabled")
		return nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to create Gemini client, cover art disabled")
		return nil
	}

	log.Info().Str("model", cfg.GeminiModel).Msg("✅ Cover art backend initialized")
	return &Service{
		client:       client,
		model:        cfg.GeminiModel,
		assetsDir:    cfg.AssetsDir,
		costEstimate: cfg.ImageCostUSD,
		pollInterval: cfg.ImagePollInterval,
		maxWait:      cfg.ImageMaxWait,
		log:          log,
	}
}

func (s *Service) Name() string                { return "coverart" }
func (s *Service) PollInterval() time.Duration { return s.pollInterval }
func (s *Service) MaxWait() time.Duration      { return s.maxWait }
func (s *Service) CostEstimate() float64       { return s.costEstimate }

// Submit asks Gemini for one image and stores it as WebP. The returned
// submission already carries the finished asset.
func (s *Service) Submit(ctx context.Context, prompt string, req model.GenerationRequest) (*poller.Submission, error) {
	gm := s.client.GenerativeModel(s.model)

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini call failed: %w", err)
	}

	pngData, err := extractImage(resp)
	if err != nil {
		return nil, err
	}

	webpData, err := utils.ConvertPNGToWebP(pngData, webpQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to convert cover art: %w", err)
	}

	dir := filepath.Join(s.assetsDir, "covers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create covers dir: %w", err)
	}
	filePath := filepath.Join(dir, req.ID+".webp")
	if err := os.WriteFile(filePath, webpData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write cover art: %w", err)
	}

	s.log.Info().Str("file", filePath).Int("bytes", len(webpData)).Msg("🖼️  Cover art generated")

	return &poller.Submission{Asset: &model.GeneratedAsset{
		ID:        req.ID,
		FilePath:  filePath,
		Mood:      req.Mood,
		Requester: req.Requester,
		CreatedAt: time.Now(),
	}}, nil
}

// PollStatus is never called for this backend.
func (s *Service) PollStatus(ctx context.Context, jobID string) (*poller.PollResult, error) {
	return nil, fmt.Errorf("coverart is a synchronous backend, no job %q to poll", jobID)
}

// FetchAsset is never called for this backend.
func (s *Service) FetchAsset(ctx context.Context, payloadRef string, req model.GenerationRequest) (*model.GeneratedAsset, error) {
	return nil, fmt.Errorf("coverart is a synchronous backend, nothing to fetch")
}

// extractImage pulls the first inline image out of a Gemini response.
func extractImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				return blob.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("no image data in gemini response")
}
