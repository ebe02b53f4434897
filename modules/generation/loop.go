package generation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/archive"
	"muse-stream-server/modules/budget"
	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
	"muse-stream-server/modules/metrics"
	"muse-stream-server/modules/poller"
	"muse-stream-server/modules/prompt"
	"muse-stream-server/modules/queue"
)

// autoMoodFallback is used for idle auto-generation when no votes are in.
const autoMoodFallback = "chill"

// Loop consumes the request queue and drives generations one at a time.
// Music is mandatory; cover art and backdrop are optional companions whose
// failure never fails the track. A request that cannot clear the budget
// gate is dropped permanently, never requeued.
type Loop struct {
	queue    *queue.Manager
	gate     *budget.Gate
	prompts  *prompt.Builder
	music    *poller.Poller
	cover    *poller.Poller // nil when cover art is disabled
	backdrop *poller.Poller // nil when backdrops are disabled
	archive  *archive.Archive

	idleInterval time.Duration
	autoInterval time.Duration // 0 disables auto-generation
	lastActivity time.Time

	log zerolog.Logger
}

// NewLoop wires the generation loop. cover, backdrop and arch may be nil.
func NewLoop(qm *queue.Manager, gate *budget.Gate, prompts *prompt.Builder, music, cover, backdrop *poller.Poller, arch *archive.Archive, idleInterval, autoInterval time.Duration) *Loop {
	return &Loop{
		queue:        qm,
		gate:         gate,
		prompts:      prompts,
		music:        music,
		cover:        cover,
		backdrop:     backdrop,
		archive:      arch,
		idleInterval: idleInterval,
		autoInterval: autoInterval,
		lastActivity: time.Now(),
		log:          logger.WithComponent("generation-loop"),
	}
}

// Run blocks until ctx is cancelled. Generations are serialized: one track
// is fully resolved before the next request is dequeued.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info().
		Bool("cover_art", l.cover != nil).
		Bool("backdrops", l.backdrop != nil).
		Msg("🎼 Generation loop started")

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("🛑 Generation loop stopped")
			return
		default:
		}

		req, err := l.queue.DequeueRequest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.log.Error().Err(err).Msg("❌ Failed to dequeue request")
			l.sleep(ctx, l.idleInterval)
			continue
		}

		if req == nil {
			if auto := l.maybeAutoRequest(ctx); auto != nil {
				req = auto
			} else {
				l.sleep(ctx, l.idleInterval)
				continue
			}
		}

		l.lastActivity = time.Now()
		l.process(ctx, *req)
	}
}

// maybeAutoRequest synthesizes a request when the stream has been idle past
// the auto-generation interval. The mood comes from the current vote leader;
// consuming it resets the tally.
func (l *Loop) maybeAutoRequest(ctx context.Context) *model.GenerationRequest {
	if l.autoInterval <= 0 || time.Since(l.lastActivity) < l.autoInterval {
		return nil
	}

	mood := autoMoodFallback
	if leader, err := l.queue.LeadingVote(ctx); err != nil {
		l.log.Warn().Err(err).Msg("⚠️  Failed to read vote leader, using fallback mood")
	} else if leader != "" {
		mood = model.NormalizeMood(leader)
	}
	if err := l.queue.ResetVotes(ctx); err != nil {
		l.log.Warn().Err(err).Msg("⚠️  Failed to reset votes")
	}

	req := model.NewRequest("", mood, "auto")
	l.log.Info().Str("mood", mood).Msg("🤖 Idle stream, auto-generating track")
	return &req
}

// process runs one request end to end: budget gate, music generation, then
// the optional companions, then playback enqueue and archive.
func (l *Loop) process(ctx context.Context, req model.GenerationRequest) {
	if !l.gate.Admit() {
		metrics.DroppedRequestsTotal.WithLabelValues("budget").Inc()
		l.log.Warn().
			Str("request_id", req.ID).
			Str("requester", req.Requester).
			Float64("remaining_usd", l.gate.Remaining()).
			Msg("💸 Daily budget exhausted, dropping request")
		if err := l.archive.RecordDrop(req, "budget_exhausted"); err != nil {
			l.log.Warn().Err(err).Msg("⚠️  Failed to archive dropped request")
		}
		return
	}

	job, err := l.music.Run(ctx, req, l.prompts.Build(req))
	if err != nil {
		l.gate.Release()
		if ctx.Err() != nil {
			// Shutdown interrupted the attempt; not a real drop.
			return
		}
		outcome := "failed"
		if job != nil && job.State() == poller.StateTimedOut {
			outcome = "timed_out"
		}
		metrics.GenerationsTotal.WithLabelValues(l.music.Backend().Name(), outcome).Inc()
		metrics.DroppedRequestsTotal.WithLabelValues(outcome).Inc()
		l.log.Error().Err(err).Str("request_id", req.ID).Msg("❌ Music generation failed, dropping request")
		if archErr := l.archive.RecordDrop(req, outcome); archErr != nil {
			l.log.Warn().Err(archErr).Msg("⚠️  Failed to archive dropped request")
		}
		return
	}

	l.gate.Record(l.music.Backend().CostEstimate())
	metrics.GenerationsTotal.WithLabelValues(l.music.Backend().Name(), "completed").Inc()
	metrics.BudgetRemaining.Set(l.gate.Remaining())

	asset := *job.Asset()
	if cover := l.runCompanion(ctx, l.cover, req, l.prompts.BuildCover(req)); cover != nil {
		asset.CoverPath = cover.FilePath
	}
	if scene := l.runCompanion(ctx, l.backdrop, req, l.prompts.BuildScene(req)); scene != nil {
		asset.BackdropPath = scene.FilePath
	}

	if err := l.queue.EnqueuePlayback(ctx, asset); err != nil {
		l.log.Error().Err(err).Str("track_id", asset.ID).Msg("❌ Failed to enqueue track for playback")
		return
	}
	l.log.Info().
		Str("track_id", asset.ID).
		Str("title", asset.Title).
		Str("requester", asset.Requester).
		Msg("🎶 Track ready for playback")

	if err := l.archive.RecordTrack(asset); err != nil {
		l.log.Warn().Err(err).Msg("⚠️  Failed to archive track")
	}
}

// runCompanion attempts an optional side asset. Budget admission applies to
// companions too; any failure just means the track ships without the extra.
func (l *Loop) runCompanion(ctx context.Context, p *poller.Poller, req model.GenerationRequest, promptText string) *model.GeneratedAsset {
	if p == nil {
		return nil
	}
	name := p.Backend().Name()

	if !l.gate.Admit() {
		l.log.Info().Str("backend", name).Msg("💸 Budget too tight for companion asset, skipping")
		return nil
	}

	job, err := p.Run(ctx, req, promptText)
	if err != nil {
		l.gate.Release()
		if ctx.Err() != nil {
			return nil
		}
		outcome := "failed"
		if job != nil && job.State() == poller.StateTimedOut {
			outcome = "timed_out"
		}
		metrics.GenerationsTotal.WithLabelValues(name, outcome).Inc()
		l.log.Warn().Err(err).Str("backend", name).Str("request_id", req.ID).Msg("⚠️  Companion generation failed, track continues without it")
		return nil
	}

	asset := job.Asset()
	if asset.Metadata["cached"] == "true" {
		// Reused asset, nothing was spent.
		l.gate.Release()
		metrics.GenerationsTotal.WithLabelValues(name, "cached").Inc()
		return asset
	}

	l.gate.Record(p.Backend().CostEstimate())
	metrics.GenerationsTotal.WithLabelValues(name, "completed").Inc()
	metrics.BudgetRemaining.Set(l.gate.Remaining())
	return asset
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
