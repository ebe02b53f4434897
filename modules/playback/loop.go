package playback

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
	"muse-stream-server/modules/metrics"
	"muse-stream-server/modules/queue"
)

// Loop watches the player and feeds it the next track whenever the current
// one finishes. The player keeps looping its last track on its own when the
// queue runs dry; the loop only ever pushes, never stops playback.
type Loop struct {
	queue      *queue.Manager
	controller Controller
	interval   time.Duration
	onChange   func(model.GeneratedAsset) // optional, notified after a successful load
	log        zerolog.Logger
}

// NewLoop wires the playback loop. onChange may be nil.
func NewLoop(qm *queue.Manager, controller Controller, interval time.Duration, onChange func(model.GeneratedAsset)) *Loop {
	return &Loop{
		queue:      qm,
		controller: controller,
		interval:   interval,
		onChange:   onChange,
		log:        logger.WithComponent("playback-loop"),
	}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info().Dur("interval", l.interval).Msg("▶️  Playback loop started")

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("🛑 Playback loop stopped")
			return
		case <-time.After(l.interval):
		}
		l.tick(ctx)
	}
}

// tick advances the playback queue when the player is ready for more.
// Every failure is logged and retried on the next tick.
func (l *Loop) tick(ctx context.Context) {
	finished, err := l.controller.IsCurrentFinished(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.log.Error().Err(err).Msg("❌ Failed to query player state")
		}
		return
	}
	if !finished {
		return
	}

	next, err := l.queue.Advance(ctx)
	if err != nil {
		l.log.Error().Err(err).Msg("❌ Failed to advance playback queue")
		return
	}
	if next == nil {
		l.log.Debug().Msg("💤 Playback queue empty, player keeps looping")
		return
	}

	if err := l.controller.Load(ctx, *next); err != nil {
		l.log.Error().Err(err).Str("track_id", next.ID).Msg("❌ Failed to load track into player")
		return
	}
	if err := l.controller.UpdateDisplayedInfo(ctx, *next); err != nil {
		// Track is already playing; stale overlay text is not worth a retry.
		l.log.Warn().Err(err).Str("track_id", next.ID).Msg("⚠️  Failed to update displayed info")
	}

	if depth, err := l.queue.PlaybackDepth(ctx); err == nil {
		metrics.QueueDepth.WithLabelValues("playback").Set(float64(depth))
	}
	if l.onChange != nil {
		l.onChange(*next)
	}
}
