package status

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/budget"
	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/metrics"
	"muse-stream-server/modules/playback"
	"muse-stream-server/modules/queue"
)

// Snapshot is one observation of the whole pipeline. Fields that could not
// be collected degrade to "unknown" or -1; a snapshot is always produced.
type Snapshot struct {
	Timestamp         time.Time         `json:"timestamp"`
	StreamStatus      string            `json:"stream_status"`
	NowPlaying        string            `json:"now_playing"`
	NowPlayingTitle   string            `json:"now_playing_title"`
	PendingRequests   int64             `json:"pending_requests"`
	PlaybackDepth     int64             `json:"playback_depth"`
	Usage             budget.UsageStats `json:"usage"`
	ConnectedOverlays int               `json:"connected_overlays"`
}

// Loop reports pipeline health on a fixed cadence: one structured log line,
// refreshed gauges and an overlay broadcast per tick.
type Loop struct {
	queue      *queue.Manager
	gate       *budget.Gate
	controller playback.Controller
	hub        *Hub
	interval   time.Duration
	log        zerolog.Logger
}

// NewLoop wires the status loop.
func NewLoop(qm *queue.Manager, gate *budget.Gate, controller playback.Controller, hub *Hub, interval time.Duration) *Loop {
	return &Loop{
		queue:      qm,
		gate:       gate,
		controller: controller,
		hub:        hub,
		interval:   interval,
		log:        logger.WithComponent("status-loop"),
	}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info().Dur("interval", l.interval).Msg("📊 Status loop started")

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("🛑 Status loop stopped")
			return
		case <-time.After(l.interval):
		}

		snapshot := l.Collect(ctx)
		l.report(snapshot)
	}
}

// Collect gathers a snapshot. Individual collection failures never abort
// the snapshot; the affected fields carry their degraded values instead.
func (l *Loop) Collect(ctx context.Context) Snapshot {
	snapshot := Snapshot{
		Timestamp:    time.Now(),
		StreamStatus: "unknown",
		Usage:        l.gate.Stats(),
	}

	if stream, err := l.controller.StreamStatus(ctx); err == nil {
		snapshot.StreamStatus = stream
	} else {
		l.log.Warn().Err(err).Msg("⚠️  Failed to query stream status")
	}

	if current, err := l.queue.PeekCurrent(ctx); err != nil {
		l.log.Warn().Err(err).Msg("⚠️  Failed to read now-playing")
	} else if current != nil {
		snapshot.NowPlaying = current.ID
		snapshot.NowPlayingTitle = current.Title
	}

	snapshot.PendingRequests = -1
	if pending, err := l.queue.PendingRequests(ctx); err == nil {
		snapshot.PendingRequests = pending
	} else {
		l.log.Warn().Err(err).Msg("⚠️  Failed to read request depth")
	}

	snapshot.PlaybackDepth = -1
	if depth, err := l.queue.PlaybackDepth(ctx); err == nil {
		snapshot.PlaybackDepth = depth
	} else {
		l.log.Warn().Err(err).Msg("⚠️  Failed to read playback depth")
	}

	if l.hub != nil {
		snapshot.ConnectedOverlays = l.hub.ClientCount()
	}

	return snapshot
}

func (l *Loop) report(snapshot Snapshot) {
	l.log.Info().
		Str("stream", snapshot.StreamStatus).
		Str("now_playing", snapshot.NowPlayingTitle).
		Int64("pending_requests", snapshot.PendingRequests).
		Int64("playback_depth", snapshot.PlaybackDepth).
		Int("generations_today", snapshot.Usage.Generations).
		Float64("budget_remaining_usd", snapshot.Usage.Remaining).
		Msg("📊 Pipeline status")

	if snapshot.PendingRequests >= 0 {
		metrics.QueueDepth.WithLabelValues("requests").Set(float64(snapshot.PendingRequests))
	}
	if snapshot.PlaybackDepth >= 0 {
		metrics.QueueDepth.WithLabelValues("playback").Set(float64(snapshot.PlaybackDepth))
	}
	metrics.BudgetRemaining.Set(snapshot.Usage.Remaining)

	if l.hub != nil {
		l.hub.Broadcast(Event{Type: "status", Payload: snapshot})
	}
}
