package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
)

// Redis keys backing the shared queues. LPUSH + RPOP keeps FIFO order.
const (
	requestQueueKey  = "stream:requests"
	playbackQueueKey = "stream:playback"
	nowPlayingKey    = "stream:nowplaying"
	voteCountKey     = "stream:votes:count"
	voteFirstKey     = "stream:votes:first"
)

// Manager holds the generation-request queue, the playback queue and the
// vote tally in Redis. Redis serializes each command, which gives every
// individual mutation single-writer semantics; status reads are
// eventually-consistent snapshots.
type Manager struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewManager wraps an established Redis client.
func NewManager(rdb *redis.Client) *Manager {
	return &Manager{
		rdb: rdb,
		log: logger.WithComponent("queue"),
	}
}

// EnqueueRequest appends a generation request to the tail of the FIFO queue.
func (m *Manager) EnqueueRequest(ctx context.Context, req model.GenerationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := m.rdb.LPush(ctx, requestQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	m.log.Info().
		Str("request_id", req.ID).
		Str("requester", req.Requester).
		Str("mood", req.Mood).
		Msg("🎯 Generation request enqueued")
	return nil
}

// DequeueRequest pops the oldest request. Returns (nil, nil) when the queue
// is empty; the caller owns the wait policy.
func (m *Manager) DequeueRequest(ctx context.Context) (*model.GenerationRequest, error) {
	raw, err := m.rdb.RPop(ctx, requestQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	var req model.GenerationRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &req, nil
}

// EnqueuePlayback appends a finished asset to the playback queue.
func (m *Manager) EnqueuePlayback(ctx context.Context, asset model.GeneratedAsset) error {
	payload, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}
	if err := m.rdb.LPush(ctx, playbackQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue playback: %w", err)
	}
	m.log.Info().Str("asset_id", asset.ID).Str("title", asset.Title).Msg("🎶 Asset queued for playback")
	return nil
}

// PeekCurrent returns the asset in the now-playing slot, nil when idle.
func (m *Manager) PeekCurrent(ctx context.Context) (*model.GeneratedAsset, error) {
	raw, err := m.rdb.Get(ctx, nowPlayingKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read now-playing: %w", err)
	}
	var asset model.GeneratedAsset
	if err := json.Unmarshal([]byte(raw), &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal now-playing: %w", err)
	}
	return &asset, nil
}

// Advance marks the previous head consumed and promotes the next playback
// entry into the now-playing slot. Returns (nil, nil) when the playback
// queue is empty; at most one entry is ever marked playing.
func (m *Manager) Advance(ctx context.Context) (*model.GeneratedAsset, error) {
	raw, err := m.rdb.RPop(ctx, playbackQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		if err := m.rdb.Del(ctx, nowPlayingKey).Err(); err != nil {
			return nil, fmt.Errorf("failed to clear now-playing: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to advance playback queue: %w", err)
	}
	if err := m.rdb.Set(ctx, nowPlayingKey, raw, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to set now-playing: %w", err)
	}
	var asset model.GeneratedAsset
	if err := json.Unmarshal([]byte(raw), &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}
	return &asset, nil
}

// RecordVote counts one vote and remembers the first cast per token for
// tie-breaking. Votes feed mood selection only; they never reorder the
// request queue.
func (m *Manager) RecordVote(ctx context.Context, vote model.Vote) error {
	if err := m.rdb.HIncrBy(ctx, voteCountKey, vote.Token, 1).Err(); err != nil {
		return fmt.Errorf("failed to count vote: %w", err)
	}
	if err := m.rdb.HSetNX(ctx, voteFirstKey, vote.Token, vote.CastAt.UnixNano()).Err(); err != nil {
		return fmt.Errorf("failed to record first cast: %w", err)
	}
	m.log.Info().Str("voter", vote.Voter).Str("token", vote.Token).Msg("🗳️  Vote recorded")
	return nil
}

// Tally returns the vote count per token.
func (m *Manager) Tally(ctx context.Context) (map[string]int, error) {
	counts, err := m.rdb.HGetAll(ctx, voteCountKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tally: %w", err)
	}
	tally := make(map[string]int, len(counts))
	for token, raw := range counts {
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		tally[token] = n
	}
	return tally, nil
}

// LeadingVote returns the token with the highest count; ties are broken by
// the earliest first cast. Empty string when no votes exist.
func (m *Manager) LeadingVote(ctx context.Context) (string, error) {
	tally, err := m.Tally(ctx)
	if err != nil {
		return "", err
	}
	if len(tally) == 0 {
		return "", nil
	}
	firsts, err := m.rdb.HGetAll(ctx, voteFirstKey).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read first casts: %w", err)
	}

	leading := ""
	bestCount := -1
	var bestFirst int64
	for token, count := range tally {
		first := int64(1<<62 - 1)
		if raw, ok := firsts[token]; ok {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
				first = parsed
			}
		}
		if count > bestCount || (count == bestCount && first < bestFirst) {
			leading = token
			bestCount = count
			bestFirst = first
		}
	}
	return leading, nil
}

// ResetVotes clears the tally after a poll round has been consumed.
func (m *Manager) ResetVotes(ctx context.Context) error {
	if err := m.rdb.Del(ctx, voteCountKey, voteFirstKey).Err(); err != nil {
		return fmt.Errorf("failed to reset votes: %w", err)
	}
	return nil
}

// PendingRequests returns the generation-request queue depth.
func (m *Manager) PendingRequests(ctx context.Context) (int64, error) {
	n, err := m.rdb.LLen(ctx, requestQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read request depth: %w", err)
	}
	return n, nil
}

// PlaybackDepth returns the playback queue depth, excluding the playing slot.
func (m *Manager) PlaybackDepth(ctx context.Context) (int64, error) {
	n, err := m.rdb.LLen(ctx, playbackQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read playback depth: %w", err)
	}
	return n, nil
}
