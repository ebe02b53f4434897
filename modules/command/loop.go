package command

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
	"muse-stream-server/modules/metrics"
	"muse-stream-server/modules/queue"
)

// errorBackoff pads the next tick after a chat fetch failure.
const errorBackoff = 5 * time.Second

// Loop polls the chat source, parses commands and feeds the Queue Manager.
// No error from a single tick ever terminates the loop.
type Loop struct {
	chat     ChatSource
	parser   *Parser
	queue    *queue.Manager
	interval time.Duration
	log      zerolog.Logger
}

// NewLoop wires the command loop.
func NewLoop(chat ChatSource, parser *Parser, qm *queue.Manager, interval time.Duration) *Loop {
	return &Loop{
		chat:     chat,
		parser:   parser,
		queue:    qm,
		interval: interval,
		log:      logger.WithComponent("command-loop"),
	}
}

// Run blocks until ctx is cancelled, observing the stop signal at every
// wait point.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info().Dur("interval", l.interval).Msg("🗨️  Command loop started")

	wait := l.interval
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("🛑 Command loop stopped")
			return
		case <-time.After(wait):
		}
		wait = l.interval

		messages, err := l.chat.FetchRecentMessages(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.log.Error().Err(err).Msg("❌ Failed to fetch chat messages")
			wait = errorBackoff
			continue
		}

		for _, msg := range messages {
			l.handle(ctx, msg)
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg model.ChatMessage) {
	cmd := l.parser.Parse(msg.Text, msg.Author)
	if cmd == nil {
		l.log.Debug().Str("author", msg.Author).Msg("Ignoring non-command message")
		return
	}

	metrics.CommandsTotal.WithLabelValues(string(cmd.Kind)).Inc()

	switch cmd.Kind {
	case KindGenerate:
		req := model.NewRequest(cmd.Prompt, cmd.Mood, cmd.Author)
		if err := l.queue.EnqueueRequest(ctx, req); err != nil {
			l.log.Error().Err(err).Str("requester", cmd.Author).Msg("❌ Failed to enqueue request")
			return
		}
		l.log.Info().Str("requester", cmd.Author).Str("prompt", cmd.Prompt).Msg("🎼 Generation requested")
	case KindMood:
		req := model.NewRequest("", cmd.Mood, cmd.Author)
		if err := l.queue.EnqueueRequest(ctx, req); err != nil {
			l.log.Error().Err(err).Str("requester", cmd.Author).Msg("❌ Failed to enqueue mood request")
			return
		}
		l.log.Info().Str("requester", cmd.Author).Str("mood", cmd.Mood).Msg("😊 Mood requested")
	case KindVote:
		vote := model.Vote{Voter: cmd.Author, Token: cmd.Token, CastAt: time.Now()}
		if err := l.queue.RecordVote(ctx, vote); err != nil {
			l.log.Error().Err(err).Str("voter", cmd.Author).Msg("❌ Failed to record vote")
			return
		}
	}
}
