package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"muse-stream-server/modules/archive"
	"muse-stream-server/modules/budget"
	"muse-stream-server/modules/command"
	"muse-stream-server/modules/common/config"
	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
	commonredis "muse-stream-server/modules/common/redis"
	"muse-stream-server/modules/generation"
	"muse-stream-server/modules/playback"
	"muse-stream-server/modules/poller"
	"muse-stream-server/modules/prompt"
	"muse-stream-server/modules/queue"
	"muse-stream-server/modules/status"
	"muse-stream-server/modules/submodule/backdrop"
	"muse-stream-server/modules/submodule/coverart"
	"muse-stream-server/modules/submodule/suno"
)

func main() {
	log := logger.WithComponent("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load config")
	}

	rdb := commonredis.Connect(cfg)
	if rdb == nil {
		log.Fatal().Msg("❌ Redis connection is required")
	}
	defer rdb.Close()

	// Core pipeline pieces.
	qm := queue.NewManager(rdb)
	gate := budget.NewGate(cfg.DailyBudgetUSD, cfg.MusicCostUSD)
	prompts := prompt.NewBuilder()
	arch := archive.New(cfg)

	// Generation backends. Music is mandatory; cover art and backdrops run
	// only when their APIs are configured.
	musicPoller := poller.New(suno.NewService(cfg))
	var coverPoller, backdropPoller *poller.Poller
	if cover := coverart.NewService(cfg); cover != nil {
		coverPoller = poller.New(cover)
	}
	if scene := backdrop.NewService(cfg); scene != nil {
		backdropPoller = poller.New(scene)
	}

	controller := playback.NewHTTPController(cfg)
	hub := status.NewHub()

	commandLoop := command.NewLoop(
		command.NewRedisChatSource(rdb),
		command.NewParser(cfg.CommandPrefix),
		qm,
		cfg.ChatPollInterval,
	)
	generationLoop := generation.NewLoop(
		qm, gate, prompts,
		musicPoller, coverPoller, backdropPoller,
		arch,
		cfg.IdleInterval, cfg.AutoGenerateInterval,
	)
	playbackLoop := playback.NewLoop(qm, controller, cfg.PlaybackPollInterval, func(asset model.GeneratedAsset) {
		hub.Broadcast(status.Event{Type: "now_playing", Payload: asset})
	})
	statusLoop := status.NewLoop(qm, gate, controller, hub, cfg.StatusInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, loop := range []interface{ Run(context.Context) }{commandLoop, generationLoop, playbackLoop, statusLoop} {
		wg.Add(1)
		go func(l interface{ Run(context.Context) }) {
			defer wg.Done()
			l.Run(ctx)
		}(loop)
	}

	// HTTP surface.
	router := mux.NewRouter()
	status.NewHandler(statusLoop, hub, cfg.StreamTitle).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("🚀 Muse stream server started")
		log.Info().Msgf("📡 Overlay websocket: ws://localhost:%s/ws", cfg.Port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("❌ HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ HTTP shutdown failed")
	}

	wg.Wait()
	log.Info().Msg("👋 Goodbye")
}
