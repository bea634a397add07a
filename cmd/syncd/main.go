// Command syncd runs the offline-first sync engine as a standalone process:
// it drives the orchestrator's background ticker against a Postgres-backed
// local store and an HTTP transport, and exposes a debug introspection
// server. It reuses the teacher's env()/zerolog/graceful-shutdown idiom
// from cmd/server/main.go.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/config"
	"github.com/erauner12/syncengine/internal/db"
	"github.com/erauner12/syncengine/internal/debugapi"
	"github.com/erauner12/syncengine/internal/localstore/pg"
	"github.com/erauner12/syncengine/internal/network"
	"github.com/erauner12/syncengine/internal/orchestrator"
	"github.com/erauner12/syncengine/internal/pull"
	"github.com/erauner12/syncengine/internal/push"
	"github.com/erauner12/syncengine/internal/queue"
	"github.com/erauner12/syncengine/internal/resolver"
	"github.com/erauner12/syncengine/internal/transport/httptransport"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "syncd").Logger()

	if os.Getenv("ENV") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	cfg := config.FromEnv()
	if !cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.TransportURL == "" {
		log.Fatal().Msg("SYNC_TRANSPORT_URL is required")
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pg.Schema); err != nil {
		log.Fatal().Err(err).Msg("failed to apply sync engine schema")
	}

	store := pg.New(pool)

	resolve, err := resolver.New(cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid conflict resolver configuration")
	}

	transport := httptransport.New(cfg.TransportURL, cfg.BearerToken)

	monitor := network.New(httpReachabilityProbe(cfg.TransportURL), 15*time.Second)
	if err := monitor.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize network monitor")
	}
	defer monitor.Shutdown()

	q := queue.New(store, cfg.MaxRetries)
	pushPipeline := push.New(store, transport, q, cfg)
	pullPipeline := pull.New(store, transport, store.Watermark(), resolve, syncTables())

	orch := orchestrator.New(store, pushPipeline, pullPipeline, q, monitor, cfg)
	orch.Start(ctx)
	defer orch.Shutdown()

	debugServer := &http.Server{
		Addr:         cfg.DebugAddr,
		Handler:      debugapi.New(orch, q),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.DebugAddr).Msg("starting debug server")
		if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("debug server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := debugServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("debug server shutdown error")
	}

	log.Info().Msg("syncd stopped")
}

// syncTables lists the tables the pull pipeline asks about: the
// comma-separated SYNC_TABLES variable, or just "records" when it is unset,
// since syncd has no notion of the domain it's syncing.
func syncTables() []string {
	if tables := os.Getenv("SYNC_TABLES"); tables != "" {
		return splitCSV(tables)
	}
	return []string{"records"}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
