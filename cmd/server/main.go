package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/kgest/internal/api"
	"github.com/dgallion1/kgest/internal/config"
	"github.com/dgallion1/kgest/internal/extract"
	"github.com/dgallion1/kgest/internal/pathstore"
	"github.com/dgallion1/kgest/internal/pipeline"
	"github.com/dgallion1/kgest/internal/search"
	"github.com/dgallion1/kgest/internal/store"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Error("open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	idx, err := search.Open(cfg.SearchIndexPath)
	if err != nil {
		log.Error("open search index", "path", cfg.SearchIndexPath, "error", err)
		os.Exit(1)
	}
	defer idx.Close()

	// Initialize clients.
	claude := extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	var ps *pathstore.Client
	if cfg.MirrorEnabled() {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
	}

	// Initialize pipeline.
	orch, err := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Store:     st,
		Index:     idx,
		Extractor: claude,
		Mirror:    ps,
		Log:       log,
	})
	if err != nil {
		log.Error("create pipeline", "error", err)
		os.Exit(1)
	}
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, claude, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		claude.Close()
		if ps != nil {
			ps.Close()
		}
	}()

	version, _ := st.SchemaVersion(ctx)
	log.Info("starting kgest",
		"port", cfg.Port,
		"db", cfg.DBPath,
		"schema_version", version,
		"sqlite_driver", store.DriverName,
		"mirror", cfg.MirrorEnabled(),
		"reuse_triplets", cfg.ReuseTriplets,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
