package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/kgest/internal/config"
	"github.com/dgallion1/kgest/internal/mcpserver"
	"github.com/dgallion1/kgest/internal/search"
	"github.com/dgallion1/kgest/internal/store"
)

var version = "dev"

// searchLockTimeout bounds the wait when the HTTP server holds the index.
const searchLockTimeout = 2 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("kgest MCP server %s (sqlite driver %s)\n", version, store.DriverName)
		os.Exit(0)
	}

	cfg := config.Load()
	// Stdout carries the protocol, so logs go to stderr.
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Error("open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var idx *search.Index
	if cfg.SearchIndexPath != "" {
		idx, err = search.OpenReadOnly(cfg.SearchIndexPath, searchLockTimeout)
		if err != nil {
			log.Warn("search index unavailable", "path", cfg.SearchIndexPath, "error", err)
		} else {
			defer idx.Close()
		}
	}

	server := mcpserver.NewServer(mcpserver.NewTools(st, idx, log), version)
	log.Info("mcp server ready", "db", cfg.DBPath, "search", idx != nil)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
