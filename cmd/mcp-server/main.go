// Package main provides the MCP server entry point for ragchain.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bull/ragchain/internal/app"
	"github.com/bull/ragchain/internal/config"
	mcpserver "github.com/bull/ragchain/internal/mcp"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(os.Getenv("RAGCHAIN_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Index.CreateCollection(ctx, cfg.Store.Collection, a.Embedder.Dimension()); err != nil {
		logger.Error("failed to ensure collection", "collection", cfg.Store.Collection, "error", err)
		os.Exit(1)
	}

	mem, err := a.Memory()
	if err != nil {
		logger.Error("failed to load memory", "error", err)
		os.Exit(1)
	}
	c, err := a.Chain(mem)
	if err != nil {
		logger.Error("failed to build chain", "error", err)
		os.Exit(1)
	}
	executor, err := a.Agent(mem)
	if err != nil {
		logger.Error("failed to build agent", "error", err)
		os.Exit(1)
	}

	server := mcpserver.NewServer(&mcpserver.Config{
		Collection: cfg.Store.Collection,
		Searcher:   a.Retriever,
		Index:      a.Index,
		Asker:      c,
		Runner:     executor,
	})

	mux := mcpserver.NewMux(server, a.Index)

	addr := "0.0.0.0:" + cfg.Server.Port

	if cfg.Server.ServerMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		httpServer := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
		logger.Info("starting HTTP server", "addr", addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: MCP over stdin/stdout, health endpoint in the background
	go func() {
		logger.Info("starting health server", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("health server error", "error", err)
		}
	}()

	logger.Info("starting MCP server (stdio mode)", "collection", cfg.Store.Collection)
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
