package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/mp-rss/app/api"
	"github.com/lysyi3m/mp-rss/app/cfg"
	"github.com/lysyi3m/mp-rss/app/directory"
	"github.com/lysyi3m/mp-rss/app/feed"
	"github.com/lysyi3m/mp-rss/app/store"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting mp-rss", "version", appCfg.Version, "addr", appCfg.Addr())

	if appCfg.InitStore {
		version, dirty, err := store.Migrate(appCfg.StorePath)
		if err != nil {
			slog.Error("Failed to initialize message store", "path", appCfg.StorePath, "error", err)
			os.Exit(1)
		}
		slog.Info("Message store schema ready", "version", version, "dirty", dirty)
	}

	reader, err := store.Open(appCfg.StorePath)
	if err != nil {
		slog.Error("Failed to open message store", "path", appCfg.StorePath, "error", err)
		os.Exit(1)
	}
	defer reader.Close()
	slog.Info("Message store opened", "path", appCfg.StorePath)

	accounts := directory.NewCache(directory.NewFileLoader(appCfg.AccountsPath, appCfg.MappingPath, appCfg.HiddenNames))

	// The first load is eager so a broken snapshot shows up at startup;
	// requests retry lazily when it fails.
	if _, err := accounts.Accounts(context.Background()); err != nil {
		slog.Error("Account directory not loaded", "error", err)
	}

	rss, err := feed.NewRSSGenerator(appCfg.Language, appCfg.Version)
	if err != nil {
		slog.Error("Invalid feed settings", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(accounts, reader, rss, feed.NewOPMLGenerator(), appCfg)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         appCfg.Addr(),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", appCfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("mp-rss shutdown complete")
}
