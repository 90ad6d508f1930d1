// Taskchat is a multi-user TODO backend with a natural-language chat
// interface. Task CRUD is exposed over HTTP, and a chat endpoint
// translates free-text requests into the same operations through a
// model tool-calling round trip. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskchat/internal/api"
	"taskchat/internal/auth"
	"taskchat/internal/buildinfo"
	"taskchat/internal/chat"
	"taskchat/internal/config"
	"taskchat/internal/llm"
	"taskchat/internal/store"
	"taskchat/internal/tools"
)

// main constructs the OS-level environment and delegates immediately to
// [run], keeping os.Exit and os.Args out of the application logic.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("taskchat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := config.FindConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	logger.Info(buildinfo.String(), "config", path)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store opened", "path", cfg.Database.Path)

	tokens, err := auth.NewTokenIssuer(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		return err
	}

	gateway, err := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, logger)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(st, logger)
	orchestrator := chat.New(st, registry, gateway, cfg.Chat.HistoryLimit, logger)
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, st, orchestrator, tokens, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
