package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidasaras/reactive"
	"github.com/vidasaras/reactive/cmd/reactive/internal/config"
)

// Serve executes the serve subcommand: host an HTML page as a live
// application with per-visitor state.
func Serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	pageFile := fs.String("page", "", "HTML page to serve")
	stateFile := fs.String("state", "", "YAML or JSON initial state file")
	addr := fs.String("addr", "", "listen address (default from config)")
	minify := fs.Bool("minify", false, "minify rendered fragments")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: reactive serve -page FILE [-state FILE] [-addr HOST:PORT] [-minify]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *pageFile == "" {
		fs.Usage()
		return fmt.Errorf("-page is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = cfg.DefaultAddr
	}

	page, err := os.ReadFile(*pageFile)
	if err != nil {
		return fmt.Errorf("read page file: %w", err)
	}

	state := map[string]any{}
	if *stateFile != "" {
		loaded, err := loadState(*stateFile)
		if err != nil {
			return err
		}
		state = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	engineOptions := []reactive.EngineOption{reactive.WithLogger(logger)}
	if *minify || cfg.Minify {
		engineOptions = append(engineOptions, reactive.WithMinify())
	}

	sessions := reactive.NewMemorySessionStore(time.Duration(cfg.SessionTTLHours) * time.Hour)
	stopCleanup := sessions.StartCleanup(10 * time.Minute)
	defer stopCleanup()

	handler, err := reactive.NewHandler(string(page), state,
		reactive.WithHandlerLogger(logger),
		reactive.WithSessionStore(sessions),
		reactive.WithEngineOptions(engineOptions...),
	)
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	server := &http.Server{Addr: listenAddr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("serving", "addr", listenAddr, "page", *pageFile)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
