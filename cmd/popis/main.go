package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/erazemk/popis/internal/api"
	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/backend"
	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/store"
)

const usage = `Usage: popis <command> [flags]

Commands:
  init     set a generated owner password on an empty backend
  serve    run the HTTP API (default; initializes on first run)
  passwd   replace the owner password and sign out every session

Run "popis <command> --help" to list flags. Every flag can also be set
through a POPIS_* environment variable or a .env file.
`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		cmd = os.Args[1]
		// conf reads flags from os.Args.
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
	}

	var run func(context.Context, *config.Config) error
	switch cmd {
	case "init":
		run = cmdInit
	case "serve":
		run = cmdServe
	case "passwd":
		run = cmdPasswd
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func cmdInit(ctx context.Context, cfg *config.Config) error {
	b, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	ok, err := auth.HasPassword(ctx, b)
	if err != nil {
		return err
	}
	if ok {
		return errors.New("backend already initialized, use passwd to replace the password")
	}

	password, err := initOwner(ctx, b)
	if err != nil {
		return err
	}
	printInitResult(cfg, password)
	return nil
}

func cmdPasswd(ctx context.Context, cfg *config.Config) error {
	b, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	password, err := initOwner(ctx, b)
	if err != nil {
		return err
	}

	fmt.Println("Password replaced. Existing sessions are signed out.")
	fmt.Printf("  Password: %s\n", password)
	return nil
}

func cmdServe(ctx context.Context, cfg *config.Config) error {
	slog.Debug("configuration", "config", cfg.String())

	b, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	// Auto-init on first run.
	ok, err := auth.HasPassword(ctx, b)
	if err != nil {
		return err
	}
	if !ok {
		password, err := initOwner(ctx, b)
		if err != nil {
			return err
		}
		printInitResult(cfg, password)
		fmt.Println()
	}

	if _, err := auth.EnsureSecret(ctx, b); err != nil {
		return err
	}

	m := metrics.New()
	inventory, err := store.Open(ctx, m.Backend(b), store.WithLogger(slog.Default().With("component", "store")))
	if err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	slog.Info("inventory ready", "backend", cfg.Backend,
		"categories", len(inventory.Categories()), "items", len(inventory.Items()))

	router := api.NewRouter(api.Config{
		Store:       inventory,
		Backend:     b,
		Metrics:     m,
		Origins:     cfg.Origins(),
		Development: cfg.Development,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing backend")
	return nil
}

// openBackend opens the configured backend and returns a function that releases it.
func openBackend(ctx context.Context, cfg *config.Config) (backend.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		slog.Warn("using memory backend, inventory is lost on exit")
		return backend.NewMemory(cfg.MemoryQuota), func() error { return nil }, nil

	case config.BackendRedis:
		client, err := backend.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("redis ready", "prefix", cfg.RedisPrefix)
		return backend.NewRedis(client, cfg.RedisPrefix), client.Close, nil

	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, nil, err
		}
		slog.Info("database ready", "path", cfg.DBPath)
		return backend.NewSQLite(database), database.Close, nil
	}
}

// initOwner sets a freshly generated owner password and returns it.
func initOwner(ctx context.Context, b backend.Backend) (string, error) {
	password, err := auth.GeneratePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	if err := auth.SetPassword(ctx, b, password); err != nil {
		return "", fmt.Errorf("setting password: %w", err)
	}
	return password, nil
}

// printInitResult prints the initialization result to stdout.
func printInitResult(cfg *config.Config, password string) {
	switch cfg.Backend {
	case config.BackendSQLite:
		fmt.Printf("Database initialized: %s\n", cfg.DBPath)
	default:
		fmt.Printf("Backend initialized: %s\n", cfg.Backend)
	}
	fmt.Println()
	fmt.Println("Owner password:")
	fmt.Printf("  %s\n", password)
	fmt.Println()
	fmt.Println("Save this password. It cannot be recovered, only replaced with \"popis passwd\".")
}
