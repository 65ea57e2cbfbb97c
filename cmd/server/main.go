package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/liamcoop/gradcheck/internal/logger"
)

// Config is read from the environment, after loading an optional .env file.
type Config struct {
	DatabaseURL  string
	Port         string
	CatalogFiles []string
	ProgramFiles []string
	SeedDefaults bool
	Migrate      bool
	CacheTTL     time.Duration

	// AllowDuplicateCodes accepts a course code that appears in more than one catalog file.
	AllowDuplicateCodes bool
}

func LoadConfig() (Config, error) {
	cfg := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Port:         os.Getenv("PORT"),
		CatalogFiles: splitList(os.Getenv("CATALOG_FILES")),
		ProgramFiles: splitList(os.Getenv("PROGRAM_FILES")),
		SeedDefaults: true,
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	var err error
	if cfg.SeedDefaults, err = envBool("SEED_DEFAULT_PROGRAMS", true); err != nil {
		return Config{}, err
	}
	if cfg.Migrate, err = envBool("RUN_MIGRATIONS", false); err != nil {
		return Config{}, err
	}
	if cfg.AllowDuplicateCodes, err = envBool("CATALOG_ALLOW_DUPLICATES", false); err != nil {
		return Config{}, err
	}
	if s := os.Getenv("RULES_CACHE_TTL"); s != "" {
		if cfg.CacheTTL, err = time.ParseDuration(s); err != nil {
			return Config{}, fmt.Errorf("invalid RULES_CACHE_TTL: %w", err)
		}
	}
	return cfg, nil
}

func envBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
	if level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}
	if err := logger.EnableOTEL(context.Background()); err != nil {
		logger.Warn("OpenTelemetry logging disabled", "error", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "programs", len(server.manager.ListPrograms()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("log exporter shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
