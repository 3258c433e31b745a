package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spillinova/github-actions-dashboard/pkg/api"
	"github.com/spillinova/github-actions-dashboard/pkg/config"
	"github.com/spillinova/github-actions-dashboard/pkg/dashboard"
	"github.com/spillinova/github-actions-dashboard/pkg/gh"
	"github.com/spillinova/github-actions-dashboard/pkg/selection"
)

const (
	appName = "github-actions-dashboard"
	version = "1.0.0"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "Path to optional YAML config file")
	flag.Parse()

	logger := log.New(os.Stdout, "[Dashboard] ", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	store := buildStore(cfg, logger)

	// The factory is invoked per request on purpose. Memoizing the client at
	// startup would freeze the token and ignore later environment changes.
	svc := dashboard.NewService(
		func(ctx context.Context) (*gh.Client, error) {
			return gh.Build(ctx, logger)
		},
		logger,
		dashboard.Config{
			RepoCap:       cfg.RepoCap,
			PageSize:      cfg.PageSize,
			RunLimit:      cfg.RunLimit,
			ProbeInterval: time.Duration(cfg.ProbeIntervalSeconds) * time.Second,
		},
	)

	router := api.NewRouter(svc, store, logger, api.Options{
		TemplatesGlob: cfg.TemplatesGlob,
		StaticDir:     cfg.StaticDir,
		AppName:       appName,
		Version:       version,
	})

	if os.Getenv("GITHUB_TOKEN") == "" {
		logger.Printf("WARNING: GITHUB_TOKEN is not set; API endpoints will report authentication errors")
	}

	addr := ":" + strconv.Itoa(cfg.Port)
	logger.Printf("Starting %s v%s on %s", appName, version, addr)
	if err := router.Run(addr); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}

// buildStore picks the selection store: Postgres when configured, otherwise
// the process-lifetime memory registry.
func buildStore(cfg *config.Config, logger *log.Logger) selection.Store {
	if !cfg.HasDatabase() {
		logger.Printf("Using in-memory selection registry (resets on restart)")
		return selection.NewMemoryStore()
	}

	store, err := selection.NewPostgresStore(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		logger.Printf("WARNING: failed to connect to Postgres, falling back to memory registry: %v", err)
		return selection.NewMemoryStore()
	}
	logger.Printf("Using Postgres selection store at %s:%s", cfg.DBHost, cfg.DBPort)
	return store
}
