package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexjbarnes/dexcom-sync/internal/config"
	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
	"github.com/alexjbarnes/dexcom-sync/internal/logging"
	"github.com/alexjbarnes/dexcom-sync/internal/mcpserver"
	"github.com/alexjbarnes/dexcom-sync/internal/server"
	"github.com/alexjbarnes/dexcom-sync/internal/state"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	APIURL          string
	ListenAddr      string
	APIKeys         string
	StatePath       string
	StatePassphrase string
	TargetsFile     string
	LogLevel        string
}

func loadConfig() *cliConfig {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.ClientID, "client-id", os.Getenv("DEXCOM_CLIENT_ID"), "Dexcom application client ID")
	flag.StringVar(&cfg.ClientSecret, "client-secret", os.Getenv("DEXCOM_CLIENT_SECRET"), "Dexcom application client secret")
	flag.StringVar(&cfg.RedirectURI, "redirect-uri", os.Getenv("DEXCOM_REDIRECT_URI"), "OAuth redirect URI registered with the application")
	flag.StringVar(&cfg.APIURL, "api-url", envOr("DEXCOM_API_URL", "https://sandbox-api.dexcom.com"), "Dexcom API base URL")
	flag.StringVar(&cfg.ListenAddr, "listen-addr", envOr("MCP_LISTEN_ADDR", ":8090"), "HTTP listen address")
	flag.StringVar(&cfg.APIKeys, "api-keys", os.Getenv("MCP_API_KEYS"), "comma-separated user:key pairs")
	flag.StringVar(&cfg.StatePath, "state-path", os.Getenv("STATE_PATH"), "state database path (default ~/.dexcom-sync/state.db)")
	flag.StringVar(&cfg.StatePassphrase, "state-passphrase", os.Getenv("STATE_PASSPHRASE"), "passphrase protecting stored tokens")
	flag.StringVar(&cfg.TargetsFile, "targets-file", os.Getenv("TARGETS_FILE"), "YAML file overriding statistics target ranges")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("MCP_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	flag.Parse()

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run() error {
	cfg := loadConfig()

	logger := logging.NewLoggerAt(envOr("ENVIRONMENT", "development"), logging.ParseLevel(cfg.LogLevel))

	if cfg.ClientID == "" {
		return fmt.Errorf("DEXCOM_CLIENT_ID or --client-id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("DEXCOM_CLIENT_SECRET or --client-secret is required")
	}
	if cfg.RedirectURI == "" {
		return fmt.Errorf("DEXCOM_REDIRECT_URI or --redirect-uri is required")
	}
	if cfg.StatePassphrase == "" {
		return fmt.Errorf("STATE_PASSPHRASE or --state-passphrase is required")
	}
	if cfg.APIKeys == "" {
		return fmt.Errorf("MCP_API_KEYS or --api-keys is required")
	}

	entries, err := (&config.Config{MCPAPIKeys: cfg.APIKeys}).ParseMCPAPIKeys()
	if err != nil {
		return fmt.Errorf("parsing API keys: %w", err)
	}

	keys := make(map[string]string, len(entries))
	for _, e := range entries {
		keys[e.UserID] = e.Key
	}

	client, err := dexcom.NewClient(dexcom.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		APIURL:       cfg.APIURL,
	}, nil)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath, err = config.DefaultStatePath()
		if err != nil {
			return err
		}
	}

	store, err := state.LoadAt(statePath, cfg.StatePassphrase)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	targetsFile := cfg.TargetsFile
	if targetsFile != "" {
		targetsFile, err = filepath.Abs(targetsFile)
		if err != nil {
			return fmt.Errorf("resolving targets file to absolute path: %w", err)
		}
	}

	targets, err := config.LoadTargets(targetsFile)
	if err != nil {
		return fmt.Errorf("loading statistics targets: %w", err)
	}

	svc := mcpserver.NewService(client, store, logger, targets)

	// Signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if targetsFile != "" {
		go func() {
			if err := config.WatchTargets(ctx, targetsFile, logger, svc.SetTargets); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("targets watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "dexcom-sync-mcp", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, svc)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	mux := server.NewMux(server.MuxConfig{
		Keys:       server.NewKeySet(keys),
		MCPHandler: mcpHandler,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server",
		slog.String("listen", cfg.ListenAddr),
		slog.Int("api_keys", len(entries)),
	)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
