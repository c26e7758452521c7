package main

import (
	"bufio"
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

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/dexcom-sync/internal/config"
	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
	"github.com/alexjbarnes/dexcom-sync/internal/logging"
	"github.com/alexjbarnes/dexcom-sync/internal/mcpserver"
	"github.com/alexjbarnes/dexcom-sync/internal/poller"
	"github.com/alexjbarnes/dexcom-sync/internal/server"
	"github.com/alexjbarnes/dexcom-sync/internal/state"
)

var Version = "dev"

func main() {
	// Handle login subcommand before config-driven startup.
	if len(os.Args) > 1 && os.Args[1] == "login" {
		if err := login(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// login exchanges an authorization code for a token envelope and stores
// it. With no argument it prints the browser URL and reads the code from
// stdin.
func login(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := dexcom.NewClient(cfg.Provider(), nil)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		fmt.Fprintf(os.Stderr, "Open this URL in a browser and sign in:\n\n  %s\n\n", client.AuthorizeURL())
		fmt.Fprint(os.Stderr, "Enter the authorization code from the redirect: ")

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("no input")
		}
		code = strings.TrimSpace(scanner.Text())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := client.ExchangeAuthCode(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	store, err := state.LoadAt(cfg.StatePath, cfg.StatePassphrase)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	if err := store.SetTokenEnvelope(env); err != nil {
		return fmt.Errorf("storing token envelope: %w", err)
	}

	fmt.Println("Logged in. Token envelope stored.")

	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("dexcom-sync starting",
		slog.String("version", Version),
		slog.Bool("poll", cfg.EnablePoll),
		slog.Bool("mcp", cfg.EnableMCP),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := dexcom.NewClient(cfg.Provider(), nil)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	// The state database takes an exclusive file lock, so both services
	// share one store.
	store, err := state.LoadAt(cfg.StatePath, cfg.StatePassphrase)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.EnablePoll {
		g.Go(func() error {
			return runPoll(gctx, cfg, client, store, logger)
		})
	}

	if cfg.EnableMCP {
		g.Go(func() error {
			return runMCP(gctx, cfg, client, store, logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// runPoll starts the periodic glucose fetch loop.
func runPoll(ctx context.Context, cfg *config.Config, client *dexcom.Client, store *state.Store, logger *slog.Logger) error {
	pollLogger := logger.With(slog.String("service", "poll"))

	pollLogger.Info("starting poll loop",
		slog.Duration("interval", cfg.PollInterval),
		slog.Int("lookback_days", cfg.LookbackDays),
	)

	p := poller.New(client, store, pollLogger, cfg.PollInterval, cfg.LookbackDays)

	return p.Run(ctx)
}

// runMCP starts the MCP HTTP server.
func runMCP(ctx context.Context, cfg *config.Config, client *dexcom.Client, store *state.Store, logger *slog.Logger) error {
	entries, err := cfg.ParseMCPAPIKeys()
	if err != nil {
		return fmt.Errorf("parsing MCP API keys: %w", err)
	}

	keys := make(map[string]string, len(entries))
	for _, e := range entries {
		keys[e.UserID] = e.Key
	}

	mcpLogger := logger.With(slog.String("service", "mcp"))

	targets, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return fmt.Errorf("loading statistics targets: %w", err)
	}

	svc := mcpserver.NewService(client, store, mcpLogger, targets)

	if cfg.TargetsFile != "" {
		go func() {
			if err := config.WatchTargets(ctx, cfg.TargetsFile, mcpLogger, svc.SetTargets); err != nil && !errors.Is(err, context.Canceled) {
				mcpLogger.Error("targets watcher stopped", slog.String("error", err.Error()))
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
		Logger:     mcpLogger,
	})

	httpServer := &http.Server{
		Addr:         cfg.MCPListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	mcpLogger.Info("starting MCP server",
		slog.String("listen", cfg.MCPListenAddr),
		slog.Int("api_keys", len(entries)),
	)

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		mcpLogger.Info("shutting down MCP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
