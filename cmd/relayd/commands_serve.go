package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goldbox/relay/internal/config"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/ingress"
	"github.com/goldbox/relay/internal/link"
	"github.com/goldbox/relay/internal/maintenance"
	"github.com/goldbox/relay/internal/orchestrator"
	"github.com/goldbox/relay/internal/pending"
	"github.com/goldbox/relay/internal/providers"
	"github.com/goldbox/relay/internal/sessionstore"
	"github.com/goldbox/relay/internal/toolexec"
)

// buildServeCmd creates the "serve" command that starts the relay server.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Long: `Start the relay server.

The server will:
1. Load configuration from the specified file (or relayd.yaml)
2. Register the enabled LLM providers (OpenAI, Anthropic, Bedrock, local)
3. Start the session eviction maintenance sweep
4. Start the WebSocket endpoint frontend clients connect to

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "relayd.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug-level logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("loading configuration", "config", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gateway := buildGateway(cfg, logger)

	sessions := sessionstore.NewMemoryStore(cfg.Session.IdleTimeout)
	collector := inbox.New(cfg.ToInboxLimits())
	registry := pending.New(logger)

	// Hub is a Sender; Executor and Orchestrator need a Sender before they
	// exist, and Ingress needs the Orchestrator before the Hub can be handed
	// its ingress — so the Hub is constructed first with ingress left nil
	// and wired in afterward via SetIngress, once the rest of the chain is
	// built against the Hub itself.
	hub := link.NewHub(collector, registry, nil, cfg.Server.GraceWindow, logger)

	executor := toolexec.New(collector, registry, hub, logger)
	orch := orchestrator.New(sessions, collector, gateway, executor, hub, orchestrator.Config{}, logger)
	ing := ingress.New(sessions, collector, orch, logger)
	hub.SetIngress(ing)

	var sched *maintenance.Scheduler
	if cfg.Maintenance.Enabled {
		sched, err = maintenance.New(sessions, cfg.Maintenance.Cron, logger)
		if err != nil {
			return fmt.Errorf("failed to start maintenance scheduler: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if sched != nil {
		sched.Start(ctx)
	}

	server, listener, err := startHTTPServer(cfg, hub, logger)
	if err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
			return
		}
		errCh <- nil
	}()

	logger.Info("relay server started", "addr", listener.Addr().String())

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "err", err)
	}

	if sched != nil {
		sched.Stop()
	}

	return nil
}

// buildGateway registers each LLM vendor enabled in cfg.LLM.Providers
// against a fresh providers.Gateway, keyed by the same provider ids the
// frontend's settings_sync frame names.
func buildGateway(cfg *config.Config, logger *slog.Logger) *providers.Gateway {
	var registered []providers.Provider

	if vendor, ok := cfg.LLM.Providers["openai"]; ok && vendor.Enabled {
		registered = append(registered, providers.NewOpenAIProvider(vendor.BaseURL))
	}
	if vendor, ok := cfg.LLM.Providers["anthropic"]; ok && vendor.Enabled {
		registered = append(registered, providers.NewAnthropicProvider(vendor.BaseURL))
	}
	if vendor, ok := cfg.LLM.Providers["bedrock"]; ok && vendor.Enabled {
		registered = append(registered, providers.NewBedrockProvider(vendor.Region))
	}
	if vendor, ok := cfg.LLM.Providers["local"]; ok && vendor.Enabled {
		registered = append(registered, providers.NewLocalProvider(vendor.BaseURL))
	}

	keys := config.NewEnvKeyStore(cfg)
	return providers.New(keys, cfg.LLM.FallbackChain, logger, registered...)
}

func startHTTPServer(cfg *config.Config, hub *link.Hub, logger *slog.Logger) (*http.Server, net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// No /healthz or other admin surface: spec.md's Non-goals exclude
	// health/info endpoints, so the single bound route is the frame
	// transport itself.
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return server, listener, nil
}
