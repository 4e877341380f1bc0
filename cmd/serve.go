package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/planfit-ai/planfit/internal/agent"
	"github.com/planfit-ai/planfit/internal/classify"
	"github.com/planfit-ai/planfit/internal/planner"
	"github.com/planfit-ai/planfit/internal/session"
	"github.com/planfit-ai/planfit/internal/transport"
)

const defaultRequestTimeout = 90 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent server",
		Long:  "Start the HTTP server that accepts chat messages and plans fitness programs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// A .env next to the binary is a convenience for local runs; absence
	// is not an error.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	cfg := initConfig()

	prov, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	storePath, err := cfg.DefaultStorePath()
	if err != nil {
		return err
	}
	store, err := session.NewSQLiteStore(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	timeout := defaultRequestTimeout
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	pl := &timeoutPlanner{
		inner:   planner.New(prov, cfg.Model, logger),
		timeout: timeout,
	}

	courier := transport.NewHTTPCourier(cfg.Agent.Address, selfEndpoint(cfg.ListenAddr), cfg.Peers, 30*time.Second)
	ag := agent.New(store, pl, courier, logger)
	srv := transport.NewServer(cfg.ListenAddr, ag, courier, logger)

	logger.Info("agent starting",
		zap.String("name", cfg.Agent.Name),
		zap.String("address", cfg.Agent.Address),
		zap.String("provider", prov.Name()),
		zap.String("store", storePath),
		zap.String("version", appVersion))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// selfEndpoint derives the URL peers should deliver replies to.
func selfEndpoint(listenAddr string) string {
	host := listenAddr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/v1/messages"
}

// timeoutPlanner bounds each planning call so a stalled model API cannot
// pin a session lock indefinitely.
type timeoutPlanner struct {
	inner   *planner.Planner
	timeout time.Duration
}

func (t *timeoutPlanner) Plan(ctx context.Context, query string, c classify.Classification, history []session.Message, state *session.State) string {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Plan(ctx, query, c, history, state)
}
