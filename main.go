package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testrail-mcp-server/internal/application"
	"testrail-mcp-server/internal/domain"
	"testrail-mcp-server/internal/infrastructure"
)

// options holds the command-line overrides.
type options struct {
	configPath string
	transport  string
	host       string
	port       int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "testrail-mcp-server",
		Short: "MCP server exposing TestRail project operations as tools",
		Long: `testrail-mcp-server bridges MCP clients to the TestRail API v2.

Credentials are read from the environment (or a .env file):
  TESTRAIL_BASE_URL, TESTRAIL_USERNAME, TESTRAIL_API_KEY

The server speaks MCP over stdio or over HTTP with Server-Sent Events.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), config)
		},
	}

	bindFlags(cmd, opts)

	return cmd
}

func bindFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file (optional)")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport type: stdio or sse")
	cmd.Flags().StringVar(&opts.host, "host", "", "Host for the SSE listener")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Port for the SSE listener")
}

// loadConfig reads the configuration, applies flags that were set explicitly
// and validates the merged result once.
func loadConfig(cmd *cobra.Command, opts *options) (*domain.Config, error) {
	config, err := domain.ReadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		config.Transport.Type = opts.transport
	}
	if flags.Changed("host") {
		config.Transport.HTTP.Host = opts.host
	}
	if flags.Changed("port") {
		config.Transport.HTTP.Port = opts.port
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// buildRouter wires the TestRail bridge and the tool handlers.
func buildRouter(config *domain.Config) (*application.RequestRouter, error) {
	httpClient, err := domain.NewAuthenticatedClient(domain.CredentialsFromConfig(config), config.TestRail.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %w", err)
	}

	client := infrastructure.NewTestRailClient(config.TestRail.BaseURL, httpClient)
	mapper := domain.NewResponseMapper()

	return application.NewRequestRouter(
		application.NewProjectHandler(client, mapper),
		application.NewDemoHandler(),
	), nil
}

// newTransport selects the transport named in the configuration.
func newTransport(config *domain.Config, logger *zap.Logger) (domain.Transport, error) {
	switch config.Transport.Type {
	case domain.TransportStdio:
		return domain.NewStdioTransport(), nil
	case domain.TransportSSE:
		return domain.NewSSETransport(config.Transport.HTTP, logger), nil
	default:
		return nil, fmt.Errorf("invalid transport type: %s", config.Transport.Type)
	}
}

func run(ctx context.Context, config *domain.Config) error {
	zapLogger, err := application.NewZapLogger(config.Log.Level, config.Log.Env)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger := application.NewStructuredLogger(zapLogger)
	defer func() { _ = logger.Sync() }()

	router, err := buildRouter(config)
	if err != nil {
		return err
	}
	logger.LogInfo("request router initialized", map[string]interface{}{
		"base_url": config.TestRail.BaseURL,
		"tools":    len(router.ListAllTools()),
	})

	transport, err := newTransport(config, zapLogger)
	if err != nil {
		return err
	}

	server := application.NewServer(transport, router, config, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	if config.Transport.Type == domain.TransportStdio {
		logger.LogInfo("MCP server started (stdio transport)", nil)
	} else {
		logger.LogInfo("MCP server started (SSE transport)", map[string]interface{}{
			"addr":           config.Transport.HTTP.Addr(),
			"session_policy": config.Transport.HTTP.SessionPolicy,
		})
	}

	// Wait for shutdown signal or the transport running dry
	select {
	case sig := <-sigChan:
		logger.LogInfo("received signal, shutting down", map[string]interface{}{"signal": sig.String()})
	case <-server.Done():
		logger.LogInfo("transport closed, shutting down", nil)
	}

	cancel()

	if err := server.Close(); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}

	logger.LogInfo("server shutdown complete", nil)
	return nil
}
