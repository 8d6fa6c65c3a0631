package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/app"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/server"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/server/rest"
)

var (
	cfgFile     string
	transport   string
	sseAddr     string
	sseEndpoint string
	v           = config.New()
)

var rootCmd = &cobra.Command{
	Use:          "memo-graph",
	Short:        "AI-annotated memos with semantic search and a similarity graph.",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and/or the MCP server.",
	Long: `Transports:
  http   REST API only (default)
  stdio  MCP over stdin/stdout
  sse    MCP over server-sent events
  all    REST API and MCP over SSE`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "json", "json or console")

	serveCmd.Flags().StringVar(&transport, "transport", "http", "http, stdio, sse or all")
	serveCmd.Flags().String("addr", ":8000", "REST API listen address")
	serveCmd.Flags().StringVar(&sseAddr, "sse-addr", ":8080", "MCP SSE listen address")
	serveCmd.Flags().StringVar(&sseEndpoint, "sse-endpoint", "/sse", "MCP SSE endpoint path")
	serveCmd.Flags().String("store", "", "memory, libsql or postgres")
	serveCmd.Flags().String("libsql-url", "", "libSQL database URL (default: file:./libsql.db)")
	serveCmd.Flags().String("auth-token", "", "authentication token for remote libSQL databases")
	serveCmd.Flags().String("embeddings", "", "openai, localai, ollama, hash, or empty to disable")

	// Flags override the environment only when set explicitly.
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("http_addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("store_driver", serveCmd.Flags().Lookup("store"))
	_ = v.BindPFlag("libsql_url", serveCmd.Flags().Lookup("libsql-url"))
	_ = v.BindPFlag("libsql_auth_token", serveCmd.Flags().Lookup("auth-token"))
	_ = v.BindPFlag("embeddings_provider", serveCmd.Flags().Lookup("embeddings"))

	rootCmd.AddCommand(serveCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := metrics.Init(cfg.MetricsPrometheus, cfg.MetricsAddr); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	serveREST := func() error {
		router := rest.NewRouter(a.Service, a.Health, cfg.CORSOrigins, logger.Named("http"))
		return rest.ListenAndServe(gctx, cfg.HTTPAddr, router.Setup(), logger)
	}
	mcpServer := server.NewMCPServer(a)

	switch transport {
	case "http":
		g.Go(serveREST)
	case "stdio":
		g.Go(func() error { return mcpServer.Run(gctx) })
	case "sse":
		g.Go(func() error { return mcpServer.RunSSE(gctx, sseAddr, sseEndpoint) })
	case "all":
		g.Go(serveREST)
		g.Go(func() error { return mcpServer.RunSSE(gctx, sseAddr, sseEndpoint) })
	default:
		return fmt.Errorf("unknown transport: %s (expected: http, stdio, sse or all)", transport)
	}

	logger.Info("memo-graph starting", zap.String("transport", transport), zap.String("version", buildinfo.Version))
	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
