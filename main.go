// go_websearch — a web-research MCP server exposing web_search and fetch.
//
// Runs as an HTTP MCP server (streamable-HTTP transport, with /health and
// /metrics companions) or as stdio transport for --stdio.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_websearch/internal/cache"
	"github.com/anatolykoptev/go_websearch/internal/config"
	"github.com/anatolykoptev/go_websearch/internal/httpclient"
	"github.com/anatolykoptev/go_websearch/internal/mcpserver"
	"github.com/anatolykoptev/go_websearch/internal/metrics"
)

var version = "dev"

func main() {
	flags := config.ParseFlags(os.Args[1:])
	cfg := config.Bootstrap(flags)
	config.Init(cfg)

	logWriter := os.Stdout
	if flags.Stdio {
		logWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	client, err := httpclient.New(httpclient.Options{
		Profile:   httpclient.ProfileForName(cfg.CurlImpersonate),
		UserAgent: cfg.UserAgent,
		CFWorker:  cfg.CFWorker,
		Proxy:     cfg.Proxy,
		TimeoutS:  cfg.FetchTimeoutS,
	})
	if err != nil {
		logger.Error("http client init failed", slog.Any("error", err))
		os.Exit(1)
	}

	var resultCache *cache.Cache
	if cfg.RedisURL != "" || cfg.CacheMaxEntries > 0 {
		resultCache = cache.New(context.Background(), cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries)
	}

	logger.Info("starting go_websearch",
		slog.Bool("stdio", flags.Stdio),
		slog.String("port", cfg.MCPPort),
		slog.Bool("llm_configured", cfg.LLMConfigured()),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_websearch",
		Version: version,
	}, nil)

	mcpserver.RegisterTools(server, mcpserver.Deps{
		Client: client,
		Cfg:    cfg,
		Cache:  resultCache,
	})
	logger.Info("tools registered", slog.Int("count", 2))

	if flags.Stdio {
		logger.Info("running in stdio mode")
		if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
			logger.Error("stdio server failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.Handle("/mcp/", handler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","service":"go_websearch","version":"` + version + `"}`))
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(metrics.Format(resultCache)))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.MCPPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
	logger.Info("stopped")
}

func logLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
