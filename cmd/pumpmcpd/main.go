package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"PumpMCP/internal/api"
	"PumpMCP/internal/audit"
	"PumpMCP/internal/config"
	"PumpMCP/internal/observability/metrics"
	"PumpMCP/internal/tools"
	"PumpMCP/internal/upstream"
	"PumpMCP/pkg/logger"
)

// main 是 PumpMCP 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("pumpmcpd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.FromEnvironment()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("pumpmcpd")

	transport := upstream.NewHTTPTransport(upstream.HTTPConfig{
		Timeout:   cfg.Upstream.Timeout(),
		Headers:   cfg.Upstream.Headers,
		UserAgent: cfg.Upstream.UserAgent,
	})
	client, err := upstream.NewClient(upstream.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		MaxUploadBytes: cfg.Upstream.MaxUploadBytes,
	}, transport)
	if err != nil {
		return err
	}

	recorder, err := audit.New(ctx, cfg.Audit)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Warn("关闭审计后端失败", "error", err)
		}
	}()

	mcpServer := tools.NewServer(client, tools.Options{
		Recorder:      recorder,
		RecordTimeout: cfg.Audit.RecordTimeout(),
	})
	log.Info("PumpMCP 已就绪",
		"transport", cfg.Server.Transport,
		"upstream", client.BaseURL(),
		"audit_sinks", recorder.Len())

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("指标服务退出", "error", err)
			}
		}()
	}

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		err = api.NewServer(cfg.Server.Address, mcpServer).Start(ctx)
	default:
		stdio := server.NewStdioServer(mcpServer)
		stdio.SetErrorLogger(slog.NewLogLogger(logger.L().Handler(), slog.LevelError))
		err = stdio.Listen(ctx, os.Stdin, os.Stdout)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("PumpMCP 已退出")
	return nil
}
