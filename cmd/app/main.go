package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deribit_book/internal/app"
	"deribit_book/internal/domain"
	"deribit_book/internal/engine"
	"deribit_book/internal/infra"
	"deribit_book/internal/infra/deribit"
	"deribit_book/internal/service"

	_ "github.com/joho/godotenv/autoload" // .env → environment before config load
	_ "net/http/pprof"                    // For pprof profiling
)

func main() {
	configPath := flag.String("config", app.DefaultConfigPath, "path to config.yaml")
	pprofAddr := flag.String("pprof", "localhost:6060", "pprof listen address, empty to disable")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	if *pprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap(*configPath)
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	journal := bootstrap.Journal()

	// 4. Reporter & Engine
	reporter := service.NewReporter(os.Stdout, journal, cfg.Report.MaxSpread, cfg.Report.SampleEvery)
	eng := engine.NewEngine(cfg.API.Deribit.Instrument, 1024, cfg.ReportInterval(), journal, reporter)

	// 5. Deribit Worker (Gateway); a gap in the engine drops its connection
	nextSeq := uint64(0)
	var feed domain.FeedWorker = deribit.NewWorker(cfg, eng.Inbox(), &nextSeq)
	eng.OnResync(feed.Resync)

	// Start Engine in its own goroutine (The Hotpath Loop)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx)
	}()
	slog.InfoContext(ctx, "✅ Engine (Hotpath) started")

	if err := feed.Connect(ctx); err != nil {
		slog.Error("Failed to connect Deribit", slog.Any("error", err))
		os.Exit(1)
	}
	slog.InfoContext(ctx, "✅ DeribitWorker started", slog.String("channel", cfg.Channel()))

	go app.LogMetrics(ctx, infra.GlobalMetrics, 30*time.Second)

	slog.InfoContext(ctx, "✨ Book replica fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal, or for the feed to give up
	select {
	case <-ctx.Done():
	case <-feed.Done():
		slog.Error("❌ Deribit feed stopped", slog.Any("error", feed.Err()))
		stop()
	}

	slog.Info("👋 Shutting down gracefully...")
	feed.Disconnect()
	<-engineDone
}
