package app

import (
	"context"
	"log/slog"
	"time"

	"deribit_book/internal/domain"
	"deribit_book/internal/event"
	"deribit_book/internal/infra"
	"deribit_book/internal/infra/storage"
)

// DefaultConfigPath is used when no -config flag is given
const DefaultConfigPath = "configs/config.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string
	Config     *infra.Config
	Storage    *storage.Storage
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return &Bootstrap{ConfigPath: configPath}
}

// Initialize performs core system initialization (config, logger, DB, pools)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Deribit book...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		slog.Info("✅ Journal initialized", slog.String("path", cfg.Storage.Path))
		b.logJournalSummary(cfg.API.Deribit.Instrument)
	}

	// 4. Warm the change event pool before the first snapshot lands
	event.Warmup()

	slog.Info("✅ Bootstrap complete",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("channel", cfg.Channel()),
	)
	return nil
}

// Journal returns the configured journal, or nil when storage is disabled.
func (b *Bootstrap) Journal() domain.Journal {
	if b.Storage == nil {
		return nil
	}
	return b.Storage
}

// logJournalSummary reports what earlier runs left in the journal.
func (b *Bootstrap) logJournalSummary(instrument string) {
	total, err := b.Storage.CountResyncs("")
	if err != nil {
		slog.Warn("Failed to read journal", slog.Any("error", err))
		return
	}
	gaps, _ := b.Storage.CountResyncs(domain.ResyncReasonGap)
	attrs := []any{slog.Int64("resyncs", total), slog.Int64("gaps", gaps)}

	if recent, err := b.Storage.RecentResyncs(1); err == nil && len(recent) > 0 {
		last := recent[0]
		attrs = append(attrs,
			slog.String("last_resync_reason", last.Reason),
			slog.Time("last_resync_at", last.CreatedAt),
		)
	}
	if samples, err := b.Storage.RecentQuoteSamples(instrument, 1); err == nil && len(samples) > 0 {
		attrs = append(attrs,
			slog.Uint64("last_sample_change_id", samples[0].ChangeID),
			slog.Time("last_sample_at", samples[0].CreatedAt),
		)
	}
	slog.Info("📒 Journal history", attrs...)
}

// Close releases resources acquired by Initialize
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close journal", slog.Any("error", err))
		}
	}
}

// LogMetrics periodically writes a metrics snapshot until ctx is done.
func LogMetrics(ctx context.Context, m *infra.Metrics, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Snapshot()
			slog.Info("Metrics",
				slog.Uint64("snapshots", s.SnapshotsIngested),
				slog.Uint64("deltas", s.DeltasApplied),
				slog.Uint64("gaps", s.GapsDetected),
				slog.Uint64("decode_errors", s.DecodeErrors),
				slog.Uint64("dropped", s.DroppedEvents),
				slog.Uint64("unknown_actions", s.UnknownActions),
				slog.Int64("avg_apply_ns", s.AvgLatencyNs),
				slog.Int("connections", int(s.ActiveConnections)),
				slog.Bool("awaiting_snapshot", s.AwaitingSnapshot),
			)
		}
	}
}
