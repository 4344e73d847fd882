// Package monitor re-analyzes every catalog location on a fixed interval.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/ocean-sentinel/internal/config"
	"github.com/mr1hm/ocean-sentinel/internal/pipeline"
	"github.com/mr1hm/ocean-sentinel/internal/worker"
)

// Analyzer is the part of pipeline.Service the monitor drives.
type Analyzer interface {
	AnalyzeLocation(ctx context.Context, id string) (*pipeline.Result, error)
}

type Manager struct {
	cfg      *config.Config
	analyzer Analyzer
	ids      []string
	pool     *worker.WorkerPool[string]
	wg       sync.WaitGroup
}

func NewManager(cfg *config.Config, analyzer Analyzer, ids []string) *Manager {
	return &Manager{
		cfg:      cfg,
		analyzer: analyzer,
		ids:      ids,
	}
}

func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, id string) error {
		res, err := m.analyzer.AnalyzeLocation(ctx, id)
		if err != nil {
			slog.Error("scheduled analysis failed", "location", id, "error", err)
			return err
		}
		slog.Debug("scheduled analysis", "location", id, "risk_level", res.Risk.RiskLevel)
		return nil
	}

	m.pool = worker.NewWorkerPool[string](m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.Start(ctx)

	if m.cfg.Monitor.Enabled {
		m.wg.Add(1)
		go m.run(ctx, m.cfg.Monitor.Interval)
	}
}

func (m *Manager) run(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()
	slog.Info("starting monitor", "locations", len(m.ids), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial sweep
	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor shutting down")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	slog.Debug("monitor sweep", "locations", len(m.ids))
	for _, id := range m.ids {
		if err := m.pool.SubmitContext(ctx, id); err != nil {
			return
		}
	}
}

func (m *Manager) Stop() {
	m.wg.Wait()
	m.pool.Stop()
	slog.Info("monitor stopped")
}
