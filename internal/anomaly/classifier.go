package anomaly

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mr1hm/ocean-sentinel/internal/features"
)

// Outcome is the raw verdict of the outlier model.
type Outcome struct {
	Anomalous     bool
	DecisionScore float64 // more negative is more anomalous
}

// Classifier owns the process-wide model of one feature mode. The model is
// loaded or trained on first use and replaced only through Reload.
type Classifier struct {
	mode features.Mode
	path string
	cfg  ForestConfig

	once  sync.Once
	mu    sync.RWMutex
	model *Forest
	err   error
}

// NewClassifier caches its model under dir; an empty dir disables caching.
func NewClassifier(dir string, mode features.Mode) *Classifier {
	c := &Classifier{
		mode: mode,
		cfg:  DefaultForestConfig(),
	}
	if dir != "" {
		c.path = filepath.Join(dir, fmt.Sprintf("anomaly_detector_%s.json", mode))
	}
	return c
}

func (c *Classifier) Mode() features.Mode { return c.mode }

// Path is the model cache file, empty when caching is disabled.
func (c *Classifier) Path() string { return c.path }

// Model returns the shared model, loading or training it on the first call.
func (c *Classifier) Model() (*Forest, error) {
	c.once.Do(func() {
		m, err := c.loadOrTrain()
		c.mu.Lock()
		c.model, c.err = m, err
		c.mu.Unlock()
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model, c.err
}

// Reload re-reads the cache (retraining if it is unusable) and swaps the
// model in for subsequent calls.
func (c *Classifier) Reload() error {
	m, err := c.loadOrTrain()
	if err != nil {
		return err
	}
	// a Reload before first use must not be overwritten by a late lazy init
	c.once.Do(func() {})

	c.mu.Lock()
	c.model, c.err = m, nil
	c.mu.Unlock()

	slog.Info("anomaly model reloaded", "mode", c.mode, "path", c.path)
	return nil
}

func (c *Classifier) Classify(v features.Vector) (Outcome, error) {
	if v.Mode != c.mode {
		return Outcome{}, fmt.Errorf("classifier serves %s vectors, got %s", c.mode, v.Mode)
	}
	m, err := c.Model()
	if err != nil {
		return Outcome{}, fmt.Errorf("anomaly model unavailable: %w", err)
	}

	x := v.Values()
	// change quieter than the calmest baseline scene scores like that scene
	exceedsMedian := false
	for i := range x {
		if x[i] < m.Floor[i] {
			x[i] = m.Floor[i]
		}
		if x[i] > m.Median[i] {
			exceedsMedian = true
		}
	}

	d, err := m.Decision(x)
	if err != nil {
		return Outcome{}, err
	}

	// only more change than the typical baseline can be anomalous change
	return Outcome{Anomalous: d < 0 && exceedsMedian, DecisionScore: d}, nil
}

func (c *Classifier) loadOrTrain() (*Forest, error) {
	if c.path != "" {
		m, err := c.load()
		if err == nil {
			slog.Info("loaded anomaly model", "path", c.path, "mode", c.mode)
			return m, nil
		}
		if !os.IsNotExist(err) {
			slog.Warn("anomaly model unusable, retraining", "path", c.path, "error", err)
		}
	}

	slog.Info("training anomaly model", "mode", c.mode, "trees", c.cfg.Trees)
	m, err := Fit(Baseline(c.mode), c.cfg)
	if err != nil {
		return nil, fmt.Errorf("error training anomaly model: %w", err)
	}

	if c.path != "" {
		if err := c.save(m); err != nil {
			slog.Warn("failed to cache anomaly model", "path", c.path, "error", err)
		} else {
			slog.Info("anomaly model trained and cached", "path", c.path)
		}
	}
	return m, nil
}

func (c *Classifier) load() (*Forest, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var m Forest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error decoding model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	if m.Dims != c.mode.Len() {
		return nil, fmt.Errorf("model has %d features, %s mode needs %d", m.Dims, c.mode, c.mode.Len())
	}
	return &m, nil
}

// save writes through a temp file so a concurrent reader never sees a
// partial model.
func (c *Classifier) save(m *Forest) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
