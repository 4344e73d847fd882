package anomaly

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var extreme = features.Vector{
	Mode:              features.ModeBasic,
	MeanChange:        80,
	StdChange:         40,
	MaxChange:         255,
	EdgeVariance:      5000,
	SignificantPixels: 60,
}

func TestFit_Deterministic(t *testing.T) {
	data := Baseline(features.ModeEnhanced)

	a, err := Fit(data, DefaultForestConfig())
	require.NoError(t, err)
	b, err := Fit(data, DefaultForestConfig())
	require.NoError(t, err)

	x := []float64{30, 15, 60, 300, 20, 90, 0.05, 0.3, 800, 0.2}
	da, err := a.Decision(x)
	require.NoError(t, err)
	db, err := b.Decision(x)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Equal(t, a.Offset, b.Offset)
}

func TestFit_RejectsBadTrainingData(t *testing.T) {
	cfg := DefaultForestConfig()

	_, err := Fit([][]float64{{1, 2}}, cfg)
	assert.Error(t, err, "single sample")

	_, err = Fit([][]float64{{1, 2}, {3}}, cfg)
	assert.Error(t, err, "ragged rows")

	bad := cfg
	bad.Contamination = 0.7
	_, err = Fit([][]float64{{1, 2}, {3, 4}}, bad)
	assert.Error(t, err, "contamination out of range")
}

func TestForest_DecisionChecksWidth(t *testing.T) {
	f, err := Fit(Baseline(features.ModeBasic), DefaultForestConfig())
	require.NoError(t, err)

	_, err = f.Decision([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 2*(2.0794415416798357+eulerGamma)-2*8.0/9, averagePathLength(9), 1e-12)
}

func TestClassifier_NoChangeIsNormal(t *testing.T) {
	c := NewClassifier("", features.ModeBasic)

	o, err := c.Classify(features.Vector{Mode: features.ModeBasic})
	require.NoError(t, err)
	assert.False(t, o.Anomalous)

	v := Assess(features.Vector{Mode: features.ModeBasic}, o)
	assert.Equal(t, models.AnomalyLevelLow, v.Level)
	assert.Equal(t, 0.0, v.Confidence)
}

func TestClassifier_LargeChangeIsAnomalous(t *testing.T) {
	c := NewClassifier("", features.ModeBasic)

	o, err := c.Classify(extreme)
	require.NoError(t, err)
	assert.True(t, o.Anomalous)
	assert.Negative(t, o.DecisionScore)

	v := Assess(extreme, o)
	assert.Equal(t, models.AnomalyLevelHigh, v.Level)
}

func TestClassifier_ModeMismatch(t *testing.T) {
	c := NewClassifier("", features.ModeEnhanced)

	_, err := c.Classify(features.Vector{Mode: features.ModeBasic})
	assert.Error(t, err)
}

func TestClassifier_CachesModel(t *testing.T) {
	dir := t.TempDir()

	first := NewClassifier(dir, features.ModeBasic)
	o1, err := first.Classify(extreme)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "anomaly_detector_basic.json"))

	second := NewClassifier(dir, features.ModeBasic)
	o2, err := second.Classify(extreme)
	require.NoError(t, err)
	assert.Equal(t, o1, o2)
}

func TestClassifier_CorruptCacheRetrains(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anomaly_detector_basic.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := NewClassifier(dir, features.ModeBasic)
	_, err := c.Model()
	require.NoError(t, err)

	// the unusable file is replaced by a loadable model
	m, err := c.load()
	require.NoError(t, err)
	assert.Equal(t, 5, m.Dims)
}

func TestClassifier_WrongModeCacheRetrains(t *testing.T) {
	dir := t.TempDir()
	enhanced := NewClassifier(dir, features.ModeEnhanced)
	_, err := enhanced.Model()
	require.NoError(t, err)

	// a basic classifier pointed at the enhanced file must not use it
	basic := NewClassifier(dir, features.ModeBasic)
	basic.path = enhanced.Path()
	m, err := basic.Model()
	require.NoError(t, err)
	assert.Equal(t, 5, m.Dims)
}

func TestClassifier_Reload(t *testing.T) {
	c := NewClassifier(t.TempDir(), features.ModeBasic)
	before, err := c.Model()
	require.NoError(t, err)

	require.NoError(t, c.Reload())
	after, err := c.Model()
	require.NoError(t, err)

	assert.NotSame(t, before, after)
	assert.Equal(t, before.Offset, after.Offset)
}

func TestConfidence(t *testing.T) {
	v := features.Vector{
		Mode:              features.ModeBasic,
		MeanChange:        30,
		StdChange:         15,
		MaxChange:         60,
		SignificantPixels: 20,
	}

	t.Run("normal verdict is capped by mean change", func(t *testing.T) {
		assert.Equal(t, 18.0, Confidence(v, Outcome{}))
		assert.Equal(t, 100.0, Confidence(features.Vector{MeanChange: 200}, Outcome{}))
	})

	t.Run("anomalous verdict blends decision, magnitude and agreement", func(t *testing.T) {
		// 0.2*100*0.4 + (9+3+6+8)*0.4 + 4*5 + 20
		got := Confidence(v, Outcome{Anomalous: true, DecisionScore: -0.2})
		assert.InDelta(t, 58.4, got, 1e-9)
	})

	t.Run("never exceeds 100", func(t *testing.T) {
		got := Confidence(extreme, Outcome{Anomalous: true, DecisionScore: -5})
		assert.Equal(t, 100.0, got)
	})
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name       string
		v          features.Vector
		o          Outcome
		confidence float64
		want       models.AnomalyLevel
	}{
		{"anomalous and confident", features.Vector{}, Outcome{Anomalous: true}, 71, models.AnomalyLevelHigh},
		{"anomalous and widespread", features.Vector{SignificantPixels: 21}, Outcome{Anomalous: true}, 50, models.AnomalyLevelHigh},
		{"anomalous otherwise", features.Vector{SignificantPixels: 20}, Outcome{Anomalous: true}, 70, models.AnomalyLevelMedium},
		{"normal but large mean change", features.Vector{MeanChange: 31}, Outcome{}, 18, models.AnomalyLevelMedium},
		{"normal", features.Vector{MeanChange: 30}, Outcome{}, 18, models.AnomalyLevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Level(tt.v, tt.o, tt.confidence))
		})
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	c := NewClassifier(t.TempDir(), features.ModeBasic)
	_, err := c.Model()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, c) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_CreatesMissingModelDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "models")
	c := NewClassifier(dir, features.ModeBasic)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, c) }()

	require.Eventually(t, func() bool {
		info, err := os.Stat(dir)
		return err == nil && info.IsDir()
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// the first save lands in the new directory and is picked up by the watcher
	first, err := c.Model()
	require.NoError(t, err)
	require.FileExists(t, c.Path())
	require.Eventually(t, func() bool {
		m, err := c.Model()
		return err == nil && m != first
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_NothingToWatch(t *testing.T) {
	err := Watch(context.Background(), NewClassifier("", features.ModeBasic))
	assert.NoError(t, err)
}
