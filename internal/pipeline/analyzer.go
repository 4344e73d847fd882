// Package pipeline runs one before/after analysis end to end and, for catalog
// locations, records and announces the outcome.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/ocean-sentinel/internal/anomaly"
	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/geo"
	"github.com/mr1hm/ocean-sentinel/internal/imagery"
	"github.com/mr1hm/ocean-sentinel/internal/indicators"
	"github.com/mr1hm/ocean-sentinel/internal/localize"
	"github.com/mr1hm/ocean-sentinel/internal/models"
	"github.com/mr1hm/ocean-sentinel/internal/risk"
)

const modelVersion = "isolation-forest/v1"

type Request struct {
	LocationID string // enables the persistence lookup; may be empty
	Before     *imagery.Raster
	After      *imagery.Raster
	BBox       *models.BBox // optional
	Center     models.Coordinates
}

type Result struct {
	LocationID    string              `json:"location_id,omitempty"`
	AnomalyLevel  models.AnomalyLevel `json:"anomaly_level"`
	Confidence    float64             `json:"confidence_score"`
	Anomalous     bool                `json:"anomalous"`
	DecisionScore float64             `json:"decision_score"`
	Features      features.Vector     `json:"features"`
	Location      localize.Location   `json:"anomaly_location"`
	Geo           geo.Point           `json:"geo_location"`
	Indicators    indicators.Set      `json:"indicators"`
	Risk          risk.Assessment     `json:"risk_assessment"`
	FeatureMode   features.Mode       `json:"feature_mode"`
	ModelVersion  string              `json:"model_version"`
	Width         int                 `json:"width"`
	Height        int                 `json:"height"`
	Timestamp     time.Time           `json:"timestamp"`
}

type Analyzer struct {
	extractor  *features.Extractor
	classifier *anomaly.Classifier
	indicators *indicators.Analyzer
	aggregator *risk.Aggregator
	now        func() time.Time
}

// NewAnalyzer extracts features in the classifier's mode so the two always
// agree on vector shape.
func NewAnalyzer(classifier *anomaly.Classifier, aggregator *risk.Aggregator, th indicators.Thresholds) *Analyzer {
	return &Analyzer{
		extractor:  features.NewExtractor(classifier.Mode()),
		classifier: classifier,
		indicators: indicators.NewAnalyzer(th),
		aggregator: aggregator,
		now:        time.Now,
	}
}

func (a *Analyzer) Mode() features.Mode {
	return a.extractor.Mode()
}

// ModelPath is where the classifier caches its model, empty when it does not.
func (a *Analyzer) ModelPath() string {
	return a.classifier.Path()
}

// Analyze scores one image pair. The feature, localization and indicator
// stages only read the pair and run concurrently.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	pair, err := imagery.NewPair(req.Before, req.After)
	if err != nil {
		return nil, err
	}
	if req.BBox != nil {
		if err := req.BBox.Validate(); err != nil {
			return nil, &imagery.InputError{Reason: fmt.Sprintf("bbox: %v", err)}
		}
	}

	var (
		vec     features.Vector
		verdict anomaly.Verdict
		loc     localize.Location
		found   indicators.Set
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.extractor.Extract(pair)
		if err != nil {
			return err
		}
		outcome, err := a.classifier.Classify(v)
		if err != nil {
			return err
		}
		vec, verdict = v, anomaly.Assess(v, outcome)
		return nil
	})
	g.Go(func() error {
		loc = localize.Locate(pair)
		return nil
	})
	g.Go(func() error {
		found = a.indicators.Analyze(pair)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	point := geo.Locate(req.BBox, req.Center, loc.NormalizedX, loc.NormalizedY)

	assessment := a.aggregator.Assess(ctx, risk.Input{
		LocationID: req.LocationID,
		Anomaly:    verdict.Level,
		Confidence: verdict.Confidence,
		Features:   &vec,
		Indicators: found,
		Latitude:   point.Latitude,
		Longitude:  point.Longitude,
	})

	return &Result{
		LocationID:    req.LocationID,
		AnomalyLevel:  verdict.Level,
		Confidence:    verdict.Confidence,
		Anomalous:     verdict.Anomalous,
		DecisionScore: verdict.DecisionScore,
		Features:      vec,
		Location:      loc,
		Geo:           point,
		Indicators:    found,
		Risk:          assessment,
		FeatureMode:   vec.Mode,
		ModelVersion:  modelVersion,
		Width:         pair.Width(),
		Height:        pair.Height(),
		Timestamp:     a.now().UTC(),
	}, nil
}
