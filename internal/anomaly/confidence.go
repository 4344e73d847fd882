package anomaly

import (
	"math"

	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/models"
)

// DecisionScale maps decision-score magnitude onto 0..100. It assumes the
// isolation forest's decision range of roughly [-0.5, 0.5] and must be
// recalibrated if the model family changes.
var DecisionScale = 100.0

const (
	anomalyBaseConfidence = 20.0
	consistencyPoints     = 5.0
)

// Verdict is the classifier outcome together with its confidence and level.
type Verdict struct {
	Level         models.AnomalyLevel `json:"anomaly_level"`
	Confidence    float64             `json:"confidence_score"`
	DecisionScore float64             `json:"decision_score"`
	Anomalous     bool                `json:"anomalous"`
}

// Confidence scores how sure the pipeline is of its verdict, in [0, 100].
func Confidence(v features.Vector, o Outcome) float64 {
	if !o.Anomalous {
		// claims that nothing happened get a lower ceiling
		return round2(math.Min(100, v.MeanChange*0.6))
	}

	decision := math.Min(100, math.Abs(o.DecisionScore)*DecisionScale)
	magnitude := v.MeanChange*0.3 +
		v.StdChange*0.2 +
		v.MaxChange*0.1 +
		v.SignificantPixels*0.4

	confidence := decision*0.4 + magnitude*0.4 + consistencyBonus(v) + anomalyBaseConfidence
	return round2(math.Min(100, confidence))
}

// consistencyBonus rewards several features agreeing; at most 30 points.
func consistencyBonus(v features.Vector) float64 {
	checks := []bool{
		v.MeanChange > 20,
		v.StdChange > 10,
		v.MaxChange > 50,
		v.SignificantPixels > 15,
		v.TextureComplexity > 60,
		v.HistogramDistance > 0.2,
	}
	var n float64
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	return n * consistencyPoints
}

// Level derives the anomaly level from the verdict and the raw features.
func Level(v features.Vector, o Outcome, confidence float64) models.AnomalyLevel {
	if o.Anomalous {
		if confidence > 70 || v.SignificantPixels > 20 {
			return models.AnomalyLevelHigh
		}
		return models.AnomalyLevelMedium
	}
	if v.MeanChange > 30 {
		return models.AnomalyLevelMedium
	}
	return models.AnomalyLevelLow
}

// Assess bundles Confidence and Level.
func Assess(v features.Vector, o Outcome) Verdict {
	c := Confidence(v, o)
	return Verdict{
		Level:         Level(v, o, c),
		Confidence:    c,
		DecisionScore: o.DecisionScore,
		Anomalous:     o.Anomalous,
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
