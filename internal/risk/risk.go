// Package risk folds an anomaly verdict, its location and context into a
// final risk tier and recommended action.
package risk

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/geo"
	"github.com/mr1hm/ocean-sentinel/internal/indicators"
	"github.com/mr1hm/ocean-sentinel/internal/models"
)

const (
	PersistenceWindow    = 3 * 24 * time.Hour
	PersistenceMinimum   = 2
	PersistenceFactor    = 1.5
	persistenceNote      = " (Persistent anomaly - detected multiple times in past 3 days)"
	highScoreThreshold   = 70.0
	mediumScoreThreshold = 40.0
)

// History answers "which verdicts did this location get since t".
type History interface {
	History(ctx context.Context, locationID string, since time.Time) ([]models.HistoryEntry, error)
}

type Input struct {
	LocationID string
	Anomaly    models.AnomalyLevel
	Confidence float64
	// Features is optional. Without it the score is the bare level score.
	Features   *features.Vector
	Indicators indicators.Set
	Latitude   float64
	Longitude  float64
}

type Assessment struct {
	RiskLevel             models.RiskLevel    `json:"risk_level"`
	RiskScore             float64             `json:"risk_score"`
	BaseAnomaly           models.AnomalyLevel `json:"base_anomaly"`
	RecommendedAction     string              `json:"recommended_action"`
	NearSensitiveZone     bool                `json:"near_sensitive_zone"`
	VeryClose             bool                `json:"very_close"`
	NearbyZones           []geo.NearbyZone    `json:"nearby_zones"`
	ClosestZone           string              `json:"closest_zone,omitempty"`
	ClosestZoneDistanceKm *float64            `json:"closest_zone_distance_km"`
	PersistentAnomaly     bool                `json:"persistent_anomaly"`
	SeasonalFactor        float64             `json:"seasonal_factor"`
	IndicatorSeverity     float64             `json:"indicator_severity"`
	DetectedIndicators    []string            `json:"detected_indicators,omitempty"`
	Concerns              []string            `json:"specific_concerns,omitempty"`
}

type Aggregator struct {
	history History
	zones   []models.SensitiveZone
	now     func() time.Time
}

// NewAggregator builds an aggregator over zones. history may be nil, in which
// case no anomaly is ever persistent; now defaults to time.Now.
func NewAggregator(history History, zones []models.SensitiveZone, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{history: history, zones: zones, now: now}
}

func (a *Aggregator) Zones() []models.SensitiveZone {
	return a.zones
}

func (a *Aggregator) Assess(ctx context.Context, in Input) Assessment {
	now := a.now()

	score := BaseScore(in.Anomaly)
	if in.Features != nil {
		score = (score + magnitudeScore(*in.Features)) * in.Confidence / 100
	}

	persistent := a.persistent(ctx, in.LocationID, now)
	if persistent {
		score *= PersistenceFactor
	}

	season := SeasonalFactor(now.Month())
	severity := in.Indicators.Severity()
	raw := math.Min(100, score*season*severity)
	score = round2(raw)

	// bands compare the unrounded score; rounding is for reporting only
	prox := geo.ResolveProximity(a.zones, in.Latitude, in.Longitude)
	level, action := Tier(raw, in.Anomaly, prox.VeryClose(), prox.NearSensitive())
	if persistent {
		action += persistenceNote
	}

	out := Assessment{
		RiskLevel:         level,
		RiskScore:         score,
		BaseAnomaly:       in.Anomaly,
		RecommendedAction: action,
		NearSensitiveZone: prox.NearSensitive(),
		VeryClose:         prox.VeryClose(),
		NearbyZones:       prox.NearbyZones,
		ClosestZone:       prox.Closest,
		PersistentAnomaly: persistent,
		SeasonalFactor:    season,
		IndicatorSeverity: severity,
	}
	if out.NearbyZones == nil {
		out.NearbyZones = []geo.NearbyZone{}
	}
	if !math.IsInf(prox.ClosestKm, 1) {
		d := round2(prox.ClosestKm)
		out.ClosestZoneDistanceKm = &d
	}
	if len(in.Indicators) > 0 {
		out.DetectedIndicators = in.Indicators.Labels()
		out.Concerns = in.Indicators.Concerns()
	}
	return out
}

func (a *Aggregator) persistent(ctx context.Context, locationID string, now time.Time) bool {
	if a.history == nil || locationID == "" {
		return false
	}
	entries, err := a.history.History(ctx, locationID, now.Add(-PersistenceWindow))
	if err != nil {
		slog.Warn("history lookup failed, assuming no persistence", "location", locationID, "error", err)
		return false
	}
	var elevated int
	for _, e := range entries {
		if e.AnomalyLevel.Elevated() {
			elevated++
		}
	}
	return elevated >= PersistenceMinimum
}

// BaseScore is the starting score of an anomaly level.
func BaseScore(level models.AnomalyLevel) float64 {
	switch level {
	case models.AnomalyLevelHigh:
		return 70
	case models.AnomalyLevelMedium:
		return 40
	default:
		return 10
	}
}

func magnitudeScore(v features.Vector) float64 {
	return math.Min(v.MeanChange/50*20, 20) +
		math.Min(v.SignificantPixels/30*15, 15) +
		math.Min(v.MaxChange/100*10, 10)
}

// Tier resolves the final level and action. Either the score or the base
// level can lift a band; CRITICAL needs the top band and a very close zone.
func Tier(score float64, base models.AnomalyLevel, veryClose, near bool) (models.RiskLevel, string) {
	switch {
	case score >= highScoreThreshold || base == models.AnomalyLevelHigh:
		switch {
		case veryClose:
			return models.RiskLevelCritical, "Immediate inspection and drone survey required"
		case near:
			return models.RiskLevelHigh, "Manual inspection within 24 hours"
		default:
			return models.RiskLevelHigh, "Targeted satellite tasking recommended"
		}
	case score >= mediumScoreThreshold || base == models.AnomalyLevelMedium:
		switch {
		case veryClose:
			return models.RiskLevelHigh, "Manual inspection within 48 hours"
		case near:
			return models.RiskLevelMedium, "Continue monitoring, drone survey if persists"
		default:
			return models.RiskLevelMedium, "Monitor with next satellite pass"
		}
	default:
		switch {
		case veryClose:
			return models.RiskLevelMedium, "Monitor closely due to proximity"
		case near:
			return models.RiskLevelLow, "Normal monitoring schedule, flag nearby sensitive zone"
		default:
			return models.RiskLevelLow, "Normal monitoring schedule"
		}
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
