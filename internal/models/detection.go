package models

import "time"

type AnomalyLevel string

const (
	AnomalyLevelLow    AnomalyLevel = "LOW"
	AnomalyLevelMedium AnomalyLevel = "MEDIUM"
	AnomalyLevelHigh   AnomalyLevel = "HIGH"
)

// Elevated reports whether the level counts towards persistence.
func (l AnomalyLevel) Elevated() bool {
	return l == AnomalyLevelMedium || l == AnomalyLevelHigh
}

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Rank orders risk levels so filters can ask for "at least HIGH".
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLevelLow:
		return 1
	case RiskLevelMedium:
		return 2
	case RiskLevelHigh:
		return 3
	case RiskLevelCritical:
		return 4
	default:
		return 0
	}
}

func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return RiskLevel(s), true
	}
	return "", false
}

// Detection is the append-only record persisted once per analysis.
type Detection struct {
	ID           string       `json:"id"`
	LocationID   string       `json:"location_id"`
	LocationName string       `json:"location_name"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	AnomalyLevel AnomalyLevel `json:"anomaly_level"`
	Confidence   float64      `json:"confidence_score"`
	RiskScore    float64      `json:"risk_score"`
	Latitude     float64      `json:"latitude"`  // anomaly position, not the location centre
	Longitude    float64      `json:"longitude"` // anomaly position, not the location centre
	Snapshot     []byte       `json:"-"`         // full analysis result as JSON
	Timestamp    time.Time    `json:"timestamp"`
}

// HistoryEntry is the slice of a Detection the persistence check needs.
type HistoryEntry struct {
	AnomalyLevel AnomalyLevel `json:"anomaly_level"`
	Timestamp    time.Time    `json:"timestamp"`
}

type Stats struct {
	TotalDetections  int                  `json:"total_detections"`
	RiskBreakdown    map[RiskLevel]int    `json:"risk_breakdown"`
	AnomalyBreakdown map[AnomalyLevel]int `json:"anomaly_breakdown"`
}
