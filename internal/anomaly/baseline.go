package anomaly

import "github.com/mr1hm/ocean-sentinel/internal/features"

// baseline holds synthetic "normal" observations in enhanced-vector order:
// quiet scenes first, then ordinary day-to-day variation.
var baseline = [][]float64{
	{10, 5, 30, 100, 5, 50, 0.01, 0.1, 500, 0.05},
	{12, 6, 32, 110, 6, 55, 0.012, 0.11, 520, 0.055},
	{15, 8, 35, 120, 8, 60, 0.015, 0.12, 540, 0.06},
	{11, 5.5, 31, 105, 5.5, 52, 0.011, 0.105, 510, 0.052},
	{13, 7, 33, 115, 7, 58, 0.013, 0.115, 530, 0.058},

	{18, 10, 40, 150, 10, 70, 0.02, 0.15, 600, 0.08},
	{20, 12, 45, 160, 12, 75, 0.022, 0.16, 620, 0.09},
	{22, 14, 48, 170, 14, 80, 0.024, 0.17, 640, 0.10},
}

// Baseline returns the training rows truncated to the mode's width.
func Baseline(mode features.Mode) [][]float64 {
	n := mode.Len()
	rows := make([][]float64, len(baseline))
	for i, row := range baseline {
		rows[i] = append([]float64(nil), row[:n]...)
	}
	return rows
}
