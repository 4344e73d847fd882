package risk

import "time"

// seasonal weights the Bay of Bengal calendar: calm winter, pre-monsoon
// heating, south-west monsoon peak, retreating monsoon.
var seasonal = map[time.Month]float64{
	time.January:   0.8,
	time.February:  0.9,
	time.March:     1.1,
	time.April:     1.2,
	time.May:       1.2,
	time.June:      1.3,
	time.July:      1.3,
	time.August:    1.2,
	time.September: 1.2,
	time.October:   1.0,
	time.November:  0.9,
	time.December:  0.8,
}

// SeasonalFactor is the risk multiplier for month, in [0.8, 1.3].
func SeasonalFactor(month time.Month) float64 {
	if f, ok := seasonal[month]; ok {
		return f
	}
	return 1.0
}
