// Package features computes the fixed-shape change descriptor of an image pair.
//
// Basic mode yields five statistics of the difference intensity. Enhanced mode
// appends texture, frequency-domain, histogram, spatial and entropy measures.
// The order of Values is part of the model contract: a classifier trained on
// one mode can only score vectors of that mode.
package features

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeEnhanced Mode = "enhanced"
)

// Len is the cardinality of a vector in this mode.
func (m Mode) Len() int {
	if m == ModeBasic {
		return 5
	}
	return 10
}

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeBasic:
		return ModeBasic, nil
	case ModeEnhanced:
		return ModeEnhanced, nil
	}
	return "", fmt.Errorf("unknown feature mode: %q", s)
}

// SignificantChange is the intensity step (0..255) a pixel must exceed to
// count as changed. The localizer thresholds with the same value.
const SignificantChange = 30

const epsilon = 1e-10

// Names lists feature names in vector order.
var Names = []string{
	"mean_change",
	"std_change",
	"max_change",
	"edge_variance",
	"significant_pixels",
	"texture_complexity",
	"spectral_energy_change",
	"histogram_distance",
	"spatial_variance",
	"entropy_change",
}

// Vector is the change descriptor. Enhanced fields are zero in basic mode and
// are never part of Values there.
type Vector struct {
	Mode Mode `json:"mode"`

	MeanChange        float64 `json:"mean_change"`
	StdChange         float64 `json:"std_change"`
	MaxChange         float64 `json:"max_change"`
	EdgeVariance      float64 `json:"edge_variance"`
	SignificantPixels float64 `json:"significant_pixels"` // percent of the frame

	TextureComplexity    float64 `json:"texture_complexity,omitempty"`
	SpectralEnergyChange float64 `json:"spectral_energy_change,omitempty"`
	HistogramDistance    float64 `json:"histogram_distance,omitempty"`
	SpatialVariance      float64 `json:"spatial_variance,omitempty"`
	EntropyChange        float64 `json:"entropy_change,omitempty"`
}

// Values returns the positional vector the classifier consumes.
func (v Vector) Values() []float64 {
	out := []float64{
		v.MeanChange,
		v.StdChange,
		v.MaxChange,
		v.EdgeVariance,
		v.SignificantPixels,
	}
	if v.Mode == ModeEnhanced {
		out = append(out,
			v.TextureComplexity,
			v.SpectralEnergyChange,
			v.HistogramDistance,
			v.SpatialVariance,
			v.EntropyChange,
		)
	}
	return out
}

// Named pairs names with values, in order.
func (v Vector) Named() map[string]float64 {
	vals := v.Values()
	m := make(map[string]float64, len(vals))
	for i, val := range vals {
		m[Names[i]] = val
	}
	return m
}
