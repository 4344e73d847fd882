// Package indicators runs fixed heuristic checks on an image pair, each
// naming a physical phenomenon the change resembles.
package indicators

import (
	"fmt"
	"strings"
)

type Kind string

const (
	None                 Kind = "none"
	AlgalBloom           Kind = "algal_bloom"
	ReflectanceAnomaly   Kind = "reflectance_anomaly"
	TemperatureDeviation Kind = "temperature_deviation"
	WaterColorChange     Kind = "water_color_change"
	StructuralChange     Kind = "structural_change"
	TextureAnomaly       Kind = "texture_anomaly"
)

var labels = map[Kind]string{
	None:                 "No specific indicators detected",
	AlgalBloom:           "Possible algal bloom detected",
	ReflectanceAnomaly:   "Surface reflectance anomaly",
	TemperatureDeviation: "Sea Surface Temperature deviation (simulated)",
	WaterColorChange:     "Water color change",
	StructuralChange:     "Structural change along edges",
	TextureAnomaly:       "Surface texture anomaly",
}

var concerns = map[Kind]string{
	AlgalBloom:           "Potential harmful algal bloom - check oxygen levels and toxicity",
	TemperatureDeviation: "Thermal anomaly - monitor for coral stress and marine life impact",
	ReflectanceAnomaly:   "Surface change detected - check for oil spills, sediment plumes, or foam",
	WaterColorChange:     "Water discoloration - sample for turbidity and pollutants",
	StructuralChange:     "Shoreline or structure change - verify against construction permits",
}

func (k Kind) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Concern is the follow-up advice for k, empty when there is none.
func (k Kind) Concern() string {
	return concerns[k]
}

// Severity is the risk multiplier contributed by k on its own.
func (k Kind) Severity() float64 {
	switch k {
	case AlgalBloom:
		return 1.3
	case TemperatureDeviation:
		return 1.2
	case ReflectanceAnomaly:
		return 1.1
	}
	return 1.0
}

func (k Kind) String() string { return string(k) }

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := labels[k]; !ok {
		return "", fmt.Errorf("unknown indicator: %q", s)
	}
	return k, nil
}

// Indicator is one fired check with the measurement that tripped it.
type Indicator struct {
	Kind  Kind    `json:"kind"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Set is the result of one analysis. It never is empty: when nothing fired it
// holds the single None entry.
type Set []Indicator

func (s Set) Has(k Kind) bool {
	for _, i := range s {
		if i.Kind == k {
			return true
		}
	}
	return false
}

func (s Set) Kinds() []Kind {
	out := make([]Kind, len(s))
	for i, ind := range s {
		out[i] = ind.Kind
	}
	return out
}

func (s Set) Labels() []string {
	out := make([]string, len(s))
	for i, ind := range s {
		out[i] = ind.Label
	}
	return out
}

// Severity is the highest multiplier over the set, 1.0 for None.
func (s Set) Severity() float64 {
	w := 1.0
	for _, i := range s {
		w = max(w, i.Kind.Severity())
	}
	return w
}

// Concerns lists the advice of every fired kind, in check order.
func (s Set) Concerns() []string {
	var out []string
	for _, i := range s {
		if c := i.Kind.Concern(); c != "" {
			out = append(out, c)
		}
	}
	return out
}
