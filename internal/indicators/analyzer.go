package indicators

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/mr1hm/ocean-sentinel/internal/imagery"
)

// Thresholds are the trip points of each check.
type Thresholds struct {
	GreenIncreasePct float64 // percentage points of green/yellow water pixels
	Reflectance      float64 // absolute mean gray delta
	Temperature      float64 // mean red increase
	WaterColor       float64 // absolute mean blue delta
	EdgeChangePct    float64 // percent of pixels whose edge state flips
	TextureRelative  float64 // relative change of mean local variance
	CannyLow         float64
	CannyHigh        float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		GreenIncreasePct: 5,
		Reflectance:      15,
		Temperature:      10,
		WaterColor:       12,
		EdgeChangePct:    5,
		TextureRelative:  0.25,
		CannyLow:         50,
		CannyHigh:        150,
	}
}

type Analyzer struct {
	th Thresholds
}

func NewAnalyzer(th Thresholds) *Analyzer {
	return &Analyzer{th: th}
}

// Analyze runs every check on pair. Checks are independent; several can fire.
func (a *Analyzer) Analyze(pair imagery.Pair) Set {
	var set Set
	fire := func(k Kind, v float64) {
		set = append(set, Indicator{Kind: k, Label: k.Label(), Value: round2(v)})
	}

	if inc := greenFraction(pair.After) - greenFraction(pair.Before); inc > a.th.GreenIncreasePct {
		fire(AlgalBloom, inc)
	}

	grayB, grayA := imagery.Gray(pair.Before), imagery.Gray(pair.After)
	if d := stat.Mean(grayA.Data, nil) - stat.Mean(grayB.Data, nil); math.Abs(d) > a.th.Reflectance {
		fire(ReflectanceAnomaly, d)
	}

	if d := channelMean(pair.After, 0) - channelMean(pair.Before, 0); d > a.th.Temperature {
		fire(TemperatureDeviation, d)
	}

	if d := channelMean(pair.After, 2) - channelMean(pair.Before, 2); math.Abs(d) > a.th.WaterColor {
		fire(WaterColorChange, d)
	}

	if pct := edgeChange(grayB, grayA, a.th.CannyLow, a.th.CannyHigh); pct > a.th.EdgeChangePct {
		fire(StructuralChange, pct)
	}

	if rel := textureChange(grayB, grayA); rel > a.th.TextureRelative {
		fire(TextureAnomaly, rel)
	}

	if len(set) == 0 {
		return Set{{Kind: None, Label: None.Label()}}
	}
	return set
}

func channelMean(r *imagery.Raster, c int) float64 {
	return stat.Mean(imagery.Channel(r, c).Data, nil)
}

// greenFraction is the percentage of pixels whose hue reads as green/yellow
// water with enough saturation and brightness to matter.
func greenFraction(r *imagery.Raster) float64 {
	var n int
	for i := 0; i < len(r.Pix); i += imagery.Channels {
		h, s, v := hsv(r.Pix[i], r.Pix[i+1], r.Pix[i+2])
		if h >= 35 && h <= 85 && s >= 40 && v >= 40 {
			n++
		}
	}
	return float64(n) / float64(r.Size()) * 100
}

// hsv converts to the 8-bit HSV convention used by most imaging toolkits:
// hue in [0, 180), saturation and value in [0, 255].
func hsv(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	hi := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	v = hi
	if hi == 0 {
		return 0, 0, 0
	}
	delta := hi - lo
	s = math.Round(255 * delta / hi)
	if delta == 0 {
		return 0, s, v
	}

	var deg float64
	switch hi {
	case rf:
		deg = 60 * (gf - bf) / delta
	case gf:
		deg = 120 + 60*(bf-rf)/delta
	default:
		deg = 240 + 60*(rf-gf)/delta
	}
	if deg < 0 {
		deg += 360
	}
	h = math.Round(deg / 2)
	if h >= 180 {
		h -= 180
	}
	return h, s, v
}

func edgeChange(before, after *imagery.Plane, low, high float64) float64 {
	eb := Canny(before, low, high)
	ea := Canny(after, low, high)
	var diff int
	for i := range eb {
		if eb[i] != ea[i] {
			diff++
		}
	}
	return float64(diff) / float64(len(eb)) * 100
}

// textureChange is the relative change of the mean 5x5 local variance.
func textureChange(before, after *imagery.Plane) float64 {
	vb := stat.Mean(localVariance(before, 5).Data, nil)
	va := stat.Mean(localVariance(after, 5).Data, nil)
	return math.Abs(va-vb) / (vb + 1e-10)
}

func localVariance(p *imagery.Plane, size int) *imagery.Plane {
	sq := imagery.NewPlane(p.Width, p.Height)
	for i, v := range p.Data {
		sq.Data[i] = v * v
	}
	mean := imagery.BoxFilter(p, size)
	meanSq := imagery.BoxFilter(sq, size)
	out := imagery.NewPlane(p.Width, p.Height)
	for i := range out.Data {
		out.Data[i] = math.Max(0, meanSq.Data[i]-mean.Data[i]*mean.Data[i])
	}
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
