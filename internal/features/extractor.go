package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mr1hm/ocean-sentinel/internal/imagery"
)

type Extractor struct {
	mode Mode
}

func NewExtractor(mode Mode) *Extractor {
	return &Extractor{mode: mode}
}

func (e *Extractor) Mode() Mode {
	return e.mode
}

// Extract computes the descriptor of pair. The pair must already be shape
// aligned (imagery.NewPair does that).
func (e *Extractor) Extract(pair imagery.Pair) (Vector, error) {
	if pair.Before == nil || pair.After == nil {
		return Vector{}, &imagery.InputError{Reason: "both before and after images are required"}
	}
	if !pair.Before.SameShape(pair.After) {
		return Vector{}, &imagery.InputError{Reason: "before and after images differ in shape"}
	}

	diff := imagery.Gray(pair.Diff())
	v := basic(diff)
	v.Mode = e.mode
	if e.mode == ModeBasic {
		return v, nil
	}

	before := imagery.Gray(pair.Before)
	after := imagery.Gray(pair.After)

	v.TextureComplexity = stat.Mean(imagery.GradientMagnitude(diff).Data, nil)
	v.SpectralEnergyChange = spectralEnergyChange(before, after)

	hb := normalize(imagery.Histogram(before))
	ha := normalize(imagery.Histogram(after))
	v.HistogramDistance = bhattacharyya(hb, ha)
	v.SpatialVariance = stat.PopVariance(imagery.BoxFilter(diff, 5).Data, nil)
	v.EntropyChange = math.Abs(entropy(ha) - entropy(hb))

	return v, nil
}

func basic(diff *imagery.Plane) Vector {
	mean, std := stat.PopMeanStdDev(diff.Data, nil)

	var significant int
	for _, px := range diff.Data {
		if px > SignificantChange {
			significant++
		}
	}

	return Vector{
		MeanChange:        mean,
		StdChange:         std,
		MaxChange:         floats.Max(diff.Data),
		EdgeVariance:      stat.PopVariance(imagery.Laplacian(diff).Data, nil),
		SignificantPixels: float64(significant) / float64(len(diff.Data)) * 100,
	}
}

// spectralEnergyChange compares total 2D Fourier energy of the two images
// relative to the before image.
func spectralEnergyChange(before, after *imagery.Plane) float64 {
	eb := spectralEnergy(before)
	ea := spectralEnergy(after)
	return math.Abs(ea-eb) / (eb + epsilon)
}

func spectralEnergy(p *imagery.Plane) float64 {
	w, h := p.Width, p.Height
	data := make([]complex128, w*h)
	for i, v := range p.Data {
		data[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		rowFFT.Coefficients(row, data[y*w:(y+1)*w])
		copy(data[y*w:], row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	var energy float64
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y*w+x]
		}
		colFFT.Coefficients(out, col)
		for _, c := range out {
			energy += real(c)*real(c) + imag(c)*imag(c)
		}
	}
	return energy
}

func normalize(hist []float64) []float64 {
	out := make([]float64, len(hist))
	total := floats.Sum(hist)
	if total == 0 {
		return out
	}
	floats.ScaleTo(out, 1/total, hist)
	return out
}

func bhattacharyya(p, q []float64) float64 {
	var bc float64
	for i := range p {
		bc += math.Sqrt(p[i] * q[i])
	}
	// identical histograms land a rounding error either side of zero
	return math.Max(0, -math.Log(bc+epsilon))
}

// entropy is the Shannon entropy in nats of hist shifted by epsilon and
// renormalised, so empty bins contribute instead of being skipped.
func entropy(hist []float64) float64 {
	shifted := make([]float64, len(hist))
	copy(shifted, hist)
	floats.AddConst(epsilon, shifted)
	return stat.Entropy(normalize(shifted))
}
