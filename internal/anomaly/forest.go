// Package anomaly scores feature vectors with an isolation forest fitted on a
// small baseline of normal observations, and turns the score into a
// confidence and an anomaly level.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

const eulerGamma = 0.5772156649015329

type ForestConfig struct {
	Trees         int
	MaxSamples    int // subsample size per tree, capped at the training size
	Contamination float64
	Seed          uint64
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:         100,
		MaxSamples:    256,
		Contamination: 0.2,
		Seed:          42,
	}
}

type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"` // -1 on leaves
	Right     int     `json:"r"`
	Size      int     `json:"s"` // samples that reached a leaf
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// Forest is a fitted isolation forest. It is immutable after Fit and safe for
// concurrent scoring.
type Forest struct {
	Dims          int       `json:"dims"`
	SampleSize    int       `json:"sample_size"`
	Contamination float64   `json:"contamination"`
	Offset        float64   `json:"offset"`
	Floor         []float64 `json:"floor"`  // per-feature baseline minimum
	Median        []float64 `json:"median"` // per-feature baseline median
	Trees         []tree    `json:"trees"`
}

// Fit grows cfg.Trees isolation trees on data (rows are samples).
func Fit(data [][]float64, cfg ForestConfig) (*Forest, error) {
	if len(data) < 2 {
		return nil, errors.New("need at least two samples to fit")
	}
	dims := len(data[0])
	if dims == 0 {
		return nil, errors.New("samples have no features")
	}
	for i, row := range data {
		if len(row) != dims {
			return nil, fmt.Errorf("sample %d has %d features, expected %d", i, len(row), dims)
		}
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("invalid tree count: %d", cfg.Trees)
	}
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5], got %v", cfg.Contamination)
	}

	psi := min(cfg.MaxSamples, len(data))
	if psi < 2 {
		psi = min(2, len(data))
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	f := &Forest{
		Dims:          dims,
		SampleSize:    psi,
		Contamination: cfg.Contamination,
		Trees:         make([]tree, cfg.Trees),
	}
	f.Floor, f.Median = envelope(data)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	for t := range f.Trees {
		idx := rng.Perm(len(data))[:psi]
		sample := make([][]float64, psi)
		for i, j := range idx {
			sample[i] = data[j]
		}
		var nodes []node
		grow(&nodes, sample, 0, maxDepth, rng)
		f.Trees[t] = tree{Nodes: nodes}
	}

	scores := make([]float64, len(data))
	for i, row := range data {
		scores[i] = f.scoreSample(row)
	}
	f.Offset = percentile(scores, cfg.Contamination)

	return f, nil
}

func grow(nodes *[]node, sample [][]float64, depth, maxDepth int, rng *rand.Rand) int {
	id := len(*nodes)
	*nodes = append(*nodes, node{Left: -1, Right: -1, Size: len(sample)})
	if depth >= maxDepth || len(sample) <= 1 {
		return id
	}

	// only features that still vary in this partition can split it
	dims := len(sample[0])
	var candidates []int
	lo := make([]float64, dims)
	hi := make([]float64, dims)
	for d := 0; d < dims; d++ {
		lo[d], hi[d] = sample[0][d], sample[0][d]
		for _, row := range sample[1:] {
			lo[d] = math.Min(lo[d], row[d])
			hi[d] = math.Max(hi[d], row[d])
		}
		if hi[d] > lo[d] {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return id
	}

	feat := candidates[rng.IntN(len(candidates))]
	threshold := lo[feat] + rng.Float64()*(hi[feat]-lo[feat])

	var left, right [][]float64
	for _, row := range sample {
		if row[feat] < threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	l := grow(nodes, left, depth+1, maxDepth, rng)
	r := grow(nodes, right, depth+1, maxDepth, rng)
	n := &(*nodes)[id]
	n.Feature, n.Threshold, n.Left, n.Right = feat, threshold, l, r
	return id
}

func (t *tree) pathLength(x []float64) float64 {
	i, depth := 0, 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return float64(depth) + averagePathLength(n.Size)
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// scoreSample is the negated anomaly score in [-1, 0): lower is more
// anomalous.
func (f *Forest) scoreSample(x []float64) float64 {
	var total float64
	for i := range f.Trees {
		total += f.Trees[i].pathLength(x)
	}
	mean := total / float64(len(f.Trees))
	return -math.Pow(2, -mean/averagePathLength(f.SampleSize))
}

// Decision is the score shifted by the contamination offset: negative values
// are outliers.
func (f *Forest) Decision(x []float64) (float64, error) {
	if len(x) != f.Dims {
		return 0, fmt.Errorf("vector has %d features, model expects %d", len(x), f.Dims)
	}
	return f.scoreSample(x) - f.Offset, nil
}

func (f *Forest) validate() error {
	if f.Dims <= 0 || len(f.Trees) == 0 || f.SampleSize <= 0 {
		return errors.New("model is empty")
	}
	if len(f.Floor) != f.Dims || len(f.Median) != f.Dims {
		return errors.New("model baseline envelope does not match its dimensions")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for i, n := range t.Nodes {
			if n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) || n.Feature < 0 || n.Feature >= f.Dims {
				return fmt.Errorf("tree %d is malformed", ti)
			}
			if (n.Left < 0) != (n.Right < 0) {
				return fmt.Errorf("tree %d has a half-split node", ti)
			}
			// children are always stored after their parent
			if n.Left >= 0 && (n.Left <= i || n.Right <= i) {
				return fmt.Errorf("tree %d has a cycle", ti)
			}
		}
	}
	return nil
}

func envelope(data [][]float64) (floor, median []float64) {
	dims := len(data[0])
	floor = make([]float64, dims)
	median = make([]float64, dims)
	col := make([]float64, len(data))
	for d := 0; d < dims; d++ {
		for i, row := range data {
			col[i] = row[d]
		}
		slices.Sort(col)
		floor[d] = col[0]
		median[d] = percentile(col, 0.5)
	}
	return floor, median
}

// percentile uses linear interpolation between closest ranks, q in [0, 1].
func percentile(values []float64, q float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}
