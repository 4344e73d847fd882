// Package localize finds where in the frame the change is concentrated.
package localize

import (
	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/imagery"
)

const (
	kernelSize = 5
	// MinAreaFraction is the smallest region, relative to the frame, that
	// counts as evidence of a localized change.
	MinAreaFraction = 0.001
)

// Location is a point in the frame. Fallback is set when no region
// qualified and the frame centre was returned instead.
type Location struct {
	PixelX      int     `json:"pixel_x"`
	PixelY      int     `json:"pixel_y"`
	NormalizedX float64 `json:"normalized_x"`
	NormalizedY float64 `json:"normalized_y"`
	RegionArea  int     `json:"region_area"`
	Fallback    bool    `json:"fallback"`
}

// Center is the fallback location of a width x height frame.
func Center(width, height int) Location {
	return Location{
		PixelX:      width / 2,
		PixelY:      height / 2,
		NormalizedX: 0.5,
		NormalizedY: 0.5,
		Fallback:    true,
	}
}

// Locate returns the centroid of the largest coherent change region. Disjoint
// secondary regions are ignored.
func Locate(pair imagery.Pair) Location {
	diff := imagery.Gray(pair.Diff())
	return LocateMask(threshold(diff, features.SignificantChange))
}

// LocateMask runs the morphology and region selection on a prepared mask.
func LocateMask(m *Mask) Location {
	m = m.Close(kernelSize).Open(kernelSize)

	best := largestRegion(m)
	total := m.Width * m.Height
	if best.area == 0 || float64(best.area) < MinAreaFraction*float64(total) {
		return Center(m.Width, m.Height)
	}

	cx := best.sumX / float64(best.area)
	cy := best.sumY / float64(best.area)
	return Location{
		PixelX:      clamp(int(cx+0.5), 0, m.Width-1),
		PixelY:      clamp(int(cy+0.5), 0, m.Height-1),
		NormalizedX: cx / float64(m.Width),
		NormalizedY: cy / float64(m.Height),
		RegionArea:  best.area,
	}
}

func threshold(p *imagery.Plane, t float64) *Mask {
	m := NewMask(p.Width, p.Height)
	for i, v := range p.Data {
		m.Bits[i] = v > t
	}
	return m
}

type region struct {
	area       int
	sumX, sumY float64
}

// largestRegion labels 8-connected components with an explicit stack and
// keeps the biggest; ties go to the first found in raster order.
func largestRegion(m *Mask) region {
	seen := make([]bool, len(m.Bits))
	var best region
	stack := make([]int, 0, 64)

	for start, on := range m.Bits {
		if !on || seen[start] {
			continue
		}
		var r region
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%m.Width, i/m.Width
			r.area++
			r.sumX += float64(x)
			r.sumY += float64(y)

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height {
						continue
					}
					j := ny*m.Width + nx
					if m.Bits[j] && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		if r.area > best.area {
			best = r
		}
	}
	return best
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
