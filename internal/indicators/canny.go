package indicators

import (
	"math"

	"github.com/mr1hm/ocean-sentinel/internal/imagery"
)

// Canny returns the edge map of p: Gaussian smoothing, Sobel gradients with
// the L1 norm, non-maximum suppression and hysteresis between low and high.
func Canny(p *imagery.Plane, low, high float64) []bool {
	w, h := p.Width, p.Height
	smooth := imagery.GaussianBlur5(p)
	gx, gy := imagery.SobelX(smooth), imagery.SobelY(smooth)

	mag := make([]float64, w*h)
	for i := range mag {
		mag[i] = math.Abs(gx.Data[i]) + math.Abs(gy.Data[i])
	}

	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, w*h)
	var stack []int

	// border pixels never carry edges
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			a, b := neighbours(gx.Data[i], gy.Data[i], w)
			if m <= mag[i+a] || m < mag[i+b] {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	edges := make([]bool, w*h)
	for i, s := range state {
		edges[i] = s == strong
	}
	return edges
}

// neighbours returns the index offsets of the two pixels along the gradient
// direction, quantised to 0, 45, 90 and 135 degrees.
func neighbours(gx, gy float64, stride int) (int, int) {
	angle := math.Atan2(gy, gx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return -1, 1
	case angle < 67.5:
		// y grows downwards, so a positive angle points to the lower right
		return -stride - 1, stride + 1
	case angle < 112.5:
		return -stride, stride
	default:
		return -stride + 1, stride - 1
	}
}
