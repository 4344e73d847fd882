package imagery

import "math"

// Plane is a single-channel float image, row-major.
type Plane struct {
	Width  int
	Height int
	Data   []float64
}

func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Data: make([]float64, width*height)}
}

func (p *Plane) At(x, y int) float64 {
	return p.Data[y*p.Width+x]
}

func (p *Plane) Set(x, y int, v float64) {
	p.Data[y*p.Width+x] = v
}

// AbsDiff is |a - b| per channel. Shapes must match.
func AbsDiff(a, b *Raster) *Raster {
	out := NewRaster(a.Width, a.Height)
	for i := range a.Pix {
		if a.Pix[i] > b.Pix[i] {
			out.Pix[i] = a.Pix[i] - b.Pix[i]
		} else {
			out.Pix[i] = b.Pix[i] - a.Pix[i]
		}
	}
	return out
}

// luma rounds ITU-R 601 luma to the 0..255 grid.
func luma(r, g, b uint8) float64 {
	return math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

// Gray converts to single-channel intensity on the 0..255 integer grid.
func Gray(r *Raster) *Plane {
	p := NewPlane(r.Width, r.Height)
	for i := range p.Data {
		j := i * Channels
		p.Data[i] = luma(r.Pix[j], r.Pix[j+1], r.Pix[j+2])
	}
	return p
}

// Channel extracts one of the R (0), G (1), B (2) channels.
func Channel(r *Raster, c int) *Plane {
	p := NewPlane(r.Width, r.Height)
	for i := range p.Data {
		p.Data[i] = float64(r.Pix[i*Channels+c])
	}
	return p
}

// reflect101 mirrors out-of-range indices without repeating the edge pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// Convolve applies a square odd-sized kernel (correlation, as image libraries
// define filtering) with reflect-101 borders.
func Convolve(p *Plane, kernel []float64, size int) *Plane {
	half := size / 2
	out := NewPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var sum float64
			for ky := 0; ky < size; ky++ {
				sy := reflect101(y+ky-half, p.Height)
				row := sy * p.Width
				for kx := 0; kx < size; kx++ {
					w := kernel[ky*size+kx]
					if w == 0 {
						continue
					}
					sx := reflect101(x+kx-half, p.Width)
					sum += w * p.Data[row+sx]
				}
			}
			out.Data[y*p.Width+x] = sum
		}
	}
	return out
}

var (
	laplacianKernel = []float64{
		0, 1, 0,
		1, -4, 1,
		0, 1, 0,
	}
	sobelXKernel = []float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}
	sobelYKernel = []float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}
	gaussian5Kernel = func() []float64 {
		row := []float64{1, 4, 6, 4, 1}
		k := make([]float64, 25)
		for y := 0; y < 5; y++ {
			for x := 0; x < 5; x++ {
				k[y*5+x] = row[y] * row[x] / 256
			}
		}
		return k
	}()
)

func Laplacian(p *Plane) *Plane { return Convolve(p, laplacianKernel, 3) }
func SobelX(p *Plane) *Plane    { return Convolve(p, sobelXKernel, 3) }
func SobelY(p *Plane) *Plane    { return Convolve(p, sobelYKernel, 3) }

// GaussianBlur5 smooths with the 5x5 binomial approximation of a Gaussian.
func GaussianBlur5(p *Plane) *Plane { return Convolve(p, gaussian5Kernel, 5) }

// BoxFilter is the normalised size x size mean filter.
func BoxFilter(p *Plane, size int) *Plane {
	k := make([]float64, size*size)
	for i := range k {
		k[i] = 1 / float64(size*size)
	}
	return Convolve(p, k, size)
}

// GradientMagnitude is sqrt(gx^2 + gy^2) of the 3x3 Sobel responses.
func GradientMagnitude(p *Plane) *Plane {
	gx, gy := SobelX(p), SobelY(p)
	out := NewPlane(p.Width, p.Height)
	for i := range out.Data {
		out.Data[i] = math.Hypot(gx.Data[i], gy.Data[i])
	}
	return out
}

// Histogram counts the 256 intensity bins of a plane on the 0..255 grid.
func Histogram(p *Plane) []float64 {
	h := make([]float64, 256)
	for _, v := range p.Data {
		bin := int(v)
		if bin < 0 {
			bin = 0
		} else if bin > 255 {
			bin = 255
		}
		h[bin]++
	}
	return h
}
