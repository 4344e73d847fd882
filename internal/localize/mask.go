package localize

// Mask is a binary image, row-major.
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Bits: make([]bool, width*height)}
}

func (m *Mask) Set(x, y int, v bool) {
	m.Bits[y*m.Width+x] = v
}

func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Dilate with a size x size square. Pixels outside the frame are off.
func (m *Mask) Dilate(size int) *Mask {
	return m.morph(size, true)
}

// Erode with a size x size square. Pixels outside the frame do not count
// against the result, so edges are not eaten away.
func (m *Mask) Erode(size int) *Mask {
	return m.morph(size, false)
}

// Close fills small holes: dilate then erode.
func (m *Mask) Close(size int) *Mask {
	return m.Dilate(size).Erode(size)
}

// Open removes speckle: erode then dilate.
func (m *Mask) Open(size int) *Mask {
	return m.Erode(size).Dilate(size)
}

// morph runs the square kernel as two 1-D passes. dilate selects any-on,
// otherwise all-on.
func (m *Mask) morph(size int, dilate bool) *Mask {
	half := size / 2
	tmp := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			tmp.Bits[y*m.Width+x] = m.window(x, y, half, 1, 0, dilate)
		}
	}
	out := NewMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			out.Bits[y*m.Width+x] = tmp.window(x, y, half, 0, 1, dilate)
		}
	}
	return out
}

func (m *Mask) window(x, y, half, stepX, stepY int, dilate bool) bool {
	for k := -half; k <= half; k++ {
		nx, ny := x+k*stepX, y+k*stepY
		if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height {
			continue
		}
		on := m.Bits[ny*m.Width+nx]
		if dilate && on {
			return true
		}
		if !dilate && !on {
			return false
		}
	}
	return !dilate
}
