// Package imagery holds the raster types shared by the analysis stages and
// the decoders that turn image files into them.
package imagery

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Channels is the fixed channel count of every raster (R, G, B).
const Channels = 3

// InputError marks a request that cannot be analysed as given.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Raster is an 8-bit RGB buffer, row-major, three bytes per pixel.
type Raster struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// Size is the pixel count.
func (r *Raster) Size() int {
	return r.Width * r.Height
}

func (r *Raster) SameShape(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height
}

func (r *Raster) offset(x, y int) int {
	return (y*r.Width + x) * Channels
}

func (r *Raster) RGB(x, y int) (uint8, uint8, uint8) {
	i := r.offset(x, y)
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

func (r *Raster) SetRGB(x, y int, red, green, blue uint8) {
	i := r.offset(x, y)
	r.Pix[i], r.Pix[i+1], r.Pix[i+2] = red, green, blue
}

// Fill paints every pixel with one colour.
func (r *Raster) Fill(red, green, blue uint8) {
	for i := 0; i < len(r.Pix); i += Channels {
		r.Pix[i], r.Pix[i+1], r.Pix[i+2] = red, green, blue
	}
}

func (r *Raster) Clone() *Raster {
	c := &Raster{Width: r.Width, Height: r.Height, Pix: make([]uint8, len(r.Pix))}
	copy(c.Pix, r.Pix)
	return c
}

// FromImage copies any decoded image into an RGB raster. Alpha is dropped.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	r := NewRaster(b.Dx(), b.Dy())
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			r.SetRGB(x, y, c.R, c.G, c.B)
		}
	}
	return r
}

func (r *Raster) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			red, green, blue := r.RGB(x, y)
			img.SetRGBA(x, y, color.RGBA{R: red, G: green, B: blue, A: 0xff})
		}
	}
	return img
}

// Resample scales r to width x height with bilinear interpolation.
func Resample(r *Raster, width, height int) *Raster {
	if r.Width == width && r.Height == height {
		return r.Clone()
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), r.ToRGBA(), image.Rect(0, 0, r.Width, r.Height), draw.Src, nil)
	return FromImage(dst)
}

// Decode reads any registered format (jpeg, png, tiff, webp, bmp).
func Decode(rd io.Reader) (*Raster, error) {
	return DecodeLimited(rd, 0)
}

// DecodeLimited is Decode that reads the header first and refuses images of
// more than maxPixels pixels before any bitmap is allocated. maxPixels <= 0
// disables the check.
func DecodeLimited(rd io.Reader, maxPixels int) (*Raster, error) {
	var head bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(rd, &head))
	if err != nil {
		return nil, &InputError{Reason: fmt.Sprintf("decode image: %v", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &InputError{Reason: fmt.Sprintf("empty %s image", format)}
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, &InputError{Reason: fmt.Sprintf("%s image is %dx%d, larger than the %d pixel limit",
			format, cfg.Width, cfg.Height, maxPixels)}
	}

	img, _, err := image.Decode(io.MultiReader(&head, rd))
	if err != nil {
		return nil, &InputError{Reason: fmt.Sprintf("decode image: %v", err)}
	}
	if img.Bounds().Empty() {
		return nil, &InputError{Reason: fmt.Sprintf("empty %s image", format)}
	}
	return FromImage(img), nil
}

func LoadFile(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	r, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
