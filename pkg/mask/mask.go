// Package mask finds the printed glyphs inside a redaction region.
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/menta2k/cardmask/pkg/types"
)

// ErrEmptyRegion is returned when a region does not intersect the image
var ErrEmptyRegion = errors.New("region does not intersect image")

// Mask is a binary raster with the dimensions of the source image. Only
// pixels inside Extent can be set.
type Mask struct {
	bounds image.Rectangle
	extent image.Rectangle
	pix    []uint8
}

// NewMask creates an empty mask covering bounds, settable within extent
func NewMask(bounds, extent image.Rectangle) *Mask {
	extent = extent.Intersect(bounds)
	return &Mask{
		bounds: bounds,
		extent: extent,
		pix:    make([]uint8, extent.Dx()*extent.Dy()),
	}
}

// Bounds returns the source image bounds
func (m *Mask) Bounds() image.Rectangle { return m.bounds }

// Extent returns the rectangle that may contain set pixels
func (m *Mask) Extent() image.Rectangle { return m.extent }

// Get reports whether (x, y) is marked for redaction
func (m *Mask) Get(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(m.extent) {
		return false
	}
	return m.pix[m.offset(x, y)] != 0
}

// Set marks or clears (x, y); points outside the extent are ignored
func (m *Mask) Set(x, y int, on bool) {
	if !(image.Point{X: x, Y: y}).In(m.extent) {
		return
	}
	var v uint8
	if on {
		v = 1
	}
	m.pix[m.offset(x, y)] = v
}

func (m *Mask) offset(x, y int) int {
	return (y-m.extent.Min.Y)*m.extent.Dx() + (x - m.extent.Min.X)
}

// Count returns the number of marked pixels
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Components counts 8-connected groups of marked pixels
func (m *Mask) Components() int {
	w, h := m.extent.Dx(), m.extent.Dy()
	seen := make([]bool, len(m.pix))
	stack := make([]int, 0, 64)
	count := 0

	for start, v := range m.pix {
		if v == 0 || seen[start] {
			continue
		}
		count++
		seen[start] = true
		stack = append(stack[:0], start)
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
					if m.pix[j] != 0 && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
	}
	return count
}

// Gray renders the mask as a black and white image for inspection
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(m.bounds)
	for y := m.extent.Min.Y; y < m.extent.Max.Y; y++ {
		for x := m.extent.Min.X; x < m.extent.Max.X; x++ {
			if m.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// Config holds the morphology parameters of the builder
type Config struct {
	// DilateIterations grows the thresholded glyphs so their antialiased
	// edges are covered
	DilateIterations int
	// DilateSize is the side of the square dilation element per unit of
	// region dilation factor (side = DilateSize*factor + 1)
	DilateSize int
	// CloseSize is the side of the final square closing element per unit
	// of region dilation factor (side = CloseSize*factor + 1)
	CloseSize int
}

// DefaultConfig returns the parameters tuned for 725x1020 card scans
func DefaultConfig() Config {
	return Config{
		DilateIterations: 3,
		DilateSize:       2,
		CloseSize:        4,
	}
}

// Builder computes redaction masks
type Builder struct {
	config Config
}

// New creates a builder with the default configuration
func New() *Builder {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a builder with custom morphology parameters
func NewWithConfig(config Config) *Builder {
	if config.DilateIterations < 0 {
		config.DilateIterations = 0
	}
	if config.DilateSize < 1 {
		config.DilateSize = 1
	}
	if config.CloseSize < 1 {
		config.CloseSize = 1
	}
	return &Builder{config: config}
}

// Build returns the mask of glyph pixels inside region. The pipeline runs on
// both polarities of the image and keeps the one with more connected
// components; ties keep the straight result. The region's orientation
// selects the structuring element.
func (b *Builder) Build(img image.Image, region types.RedactionRegion) (*Mask, error) {
	straight, inverted, err := b.Candidates(img, region)
	if err != nil {
		return nil, err
	}
	return choosePolarity(straight, inverted), nil
}

// choosePolarity keeps inverted only when it has strictly more components
func choosePolarity(straight, inverted *Mask) *Mask {
	if inverted.Components() > straight.Components() {
		return inverted
	}
	return straight
}

// Candidates runs the pipeline on the image and on its photometric inverse
func (b *Builder) Candidates(img image.Image, region types.RedactionRegion) (straight, inverted *Mask, err error) {
	bounds := img.Bounds()
	target := region.Rect().Intersect(bounds)
	if target.Empty() {
		return nil, nil, fmt.Errorf("build mask for %v: %w", region.Rect(), ErrEmptyRegion)
	}

	window := target.Inset(-b.padding(region)).Intersect(bounds)
	gray := grayPlane(img, window)

	straight = b.run(gray, region, bounds, target)
	inverted = b.run(gray.invert(), region, bounds, target)
	return straight, inverted, nil
}

func (b *Builder) padding(region types.RedactionRegion) int {
	k := region.Kernel()
	pad := max(k.X, k.Y)
	f := factor(region)
	return pad + (b.config.DilateIterations*b.config.DilateSize+b.config.CloseSize)*f + 2
}

func (b *Builder) run(gray *plane, region types.RedactionRegion, bounds, target image.Rectangle) *Mask {
	kernel := region.Kernel()
	f := factor(region)

	edges := gray.topHat(kernel).gradient().closing(kernel)
	bin := edges.binarize(edges.otsu())

	small := image.Pt(b.config.DilateSize*f+1, b.config.DilateSize*f+1)
	for i := 0; i < b.config.DilateIterations; i++ {
		bin = bin.dilate(small)
	}
	large := image.Pt(b.config.CloseSize*f+1, b.config.CloseSize*f+1)
	bin = bin.closing(large)

	m := NewMask(bounds, target)
	for y := target.Min.Y; y < target.Max.Y; y++ {
		row := (y - bin.rect.Min.Y) * bin.w
		for x := target.Min.X; x < target.Max.X; x++ {
			if bin.pix[row+x-bin.rect.Min.X] != 0 {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

func factor(region types.RedactionRegion) int {
	if region.Dilation < 1 {
		return 1
	}
	return region.Dilation
}
