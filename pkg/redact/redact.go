// Package redact paints over masked pixels.
package redact

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cardmask/pkg/mask"
	"github.com/menta2k/cardmask/pkg/types"
)

// ErrBoundsMismatch is returned when a mask was built for another image
var ErrBoundsMismatch = errors.New("mask bounds do not match image")

// Config holds the fill palette
type Config struct {
	// Ink maps a single color identity to its fill tone
	Ink map[types.Color]color.NRGBA
	// Multicolor fills cards with more than one color
	Multicolor color.NRGBA
	// Colorless fills cards with no color identity
	Colorless color.NRGBA
}

// DefaultConfig returns the built-in palette
func DefaultConfig() Config {
	return Config{
		Ink: map[types.Color]color.NRGBA{
			types.Red:   {R: 200, A: 255},
			types.Green: {G: 200, A: 255},
			types.Blue:  {B: 200, A: 255},
			types.Black: {A: 255},
			types.White: {R: 210, G: 210, B: 210, A: 255},
		},
		Multicolor: color.NRGBA{R: 120, G: 120, B: 120, A: 255},
		Colorless:  color.NRGBA{R: 195, G: 195, B: 195, A: 255},
	}
}

// Redactor fills and inpaints masked pixels
type Redactor struct {
	config Config
}

// New creates a redactor with the default palette
func New() *Redactor {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a redactor with a custom palette
func NewWithConfig(config Config) *Redactor {
	return &Redactor{config: config}
}

// FillColor resolves the flat fill of a region: the region's own color when
// set, otherwise a tone derived from the card's color identity.
func (r *Redactor) FillColor(region types.RedactionRegion, card *types.CardRecord) color.NRGBA {
	if region.FillColor != nil {
		return *region.FillColor
	}
	if card == nil {
		return r.config.Colorless
	}

	distinct := make(map[types.Color]struct{}, len(card.ColorIdentity))
	for _, c := range card.ColorIdentity {
		distinct[c] = struct{}{}
	}
	switch len(distinct) {
	case 0:
		return r.config.Colorless
	case 1:
		if ink, ok := r.config.Ink[card.ColorIdentity[0]]; ok {
			return ink
		}
		return r.config.Colorless
	default:
		return r.config.Multicolor
	}
}

// Apply returns a copy of img with every masked pixel set to the fill color,
// then inpainted from the surrounding pixels when the region asks for it.
func (r *Redactor) Apply(img image.Image, m *mask.Mask, region types.RedactionRegion, card *types.CardRecord) (*image.NRGBA, error) {
	if m == nil {
		return nil, fmt.Errorf("apply region %v: nil mask", region.Rect())
	}
	if !m.Bounds().Eq(img.Bounds()) {
		return nil, fmt.Errorf("apply region %v: %w (mask %v, image %v)", region.Rect(), ErrBoundsMismatch, m.Bounds(), img.Bounds())
	}

	out := imaging.Clone(img)
	// imaging.Clone rebases to the origin
	offset := img.Bounds().Min

	fill := r.FillColor(region, card)
	ext := m.Extent()
	for y := ext.Min.Y; y < ext.Max.Y; y++ {
		for x := ext.Min.X; x < ext.Max.X; x++ {
			if m.Get(x, y) {
				out.SetNRGBA(x-offset.X, y-offset.Y, fill)
			}
		}
	}

	if region.Inpaint && region.InpaintRadius > 0 {
		inpaint(out, m, offset, region.InpaintRadius)
	}
	return out, nil
}

// inpaint rebuilds masked pixels from known neighbours, nearest to the mask
// boundary first. Each pixel becomes the inverse-square-distance weighted mean
// of the known pixels within radius and is known from then on.
func inpaint(img *image.NRGBA, m *mask.Mask, offset image.Point, radius int) {
	ext := m.Extent()
	w, h := ext.Dx(), ext.Dy()
	if w == 0 || h == 0 {
		return
	}
	bounds := img.Bounds()

	unknown := func(x, y int) bool { return m.Get(x+offset.X, y+offset.Y) }

	// multi-source BFS from the known border gives the fill order
	local := ext.Sub(offset)
	dist := make([]int, w*h)
	for i := range dist {
		dist[i] = -1
	}
	queue := make([]image.Point, 0, w*h)
	for y := local.Min.Y; y < local.Max.Y; y++ {
		for x := local.Min.X; x < local.Max.X; x++ {
			if !unknown(x, y) {
				continue
			}
			if hasKnownNeighbour(bounds, x, y, unknown) {
				dist[(y-local.Min.Y)*w+(x-local.Min.X)] = 1
				queue = append(queue, image.Pt(x, y))
			}
		}
	}
	for head := 0; head < len(queue); head++ {
		p := queue[head]
		d := dist[(p.Y-local.Min.Y)*w+(p.X-local.Min.X)]
		for _, n := range neighbours(p) {
			if !n.In(local) || !unknown(n.X, n.Y) {
				continue
			}
			i := (n.Y-local.Min.Y)*w + (n.X - local.Min.X)
			if dist[i] < 0 {
				dist[i] = d + 1
				queue = append(queue, n)
			}
		}
	}

	known := make([]bool, w*h)
	isKnown := func(x, y int) bool {
		if !(image.Point{X: x, Y: y}).In(bounds) {
			return false
		}
		if !(image.Point{X: x, Y: y}).In(local) || !unknown(x, y) {
			return true
		}
		return known[(y-local.Min.Y)*w+(x-local.Min.X)]
	}

	r2 := radius * radius
	for _, p := range queue {
		var sr, sg, sb, sw float64
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				d2 := dx*dx + dy*dy
				if d2 == 0 || d2 > r2 || !isKnown(p.X+dx, p.Y+dy) {
					continue
				}
				c := img.NRGBAAt(p.X+dx, p.Y+dy)
				wt := 1 / float64(d2)
				sr += wt * float64(c.R)
				sg += wt * float64(c.G)
				sb += wt * float64(c.B)
				sw += wt
			}
		}
		if sw > 0 {
			img.SetNRGBA(p.X, p.Y, color.NRGBA{
				R: clamp(sr / sw),
				G: clamp(sg / sw),
				B: clamp(sb / sw),
				A: 255,
			})
		}
		known[(p.Y-local.Min.Y)*w+(p.X-local.Min.X)] = true
	}
}

func neighbours(p image.Point) [8]image.Point {
	return [8]image.Point{
		{p.X - 1, p.Y - 1}, {p.X, p.Y - 1}, {p.X + 1, p.Y - 1},
		{p.X - 1, p.Y}, {p.X + 1, p.Y},
		{p.X - 1, p.Y + 1}, {p.X, p.Y + 1}, {p.X + 1, p.Y + 1},
	}
}

func hasKnownNeighbour(bounds image.Rectangle, x, y int, unknown func(x, y int) bool) bool {
	for _, n := range neighbours(image.Pt(x, y)) {
		if n.In(bounds) && !unknown(n.X, n.Y) {
			return true
		}
	}
	return false
}

func clamp(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
