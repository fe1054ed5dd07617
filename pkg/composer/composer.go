// Package composer turns a raw provider scan into the final redacted card.
package composer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cardmask/pkg/frame"
	"github.com/menta2k/cardmask/pkg/mask"
	"github.com/menta2k/cardmask/pkg/redact"
	"github.com/menta2k/cardmask/pkg/types"
)

// ErrInvalidImage is returned for images that cannot be composed
var ErrInvalidImage = errors.New("invalid image")

// Config holds the output geometry
type Config struct {
	// Margin is cropped from every side of the raw scan
	Margin int
	// WorkWidth and WorkHeight are the pixel space of the frame regions
	WorkWidth  int
	WorkHeight int
	// Border is the width of the colored frame added around the card
	Border int
	// Width and Height are the final output size
	Width  int
	Height int
	// BorderColors maps a printed border to its frame color
	BorderColors map[types.Border]color.NRGBA
}

// DefaultConfig returns the reference geometry
func DefaultConfig() Config {
	return Config{
		Margin:     10,
		WorkWidth:  frame.WorkWidth,
		WorkHeight: frame.WorkHeight,
		Border:     36,
		Width:      816,
		Height:     1110,
		BorderColors: map[types.Border]color.NRGBA{
			types.BorderBlack:  {A: 255},
			types.BorderWhite:  {R: 255, G: 255, B: 255, A: 255},
			types.BorderSilver: {R: 192, G: 192, B: 192, A: 255},
			types.BorderGold:   {R: 255, G: 215, A: 255},
		},
	}
}

// Composer runs the redaction pipeline on a single card image
type Composer struct {
	config     Config
	classifier *frame.Classifier
	masks      *mask.Builder
	redactor   *redact.Redactor
}

// New creates a composer with the default geometry and components
func New() *Composer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a composer with custom geometry
func NewWithConfig(config Config) *Composer {
	return &Composer{
		config:     config,
		classifier: frame.New(),
		masks:      mask.New(),
		redactor:   redact.New(),
	}
}

// SetClassifier replaces the frame classifier
func (c *Composer) SetClassifier(classifier *frame.Classifier) {
	c.classifier = classifier
}

// SetMaskBuilder replaces the mask builder
func (c *Composer) SetMaskBuilder(builder *mask.Builder) {
	c.masks = builder
}

// SetRedactor replaces the redactor
func (c *Composer) SetRedactor(redactor *redact.Redactor) {
	c.redactor = redactor
}

// Config returns the composer geometry
func (c *Composer) Config() Config {
	return c.config
}

// Classify returns the frame style the composer would use for card
func (c *Composer) Classify(card *types.CardRecord) types.FrameStyle {
	return c.classifier.Classify(card)
}

// OutputRect maps a rectangle in working space onto the final image
func (c *Composer) OutputRect(r image.Rectangle) image.Rectangle {
	w := c.config.Border
	fw := c.config.WorkWidth + 2*w
	fh := c.config.WorkHeight + 2*w
	scale := func(v, from, to int) int {
		return int(math.Round(float64(v) * float64(to) / float64(from)))
	}
	return image.Rect(
		scale(r.Min.X+w, fw, c.config.Width),
		scale(r.Min.Y+w, fh, c.config.Height),
		scale(r.Max.X+w, fw, c.config.Width),
		scale(r.Max.Y+w, fh, c.config.Height),
	)
}

// Compose classifies the card and renders its final image
func (c *Composer) Compose(card *types.CardRecord, raw image.Image) (*image.NRGBA, error) {
	return c.ComposeStyle(card, c.classifier.Classify(card), raw)
}

// ComposeStyle renders a card with an explicit frame style
func (c *Composer) ComposeStyle(card *types.CardRecord, style types.FrameStyle, raw image.Image) (*image.NRGBA, error) {
	work, err := c.Prepare(raw)
	if err != nil {
		return nil, err
	}

	work = Autocontrast(work, style.Contrast)

	for i, region := range style.Regions {
		m, err := c.masks.Build(work, region)
		if err != nil {
			return nil, fmt.Errorf("region %d of %s: %w", i, style.Tag, err)
		}
		work, err = c.redactor.Apply(work, m, region, card)
		if err != nil {
			return nil, fmt.Errorf("region %d of %s: %w", i, style.Tag, err)
		}
	}

	work = Brightness(work, style.Brightness)
	return c.Finish(card, work), nil
}

// Prepare crops the margin, drops alpha and resamples the scan into the
// working pixel space.
func (c *Composer) Prepare(raw image.Image) (*image.NRGBA, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	b := raw.Bounds()
	m := c.config.Margin
	if b.Dx() <= 2*m || b.Dy() <= 2*m {
		return nil, fmt.Errorf("%w: %dx%d is smaller than the %dpx margin", ErrInvalidImage, b.Dx(), b.Dy(), m)
	}

	work := imaging.Crop(raw, b.Inset(m))
	work = imaging.AdjustFunc(work, func(px color.NRGBA) color.NRGBA {
		px.A = 255
		return px
	})

	if work.Bounds().Dx() != c.config.WorkWidth || work.Bounds().Dy() != c.config.WorkHeight {
		work = imaging.Resize(work, c.config.WorkWidth, c.config.WorkHeight, imaging.Lanczos)
	}
	return work, nil
}

// Finish adds the border and resizes to the output size
func (c *Composer) Finish(card *types.CardRecord, work image.Image) *image.NRGBA {
	border := types.BorderBlack
	if card != nil {
		border = card.Border()
	}
	fill, ok := c.config.BorderColors[border]
	if !ok {
		fill = color.NRGBA{A: 255}
	}

	b := work.Bounds()
	w := c.config.Border
	framed := imaging.New(b.Dx()+2*w, b.Dy()+2*w, fill)
	framed = imaging.Paste(framed, work, image.Pt(w, w))

	if framed.Bounds().Dx() == c.config.Width && framed.Bounds().Dy() == c.config.Height {
		return framed
	}
	return imaging.Resize(framed, c.config.Width, c.config.Height, imaging.Lanczos)
}

// Autocontrast stretches each channel so that cutoff percent of the pixels
// at either end of its histogram saturate.
func Autocontrast(img image.Image, cutoff float64) *image.NRGBA {
	var hist [3][256]int
	src := imaging.Clone(img)
	for i := 0; i < len(src.Pix); i += 4 {
		hist[0][src.Pix[i]]++
		hist[1][src.Pix[i+1]]++
		hist[2][src.Pix[i+2]]++
	}

	var lut [3][256]uint8
	for ch := range hist {
		lut[ch] = stretchTable(hist[ch], cutoff)
	}

	return imaging.AdjustFunc(src, func(px color.NRGBA) color.NRGBA {
		px.R = lut[0][px.R]
		px.G = lut[1][px.G]
		px.B = lut[2][px.B]
		return px
	})
}

func stretchTable(hist [256]int, cutoff float64) [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(i)
	}

	total := 0
	for _, n := range hist {
		total += n
	}
	cut := int(float64(total) * cutoff / 100)

	// trim the dark end
	for lo, rem := 0, cut; lo < 256 && rem > 0; lo++ {
		if hist[lo] > rem {
			hist[lo] -= rem
			rem = 0
		} else {
			rem -= hist[lo]
			hist[lo] = 0
		}
	}
	// trim the light end
	for hi, rem := 255, cut; hi >= 0 && rem > 0; hi-- {
		if hist[hi] > rem {
			hist[hi] -= rem
			rem = 0
		} else {
			rem -= hist[hi]
			hist[hi] = 0
		}
	}

	lo := 0
	for lo < 256 && hist[lo] == 0 {
		lo++
	}
	hi := 255
	for hi >= 0 && hist[hi] == 0 {
		hi--
	}
	if hi <= lo {
		return lut
	}

	scale := 255 / float64(hi-lo)
	offset := -float64(lo) * scale
	for i := range lut {
		v := int(math.Round(float64(i)*scale + offset))
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		lut[i] = uint8(v)
	}
	return lut
}

// Brightness multiplies every color channel by factor
func Brightness(img image.Image, factor float64) *image.NRGBA {
	if factor == 1 {
		return imaging.Clone(img)
	}
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Min(255, math.Round(float64(i)*factor)))
	}
	return imaging.AdjustFunc(img, func(px color.NRGBA) color.NRGBA {
		px.R = lut[px.R]
		px.G = lut[px.G]
		px.B = lut[px.B]
		return px
	})
}
