package types

import (
	"image"
	"image/color"
	"strings"
	"time"
)

// Border is a printed border convention
type Border string

const (
	BorderBlack      Border = "black"
	BorderWhite      Border = "white"
	BorderSilver     Border = "silver"
	BorderGold       Border = "gold"
	BorderBorderless Border = "borderless"
)

// Layout tags the physical card layout
type Layout string

const (
	LayoutNormal Layout = "normal"
	LayoutSplit  Layout = "split"
)

// Color is one letter of a card's color identity
type Color string

const (
	White Color = "W"
	Blue  Color = "U"
	Black Color = "B"
	Red   Color = "R"
	Green Color = "G"
)

// SetRecord represents one printed set of the catalog
type SetRecord struct {
	Code               string    `json:"code"`
	Name               string    `json:"name"`
	ReleaseDate        time.Time `json:"releaseDate"`
	Border             Border    `json:"border"`
	OnlineOnly         bool      `json:"onlineOnly"`
	MagicCardsInfoCode string    `json:"magicCardsInfoCode,omitempty"`

	byName  map[string]*CardRecord
	byASCII map[string]*CardRecord
}

// NewSetRecord creates an empty set ready to receive cards
func NewSetRecord(code, name string, released time.Time, border Border) *SetRecord {
	return &SetRecord{
		Code:        code,
		Name:        name,
		ReleaseDate: released,
		Border:      border,
		byName:      make(map[string]*CardRecord),
		byASCII:     make(map[string]*CardRecord),
	}
}

// AddCard indexes a card under its exact and normalized names. The first card
// added for a name wins, so reprints inside one set keep their lowest entry.
func (s *SetRecord) AddCard(c *CardRecord) {
	if s.byName == nil {
		s.byName = make(map[string]*CardRecord)
		s.byASCII = make(map[string]*CardRecord)
	}
	c.Set = s
	if _, ok := s.byName[c.Name]; !ok {
		s.byName[c.Name] = c
	}
	if c.ASCIIName != "" {
		if _, ok := s.byASCII[c.ASCIIName]; !ok {
			s.byASCII[c.ASCIIName] = c
		}
	}
}

// CardByExactName returns the card printed under exactly this name
func (s *SetRecord) CardByExactName(name string) *CardRecord {
	return s.byName[name]
}

// CardByNormalizedName returns the card whose normalized name equals name
func (s *SetRecord) CardByNormalizedName(name string) *CardRecord {
	return s.byASCII[name]
}

// Cards returns every distinct card of the set
func (s *SetRecord) Cards() []*CardRecord {
	out := make([]*CardRecord, 0, len(s.byName))
	for _, c := range s.byName {
		out = append(out, c)
	}
	return out
}

// CardRecord is one printing of a card in one set
type CardRecord struct {
	Name          string  `json:"name"`
	ASCIIName     string  `json:"asciiName"`
	Number        string  `json:"number,omitempty"`
	MCINumber     string  `json:"mciNumber,omitempty"`
	Layout        Layout  `json:"layout"`
	ColorIdentity []Color `json:"colorIdentity,omitempty"`
	Power         *string `json:"power,omitempty"`
	Toughness     *string `json:"toughness,omitempty"`
	Loyalty       *string `json:"loyalty,omitempty"`
	Timeshifted   bool    `json:"timeshifted,omitempty"`
	BorderColor   Border  `json:"border,omitempty"`

	// Set is a back-reference to the owning set
	Set *SetRecord `json:"-"`
}

// ID returns the primary numeric identifier, falling back to the legacy one
func (c *CardRecord) ID() string {
	if c.Number != "" {
		return c.Number
	}
	return c.MCINumber
}

// HasID reports whether the card carries any identifier usable for images
func (c *CardRecord) HasID() bool {
	return c.ID() != ""
}

// SetCode returns the lower-cased code of the owning set
func (c *CardRecord) SetCode() string {
	if c.Set == nil {
		return ""
	}
	return strings.ToLower(c.Set.Code)
}

// Border returns the card's own border color or the one inherited from its set
func (c *CardRecord) Border() Border {
	if c.BorderColor != "" {
		return c.BorderColor
	}
	if c.Set != nil && c.Set.Border != "" {
		return c.Set.Border
	}
	return BorderBlack
}

// HasStats reports whether the card prints power/toughness or loyalty
func (c *CardRecord) HasStats() bool {
	return c.Power != nil || c.Toughness != nil || c.Loyalty != nil
}

// HasColor reports whether col is part of the color identity
func (c *CardRecord) HasColor(col Color) bool {
	for _, ci := range c.ColorIdentity {
		if ci == col {
			return true
		}
	}
	return false
}

// ReleaseDate returns the release date of the owning set
func (c *CardRecord) ReleaseDate() time.Time {
	if c.Set == nil {
		return time.Time{}
	}
	return c.Set.ReleaseDate
}

// Orientation of the text runs inside a region
type Orientation int

const (
	// Horizontal text runs left to right (regular frames)
	Horizontal Orientation = iota
	// Vertical text runs top to bottom (split cards are printed sideways)
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// RedactionRegion is a rectangle of the working image to be masked and filled
type RedactionRegion struct {
	Top    int
	Bottom int
	Left   int
	Right  int

	// FillColor overrides the color-identity fill when set
	FillColor *color.NRGBA
	// Inpaint blends the masked pixels with their surroundings after the flat fill
	Inpaint bool
	// InpaintRadius is the neighbourhood used by the inpainting fill
	InpaintRadius int
	// Dilation scales the structuring elements; 2 floods whole text lines
	Dilation    int
	Orientation Orientation
}

// Rect returns the region as an image rectangle
func (r RedactionRegion) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Kernel returns the oriented structuring element size (width, height)
func (r RedactionRegion) Kernel() image.Point {
	f := r.Dilation
	if f < 1 {
		f = 1
	}
	if r.Orientation == Vertical {
		return image.Point{X: 2 * f, Y: 8 * f}
	}
	return image.Point{X: 8 * f, Y: 2 * f}
}

// FrameStyle is the redaction template for one frame era or print run
type FrameStyle struct {
	Tag        string
	Regions    []RedactionRegion
	Contrast   float64 // autocontrast cutoff, percent of each histogram tail
	Brightness float64 // multiplier applied after redaction
}
