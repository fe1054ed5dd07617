// Package frame decides which printed frame a card uses and where its
// identifying marks sit.
package frame

import (
	"image/color"
	"strings"

	"github.com/menta2k/cardmask/pkg/types"
)

// Working image size: a 745x1040 reference scan after the 10px margin crop.
// Every region below is expressed in this pixel space.
const (
	WorkWidth  = 725
	WorkHeight = 1020
)

// Style tags
const (
	TagSplit        = "split"
	TagPlaneswalker = "planeswalker"
	TagDark         = "dark-illustration"
	TagCentered     = "centered-illustration"
	TagLeftAligned  = "left-illustration"
	TagModern       = "m15"
	TagEighth       = "eighth"
	TagFourth       = "fourth"
	TagAncient      = "ancient"
)

const (
	defaultBrightness = 1.05
	legacyContrast    = 10
	bandTall          = 64
	bandShort         = 38
)

var black = color.NRGBA{A: 0xff}

// Config holds the inputs of the rule table
type Config struct {
	Eras Eras
	// DarkSets print credits on a dark illustration background
	DarkSets []string
	// CenteredSets print a single centered credit line
	CenteredSets []string
	// LeftSets print a single left-aligned credit line
	LeftSets []string
}

// DefaultConfig returns the built-in eras and set lists
func DefaultConfig() Config {
	return Config{
		Eras:         DefaultEras(),
		// exp is banned by default and only reaches the classifier through a blessing
		DarkSets:     []string{"mps", "mp2", "exp"},
		CenteredSets: []string{"v13", "v15", "v16", "v17"},
		LeftSets:     []string{"ss1", "ss2", "ss3"},
	}
}

// rule pairs a predicate with the style it produces; the first match wins
type rule struct {
	tag   string
	when  func(c *types.CardRecord) bool
	style func(c *types.CardRecord) types.FrameStyle
}

// Classifier evaluates the frame rule table
type Classifier struct {
	config Config
	rules  []rule
}

// New creates a classifier with the default configuration
func New() *Classifier {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a classifier with custom eras and set lists
func NewWithConfig(config Config) *Classifier {
	c := &Classifier{config: config}
	dark := codeSet(config.DarkSets)
	centered := codeSet(config.CenteredSets)
	left := codeSet(config.LeftSets)
	eras := config.Eras

	c.rules = []rule{
		{
			tag:   TagSplit,
			when:  func(card *types.CardRecord) bool { return card.Layout == types.LayoutSplit },
			style: splitStyle,
		},
		{
			tag: TagPlaneswalker,
			when: func(card *types.CardRecord) bool {
				return card.Loyalty != nil && card.ReleaseDate().Before(eras.Planeswalker)
			},
			style: planeswalkerStyle,
		},
		{
			tag:   TagDark,
			when:  func(card *types.CardRecord) bool { return inSet(dark, card) },
			style: darkStyle,
		},
		{
			tag:   TagCentered,
			when:  func(card *types.CardRecord) bool { return inSet(centered, card) },
			style: centeredStyle,
		},
		{
			tag:   TagLeftAligned,
			when:  func(card *types.CardRecord) bool { return inSet(left, card) },
			style: leftStyle,
		},
		{
			tag:   TagModern,
			when:  func(card *types.CardRecord) bool { return !card.ReleaseDate().Before(eras.Modern) },
			style: modernStyle,
		},
		{
			tag:   TagEighth,
			when:  func(card *types.CardRecord) bool { return !card.ReleaseDate().Before(eras.Eighth) },
			style: eighthStyle,
		},
		{
			tag:   TagFourth,
			when:  func(card *types.CardRecord) bool { return !card.ReleaseDate().Before(eras.Fourth) },
			style: fourthStyle,
		},
		{
			tag:   TagAncient,
			when:  func(*types.CardRecord) bool { return true },
			style: ancientStyle,
		},
	}
	return c
}

// Classify returns the frame style of a card. It is total: the last rule
// matches every card.
func (c *Classifier) Classify(card *types.CardRecord) types.FrameStyle {
	if card == nil {
		return ancientStyle(&types.CardRecord{})
	}
	for _, r := range c.rules {
		if r.when(card) {
			style := r.style(card)
			style.Tag = r.tag
			return style
		}
	}
	// unreachable while the catch-all rule is last
	return ancientStyle(card)
}

// Tags lists the rule tags in evaluation order
func (c *Classifier) Tags() []string {
	tags := make([]string, len(c.rules))
	for i, r := range c.rules {
		tags[i] = r.tag
	}
	return tags
}

func splitStyle(*types.CardRecord) types.FrameStyle {
	band := func(top, bottom int) types.RedactionRegion {
		return types.RedactionRegion{
			Top: top, Bottom: bottom, Left: WorkWidth - 60, Right: WorkWidth - 28,
			Inpaint: true, InpaintRadius: 4, Dilation: 1, Orientation: types.Vertical,
		}
	}
	return types.FrameStyle{
		Regions:    []types.RedactionRegion{band(170, 480), band(680, 980)},
		Contrast:   15,
		Brightness: defaultBrightness,
	}
}

func planeswalkerStyle(*types.CardRecord) types.FrameStyle {
	return types.FrameStyle{
		Regions: []types.RedactionRegion{
			flood(WorkHeight-70, WorkHeight-5, WorkWidth-575, WorkWidth-150),
		},
		Contrast:   12,
		Brightness: 1.0,
	}
}

func darkStyle(card *types.CardRecord) types.FrameStyle {
	return types.FrameStyle{
		Regions:    threeBands(card),
		Contrast:   12,
		Brightness: 1.0,
	}
}

func centeredStyle(*types.CardRecord) types.FrameStyle {
	return types.FrameStyle{
		Regions: []types.RedactionRegion{
			paint(WorkHeight-48, WorkHeight-8, WorkWidth/2-200, WorkWidth/2+200, 3),
		},
		Contrast:   legacyContrast,
		Brightness: defaultBrightness,
	}
}

func leftStyle(*types.CardRecord) types.FrameStyle {
	return types.FrameStyle{
		Regions: []types.RedactionRegion{
			paint(WorkHeight-48, WorkHeight-8, 20, 420, 3),
		},
		Contrast:   legacyContrast,
		Brightness: defaultBrightness,
	}
}

// modernStyle boosts contrast on white cards, whose pale frames wash out
func modernStyle(card *types.CardRecord) types.FrameStyle {
	style := types.FrameStyle{
		Regions:    threeBands(card),
		Contrast:   18,
		Brightness: defaultBrightness,
	}
	if card.HasColor(types.White) {
		style.Contrast += 10
		style.Brightness = 1.02
	}
	return style
}

func eighthStyle(*types.CardRecord) types.FrameStyle {
	return types.FrameStyle{
		Regions:    []types.RedactionRegion{paint(945, 990, 45, 500, 4)},
		Contrast:   legacyContrast,
		Brightness: defaultBrightness,
	}
}

func fourthStyle(*types.CardRecord) types.FrameStyle {
	return types.FrameStyle{
		Regions:    []types.RedactionRegion{paint(925, 979, 150, 560, 4)},
		Contrast:   legacyContrast,
		Brightness: defaultBrightness,
	}
}

func ancientStyle(*types.CardRecord) types.FrameStyle {
	return types.FrameStyle{
		Tag:        TagAncient,
		Regions:    []types.RedactionRegion{paint(930, 974, 50, 450, 4)},
		Contrast:   legacyContrast,
		Brightness: 1.08,
	}
}

// threeBands covers the bottom strip of modern frames: rules credits on the
// right (shorter when a stat box sits above it), flavor credits on the left
// and the legal line in the centre.
func threeBands(card *types.CardRecord) []types.RedactionRegion {
	right := bandTall
	if card.HasStats() {
		right = bandShort
	}
	return []types.RedactionRegion{
		flood(WorkHeight-right, WorkHeight-5, WorkWidth-300, WorkWidth-25),
		flood(WorkHeight-bandTall, WorkHeight-5, 20, 300),
		flood(WorkHeight-bandShort, WorkHeight-5, 300, WorkWidth-300),
	}
}

// flood is a flat black fill with doubled structuring elements
func flood(top, bottom, left, right int) types.RedactionRegion {
	fill := black
	return types.RedactionRegion{
		Top: top, Bottom: bottom, Left: left, Right: right,
		FillColor: &fill, InpaintRadius: 2, Dilation: 2,
	}
}

// paint is a color-identity fill blended by inpainting
func paint(top, bottom, left, right, radius int) types.RedactionRegion {
	return types.RedactionRegion{
		Top: top, Bottom: bottom, Left: left, Right: right,
		Inpaint: true, InpaintRadius: radius, Dilation: 1,
	}
}

func codeSet(codes []string) map[string]struct{} {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	return m
}

func inSet(m map[string]struct{}, card *types.CardRecord) bool {
	_, ok := m[card.SetCode()]
	return ok
}
