package frame

import (
	"image"
	"testing"
	"time"

	"github.com/menta2k/cardmask/pkg/catalog"
	"github.com/menta2k/cardmask/pkg/types"
)

var _ SetLookup = (*catalog.Catalog)(nil)

func cardIn(code string, released time.Time, mutate func(c *types.CardRecord)) *types.CardRecord {
	set := types.NewSetRecord(code, code, released, types.BorderBlack)
	c := &types.CardRecord{Name: "Test Card", Number: "1", Layout: types.LayoutNormal}
	if mutate != nil {
		mutate(c)
	}
	set.AddCard(c)
	return c
}

func str(s string) *string { return &s }

func TestClassifyRuleOrder(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		card *types.CardRecord
		want string
	}{
		{
			name: "split beats every date rule",
			card: cardIn("akh", day(2017, 4, 28), func(c *types.CardRecord) { c.Layout = types.LayoutSplit }),
			want: TagSplit,
		},
		{
			name: "old planeswalker",
			card: cardIn("m14", day(2013, 7, 19), func(c *types.CardRecord) { c.Loyalty = str("3") }),
			want: TagPlaneswalker,
		},
		{
			name: "planeswalker printed after BFZ uses the modern frame",
			card: cardIn("war", day(2019, 5, 3), func(c *types.CardRecord) { c.Loyalty = str("5") }),
			want: TagModern,
		},
		{
			name: "dark illustration set",
			card: cardIn("mps", day(2016, 9, 30), nil),
			want: TagDark,
		},
		{
			name: "expeditions use the dark illustration layout",
			card: cardIn("exp", day(2015, 10, 2), nil),
			want: TagDark,
		},
		{
			name: "centered illustration set",
			card: cardIn("v15", day(2015, 8, 21), nil),
			want: TagCentered,
		},
		{
			name: "left illustration set",
			card: cardIn("ss1", day(2018, 6, 15), nil),
			want: TagLeftAligned,
		},
		{
			name: "modern frame",
			card: cardIn("m19", day(2018, 7, 13), nil),
			want: TagModern,
		},
		{
			name: "eighth edition frame",
			card: cardIn("zen", day(2009, 10, 2), nil),
			want: TagEighth,
		},
		{
			name: "fourth edition era",
			card: cardIn("tmp", day(1997, 10, 14), nil),
			want: TagFourth,
		},
		{
			name: "ancient",
			card: cardIn("arn", day(1993, 12, 17), nil),
			want: TagAncient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.card).Tag; got != tt.want {
				t.Errorf("Classify() tag = %s, want %s", got, tt.want)
			}
		})
	}
}

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestClassifySplitOrientation(t *testing.T) {
	c := New()
	split := c.Classify(cardIn("apc", day(2001, 6, 4), func(c *types.CardRecord) { c.Layout = types.LayoutSplit }))
	normal := c.Classify(cardIn("zen", day(2009, 10, 2), nil))

	if len(split.Regions) != 2 {
		t.Fatalf("Expected 2 split regions, got %d", len(split.Regions))
	}

	ref := normal.Regions[0].Kernel()
	for i, r := range split.Regions {
		k := r.Kernel()
		if k != (image.Point{X: ref.Y, Y: ref.X}) {
			t.Errorf("Region %d kernel %v is not a 90° rotation of %v", i, k, ref)
		}
		if r.Orientation != types.Vertical {
			t.Errorf("Region %d should be vertical", i)
		}
	}
}

func TestModernWhiteContrast(t *testing.T) {
	c := New()
	red := c.Classify(cardIn("m20", day(2019, 7, 12), func(c *types.CardRecord) { c.ColorIdentity = []types.Color{types.Red} }))
	white := c.Classify(cardIn("m20", day(2019, 7, 12), func(c *types.CardRecord) { c.ColorIdentity = []types.Color{types.White, types.Blue} }))

	if red.Contrast != 18 || red.Brightness != 1.05 {
		t.Errorf("Unexpected non-white parameters: %v/%v", red.Contrast, red.Brightness)
	}
	if white.Contrast != 28 || white.Brightness != 1.02 {
		t.Errorf("Unexpected white parameters: %v/%v", white.Contrast, white.Brightness)
	}

	again := c.Classify(cardIn("m20", day(2019, 7, 12), func(c *types.CardRecord) { c.ColorIdentity = []types.Color{types.White, types.Blue} }))
	if again.Contrast != white.Contrast {
		t.Error("Classify is not deterministic")
	}
}

func TestThreeBandsHeightAndOverlap(t *testing.T) {
	c := New()
	creature := c.Classify(cardIn("m19", day(2018, 7, 13), func(c *types.CardRecord) {
		c.Power, c.Toughness = str("2"), str("2")
	}))
	sorcery := c.Classify(cardIn("m19", day(2018, 7, 13), nil))

	if h := creature.Regions[0].Bottom - creature.Regions[0].Top; h != bandShort-5 {
		t.Errorf("Expected short right band for creatures, got %d", h)
	}
	if h := sorcery.Regions[0].Bottom - sorcery.Regions[0].Top; h != bandTall-5 {
		t.Errorf("Expected tall right band for spells, got %d", h)
	}

	for _, style := range []types.FrameStyle{creature, sorcery} {
		for i := range style.Regions {
			for j := i + 1; j < len(style.Regions); j++ {
				if style.Regions[i].Rect().Overlaps(style.Regions[j].Rect()) {
					t.Errorf("Regions %d and %d overlap", i, j)
				}
			}
		}
	}
}

func TestClassifyRegionsInsideWorkArea(t *testing.T) {
	c := New()
	bounds := image.Rect(0, 0, WorkWidth, WorkHeight)
	cards := []*types.CardRecord{
		cardIn("apc", day(2001, 6, 4), func(c *types.CardRecord) { c.Layout = types.LayoutSplit }),
		cardIn("m14", day(2013, 7, 19), func(c *types.CardRecord) { c.Loyalty = str("3") }),
		cardIn("mps", day(2016, 9, 30), nil),
		cardIn("v15", day(2015, 8, 21), nil),
		cardIn("ss1", day(2018, 6, 15), nil),
		cardIn("m19", day(2018, 7, 13), nil),
		cardIn("zen", day(2009, 10, 2), nil),
		cardIn("tmp", day(1997, 10, 14), nil),
		cardIn("arn", day(1993, 12, 17), nil),
	}
	for _, card := range cards {
		style := c.Classify(card)
		if style.Contrast <= 0 || style.Brightness <= 0 {
			t.Errorf("%s: missing contrast/brightness", style.Tag)
		}
		for _, r := range style.Regions {
			if !r.Rect().In(bounds) || r.Rect().Empty() {
				t.Errorf("%s: region %v outside work area", style.Tag, r.Rect())
			}
		}
	}
}

func TestClassifyNil(t *testing.T) {
	if got := New().Classify(nil).Tag; got != TagAncient {
		t.Errorf("Expected nil card to fall through to %s, got %s", TagAncient, got)
	}
}

func TestErasFrom(t *testing.T) {
	bfz := types.NewSetRecord("BFZ", "Battle for Zendikar", day(2015, 10, 9), types.BorderBlack)
	lookup := lookupFunc(func(code string) *types.SetRecord {
		if code == "bfz" {
			return bfz
		}
		return nil
	})

	eras := ErasFrom(lookup)
	if !eras.Planeswalker.Equal(day(2015, 10, 9)) {
		t.Errorf("Expected BFZ boundary from catalog, got %v", eras.Planeswalker)
	}
	if !eras.Modern.Equal(DefaultEras().Modern) {
		t.Error("Expected default M15 boundary when the catalog lacks the set")
	}
}

type lookupFunc func(code string) *types.SetRecord

func (f lookupFunc) Set(code string) *types.SetRecord { return f(code) }
