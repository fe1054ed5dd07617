package composer

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/menta2k/cardmask/pkg/types"
)

// createTestImage creates a card-like scan with a dark credit line near the bottom
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case y > height*92/100 && y < height*95/100 && x > width/10 && x < width/2 && (x/4)%3 == 0:
				img.Set(x, y, color.RGBA{15, 15, 15, 255})
			case y > height*9/10:
				img.Set(x, y, color.RGBA{210, 200, 180, 255})
			default:
				r := uint8((x * 200) / width)
				g := uint8((y * 200) / height)
				img.Set(x, y, color.RGBA{r, g, 90, 255})
			}
		}
	}
	return img
}

func testCard(released time.Time, border types.Border) *types.CardRecord {
	set := types.NewSetRecord("tst", "Test", released, border)
	c := &types.CardRecord{Name: "Test Card", Number: "1", Layout: types.LayoutNormal, ColorIdentity: []types.Color{types.Red}}
	set.AddCard(c)
	return c
}

func TestComposeOutputSize(t *testing.T) {
	c := New()
	card := testCard(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), types.BorderBlack)

	sizes := []image.Point{{745, 1040}, {488, 680}, {1000, 1400}, {300, 300}, {25, 25}}
	for _, size := range sizes {
		out, err := c.Compose(card, createTestImage(size.X, size.Y))
		if err != nil {
			t.Fatalf("Compose(%v) failed: %v", size, err)
		}
		if out.Bounds().Dx() != 816 || out.Bounds().Dy() != 1110 {
			t.Errorf("Compose(%v) produced %dx%d, want 816x1110", size, out.Bounds().Dx(), out.Bounds().Dy())
		}
	}
}

func TestComposeEveryEra(t *testing.T) {
	c := New()
	dates := []time.Time{
		time.Date(1993, 8, 5, 0, 0, 0, 0, time.UTC),
		time.Date(1997, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	raw := createTestImage(745, 1040)
	for _, d := range dates {
		card := testCard(d, types.BorderBlack)
		if _, err := c.Compose(card, raw); err != nil {
			t.Errorf("Compose for %v failed: %v", d, err)
		}
	}

	split := testCard(dates[2], types.BorderBlack)
	split.Layout = types.LayoutSplit
	if _, err := c.Compose(split, raw); err != nil {
		t.Errorf("Compose for split card failed: %v", err)
	}
}

func TestComposeInvalidImage(t *testing.T) {
	c := New()
	card := testCard(time.Now(), types.BorderBlack)

	if _, err := c.Compose(card, image.NewRGBA(image.Rect(0, 0, 20, 400))); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage for undersized image, got %v", err)
	}
	if _, err := c.Compose(card, nil); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage for nil image, got %v", err)
	}
}

func TestPrepare(t *testing.T) {
	c := New()
	src := image.NewNRGBA(image.Rect(0, 0, 745, 1040))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 0 // fully transparent
	}
	work, err := c.Prepare(src)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if work.Bounds().Dx() != 725 || work.Bounds().Dy() != 1020 {
		t.Errorf("Expected 725x1020 working image, got %v", work.Bounds())
	}
	if work.NRGBAAt(5, 5).A != 255 {
		t.Error("Expected alpha to be dropped")
	}
}

func TestFinishBorderColor(t *testing.T) {
	// 100px work plus two 36px borders, so no final resize blurs the edge
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 172, 172
	c := NewWithConfig(cfg)

	work := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	tests := []struct {
		border types.Border
		want   color.NRGBA
	}{
		{types.BorderBlack, color.NRGBA{A: 255}},
		{types.BorderWhite, color.NRGBA{255, 255, 255, 255}},
		{types.BorderSilver, color.NRGBA{192, 192, 192, 255}},
		{types.BorderBorderless, color.NRGBA{A: 255}},
	}
	for _, tt := range tests {
		out := c.Finish(testCard(time.Now(), tt.border), work)
		if got := out.NRGBAAt(2, 2); got != tt.want {
			t.Errorf("%s border pixel = %v, want %v", tt.border, got, tt.want)
		}
	}
}

func TestOutputRect(t *testing.T) {
	c := New()
	cfg := c.Config()

	full := c.OutputRect(image.Rect(0, 0, cfg.WorkWidth, cfg.WorkHeight))
	want := image.Rect(37, 37, 779, 1073)
	if full != want {
		t.Errorf("OutputRect(work) = %v, want %v", full, want)
	}

	same := NewWithConfig(Config{WorkWidth: 100, WorkHeight: 100, Border: 10, Width: 120, Height: 120})
	if got := same.OutputRect(image.Rect(5, 5, 50, 60)); got != image.Rect(15, 15, 60, 70) {
		t.Errorf("Expected identity scale, got %v", got)
	}
}

func TestAutocontrast(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(100 + (i/4)%50)
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}

	out := Autocontrast(img, 0)
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(out.Pix); i += 4 {
		lo = min(lo, out.Pix[i])
		hi = max(hi, out.Pix[i])
	}
	if lo != 0 || hi != 255 {
		t.Errorf("Expected full range after stretch, got %d..%d", lo, hi)
	}

	flat := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range flat.Pix {
		flat.Pix[i] = 77
	}
	if Autocontrast(flat, 10).Pix[0] != 77 {
		t.Error("Expected a flat image to stay unchanged")
	}
}

func TestBrightness(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Pix[0], img.Pix[1], img.Pix[2], img.Pix[3] = 100, 250, 0, 255

	out := Brightness(img, 1.08)
	if out.Pix[0] != 108 || out.Pix[1] != 255 || out.Pix[2] != 0 {
		t.Errorf("Unexpected brightness result %v", out.Pix[:3])
	}
}

func BenchmarkCompose(b *testing.B) {
	c := New()
	card := testCard(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), types.BorderBlack)
	raw := createTestImage(745, 1040)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Compose(card, raw); err != nil {
			b.Fatal(err)
		}
	}
}
