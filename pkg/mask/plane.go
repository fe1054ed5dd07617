package mask

import (
	"image"
	"image/color"
)

// plane is a single-channel 8-bit raster with its origin at rect.Min
type plane struct {
	rect image.Rectangle
	w, h int
	pix  []uint8
}

func newPlane(r image.Rectangle) *plane {
	return &plane{rect: r, w: r.Dx(), h: r.Dy(), pix: make([]uint8, r.Dx()*r.Dy())}
}

// grayPlane converts the window r of img to luminance (ITU-R 601-2 weights)
func grayPlane(img image.Image, r image.Rectangle) *plane {
	p := newPlane(r)
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < p.h; y++ {
			off := src.PixOffset(r.Min.X, r.Min.Y+y)
			for x := 0; x < p.w; x++ {
				i := off + x*4
				p.pix[y*p.w+x] = luma(uint32(src.Pix[i]), uint32(src.Pix[i+1]), uint32(src.Pix[i+2]))
			}
		}
	default:
		for y := 0; y < p.h; y++ {
			for x := 0; x < p.w; x++ {
				c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
				p.pix[y*p.w+x] = luma(uint32(c.R), uint32(c.G), uint32(c.B))
			}
		}
	}
	return p
}

func luma(r, g, b uint32) uint8 {
	return uint8((299*r + 587*g + 114*b + 500) / 1000)
}

// invert returns the photometric inverse 255 - v
func (p *plane) invert() *plane {
	out := newPlane(p.rect)
	for i, v := range p.pix {
		out.pix[i] = 255 - v
	}
	return out
}

// morph applies a rectangular min (erode) or max (dilate) filter of size
// kw x kh anchored at its centre. The filter is separable, so it runs as a
// row pass followed by a column pass. Pixels outside the plane are ignored.
func (p *plane) morph(kw, kh int, dilate bool) *plane {
	if kw < 1 {
		kw = 1
	}
	if kh < 1 {
		kh = 1
	}
	pick := func(a, b uint8) uint8 {
		if dilate == (b > a) {
			return b
		}
		return a
	}

	tmp := newPlane(p.rect)
	x0, x1 := -(kw / 2), kw-1-kw/2
	for y := 0; y < p.h; y++ {
		row := p.pix[y*p.w : (y+1)*p.w]
		for x := 0; x < p.w; x++ {
			v := row[x]
			for d := x0; d <= x1; d++ {
				if xx := x + d; xx >= 0 && xx < p.w {
					v = pick(v, row[xx])
				}
			}
			tmp.pix[y*p.w+x] = v
		}
	}

	out := newPlane(p.rect)
	y0, y1 := -(kh / 2), kh-1-kh/2
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			v := tmp.pix[y*p.w+x]
			for d := y0; d <= y1; d++ {
				if yy := y + d; yy >= 0 && yy < p.h {
					v = pick(v, tmp.pix[yy*p.w+x])
				}
			}
			out.pix[y*p.w+x] = v
		}
	}
	return out
}

func (p *plane) erode(k image.Point) *plane  { return p.morph(k.X, k.Y, false) }
func (p *plane) dilate(k image.Point) *plane { return p.morph(k.X, k.Y, true) }

// closing fills gaps narrower than the structuring element
func (p *plane) closing(k image.Point) *plane { return p.dilate(k).erode(k) }

// opening removes structures narrower than the structuring element
func (p *plane) opening(k image.Point) *plane { return p.erode(k).dilate(k) }

// topHat keeps bright detail smaller than k against its local background
func (p *plane) topHat(k image.Point) *plane {
	open := p.opening(k)
	out := newPlane(p.rect)
	for i := range p.pix {
		out.pix[i] = p.pix[i] - open.pix[i] // opening never exceeds the source
	}
	return out
}

// gradient returns the Sobel x and y magnitudes, each min-max stretched to
// the full 0..255 range, summed and saturated.
func (p *plane) gradient() *plane {
	gx := make([]int, len(p.pix))
	gy := make([]int, len(p.pix))

	at := func(x, y int) int {
		if x < 0 {
			x = 0
		} else if x >= p.w {
			x = p.w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= p.h {
			y = p.h - 1
		}
		return int(p.pix[y*p.w+x])
	}

	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			dx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			dy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			gx[y*p.w+x] = abs(dx)
			gy[y*p.w+x] = abs(dy)
		}
	}

	nx := stretch(gx)
	ny := stretch(gy)
	out := newPlane(p.rect)
	for i := range out.pix {
		v := nx[i] + ny[i]
		if v > 255 {
			v = 255
		}
		out.pix[i] = uint8(v)
	}
	return out
}

// stretch min-max normalizes values to 0..255; a flat input maps to zero
func stretch(v []int) []int {
	out := make([]int, len(v))
	if len(v) == 0 {
		return out
	}
	lo, hi := v[0], v[0]
	for _, x := range v {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if hi == lo {
		return out
	}
	span := hi - lo
	for i, x := range v {
		out[i] = (x - lo) * 255 / span
	}
	return out
}

// otsu returns the threshold maximizing between-class variance
func (p *plane) otsu() uint8 {
	var hist [256]int
	for _, v := range p.pix {
		hist[v]++
	}
	total := len(p.pix)
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var sumB, best float64
	var wB int
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// binarize maps values above t to 255 and everything else to 0
func (p *plane) binarize(t uint8) *plane {
	out := newPlane(p.rect)
	for i, v := range p.pix {
		if v > t {
			out.pix[i] = 255
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
