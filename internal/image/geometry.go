package imagepkg

import (
	"image"
	"math"
)

// Rect is a rectangle in floating point card units.
type Rect struct {
	X, Y, W, H float64
}

// Scaled multiplies every field by s.
func (r Rect) Scaled(s float64) Rect {
	return Rect{X: r.X * s, Y: r.Y * s, W: r.W * s, H: r.H * s}
}

// Pixels rounds r to an integer rectangle at least one pixel wide and tall.
func (r Rect) Pixels() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.W))
	y1 := int(math.Round(r.Y + r.H))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1)
}

// Fit is the result of a cover-fit of a source image into a window.
type Fit struct {
	// Src is the region of the source, in source pixels, that fills the window.
	Src Rect
	// Draw is where the whole uniformly scaled source lands in card units.
	// It always contains the window; the parts outside it are cropped.
	Draw Rect
	// Scale maps source pixels to card units on both axes.
	Scale float64
}

// CoverFit scales a srcW×srcH image uniformly so that it covers window with no
// letterboxing, cropping the overflowing axis symmetrically.
func CoverFit(srcW, srcH int, window Rect) Fit {
	if srcW <= 0 || srcH <= 0 || window.W <= 0 || window.H <= 0 {
		return Fit{}
	}
	sw, sh := float64(srcW), float64(srcH)
	srcRatio := sw / sh
	dstRatio := window.W / window.H

	f := Fit{Src: Rect{W: sw, H: sh}}
	if srcRatio > dstRatio {
		// wider than the window: full height, trim both sides
		f.Scale = window.H / sh
		f.Src.W = sh * dstRatio
		f.Src.X = (sw - f.Src.W) / 2
	} else {
		f.Scale = window.W / sw
		f.Src.H = sw / dstRatio
		f.Src.Y = (sh - f.Src.H) / 2
	}
	f.Draw = Rect{W: sw * f.Scale, H: sh * f.Scale}
	f.Draw.X = window.X + (window.W-f.Draw.W)/2
	f.Draw.Y = window.Y + (window.H-f.Draw.H)/2
	return f
}

// Layout fixes the geometry of an exported card. Sizes are card units; the
// raster is Scale times larger.
type Layout struct {
	Width, Height int
	Padding       int
	// AspectW:AspectH is the image window ratio.
	AspectW, AspectH int

	// CaptionGap is the distance from the window bottom to the caption centre.
	CaptionGap   float64
	CaptionSize  float64
	CaptionAngle float64 // degrees, counter-clockwise

	DateSize   float64
	DateInsetX float64 // from the right edge to the end of the date
	DateInsetY float64 // from the bottom edge to the date baseline

	Scale int
}

// DefaultLayout is a 240×340 card with a 4:5 window, exported at 3x.
func DefaultLayout() Layout {
	return Layout{
		Width:        240,
		Height:       340,
		Padding:      12,
		AspectW:      4,
		AspectH:      5,
		CaptionGap:   24,
		CaptionSize:  24,
		CaptionAngle: 1,
		DateSize:     10,
		DateInsetX:   12,
		DateInsetY:   10,
		Scale:        3,
	}
}

// Window is the image window in card units.
func (l Layout) Window() Rect {
	w := float64(l.Width - 2*l.Padding)
	return Rect{
		X: float64(l.Padding),
		Y: float64(l.Padding),
		W: w,
		H: w * float64(l.AspectH) / float64(l.AspectW),
	}
}

// Bounds is the output raster rectangle.
func (l Layout) Bounds() image.Rectangle {
	return image.Rect(0, 0, l.Width*l.Scale, l.Height*l.Scale)
}

// CaptionCenter is where the caption is centred, in card units.
func (l Layout) CaptionCenter() (x, y float64) {
	w := l.Window()
	return float64(l.Width) / 2, w.Y + w.H + l.CaptionGap
}

// DateAnchor is the right end of the date baseline, in card units.
func (l Layout) DateAnchor() (x, y float64) {
	return float64(l.Width) - l.DateInsetX, float64(l.Height) - l.DateInsetY
}
