package imagepkg

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoverFit_WideSource(t *testing.T) {
	window := DefaultLayout().Window()
	fit := CoverFit(1600, 1200, window)

	assert.InDelta(t, 0.225, fit.Scale, 1e-9)
	assert.InDelta(t, 360, fit.Draw.W, 1e-9)
	assert.InDelta(t, 270, fit.Draw.H, 1e-9)
	assert.InDelta(t, -60, fit.Draw.X, 1e-9)
	assert.InDelta(t, 12, fit.Draw.Y, 1e-9)

	assert.InDelta(t, 320, fit.Src.X, 1e-9)
	assert.InDelta(t, 0, fit.Src.Y, 1e-9)
	assert.InDelta(t, 960, fit.Src.W, 1e-9)
	assert.InDelta(t, 1200, fit.Src.H, 1e-9)
}

func TestCoverFit_TallSource(t *testing.T) {
	window := DefaultLayout().Window()
	fit := CoverFit(480, 640, window)

	assert.InDelta(t, 0.45, fit.Scale, 1e-9)
	assert.InDelta(t, 0, fit.Src.X, 1e-9)
	assert.InDelta(t, 480, fit.Src.W, 1e-9)
	assert.InDelta(t, 600, fit.Src.H, 1e-9)
	assert.InDelta(t, 20, fit.Src.Y, 1e-9)
	assert.InDelta(t, 216, fit.Draw.W, 1e-9)
	assert.InDelta(t, 288, fit.Draw.H, 1e-9)
	assert.InDelta(t, 3, fit.Draw.Y, 1e-9)
}

func TestCoverFit_Properties(t *testing.T) {
	window := Rect{X: 12, Y: 12, W: 216, H: 270}
	dstRatio := window.W / window.H
	sizes := [][2]int{
		{1600, 1200}, {1280, 720}, {480, 640}, {1000, 1000}, {400, 500},
		{4000, 10}, {10, 4000}, {1, 1}, {333, 777}, {1920, 1081},
	}
	for _, sz := range sizes {
		w, h := sz[0], sz[1]
		fit := CoverFit(w, h, window)
		srcRatio := float64(w) / float64(h)

		if srcRatio > dstRatio {
			assert.InDelta(t, float64(h), fit.Src.H, 1e-9, "%dx%d full height", w, h)
			assert.InDelta(t, float64(w), 2*fit.Src.X+fit.Src.W, 1e-9, "%dx%d symmetric crop", w, h)
		} else {
			assert.InDelta(t, float64(w), fit.Src.W, 1e-9, "%dx%d full width", w, h)
			assert.InDelta(t, float64(h), 2*fit.Src.Y+fit.Src.H, 1e-9, "%dx%d symmetric crop", w, h)
		}

		// no distortion, no letterboxing
		assert.InDelta(t, dstRatio, fit.Src.W/fit.Src.H, 1e-9)
		assert.InDelta(t, fit.Draw.W/fit.Draw.H, srcRatio, 1e-9)
		assert.LessOrEqual(t, fit.Draw.X, window.X+1e-9)
		assert.LessOrEqual(t, fit.Draw.Y, window.Y+1e-9)
		assert.GreaterOrEqual(t, fit.Draw.X+fit.Draw.W, window.X+window.W-1e-9)
		assert.GreaterOrEqual(t, fit.Draw.Y+fit.Draw.H, window.Y+window.H-1e-9)
	}
}

func TestCoverFit_Degenerate(t *testing.T) {
	assert.Equal(t, Fit{}, CoverFit(0, 100, Rect{W: 10, H: 10}))
	assert.Equal(t, Fit{}, CoverFit(100, 100, Rect{}))
}

func TestRect_Pixels(t *testing.T) {
	assert.Equal(t, image.Rect(320, 0, 1280, 1200), Rect{X: 320, W: 960, H: 1200}.Pixels())
	assert.Equal(t, image.Rect(0, 0, 1, 1), Rect{X: 0.1, W: 0.2, H: 0.1}.Pixels())
}

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()

	assert.Equal(t, Rect{X: 12, Y: 12, W: 216, H: 270}, l.Window())
	assert.Equal(t, image.Rect(0, 0, 720, 1020), l.Bounds())

	cx, cy := l.CaptionCenter()
	assert.Equal(t, 120.0, cx)
	assert.Equal(t, 306.0, cy)

	dx, dy := l.DateAnchor()
	assert.Equal(t, 228.0, dx)
	assert.Equal(t, 330.0, dy)
}
