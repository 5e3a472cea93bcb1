package imagepkg

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youruser/polaroidwall/internal/logging"
	"github.com/youruser/polaroidwall/internal/metrics"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

var goldenHour = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestCompositor(opts ...Option) *Compositor {
	base := []Option{
		WithDateFormat("1/2/2006", time.UTC),
		WithLogger(logging.Discard()),
	}
	return NewCompositor(append(base, opts...)...)
}

// striped returns a w×h image whose first and last `edge` columns (or rows when
// vertical) are edgeColor and the rest is mid.
func striped(w, h, edge int, vertical bool, edgeColor, mid color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos, length := x, w
			if vertical {
				pos, length = y, h
			}
			if pos < edge || pos >= length-edge {
				img.SetNRGBA(x, y, edgeColor)
			} else {
				img.SetNRGBA(x, y, mid)
			}
		}
	}
	return img
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	return striped(w, h, 0, false, c, c)
}

func encodeJPEGForTest(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func decodeJPEGForTest(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func isPaper(c color.NRGBA) bool {
	return c == paperColor
}

// inkBounds returns the bounding box of non-paper pixels of card within r.
func inkBounds(card *image.NRGBA, r image.Rectangle) image.Rectangle {
	var box image.Rectangle
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !isPaper(card.NRGBAAt(x, y)) {
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return box
}

// Regions of the default 3x card, in raster pixels.
var (
	captionRegion = image.Rect(0, 856, 720, 955)
	dateRegion    = image.Rect(360, 955, 720, 1000)
)

func TestCompose_OutputDimensions(t *testing.T) {
	c := newTestCompositor()
	sizes := [][2]int{{1600, 1200}, {480, 640}, {300, 300}, {50, 900}, {900, 40}}
	for _, sz := range sizes {
		src := encodeJPEGForTest(t, solid(sz[0], sz[1], green))

		out, err := c.Compose(context.Background(), src, "golden hour", goldenHour)
		require.NoError(t, err)

		img := decodeJPEGForTest(t, out)
		assert.Equal(t, c.Layout().Bounds(), img.Bounds(), "source %dx%d", sz[0], sz[1])
	}
}

func TestCompose_Idempotent(t *testing.T) {
	c := newTestCompositor()
	src := encodeJPEGForTest(t, striped(1600, 1200, 320, false, red, green))

	first, err := c.Compose(context.Background(), src, "golden hour", goldenHour)
	require.NoError(t, err)
	second, err := c.Compose(context.Background(), src, "golden hour", goldenHour)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second))
}

func TestCompose_DecodeFailureReturnsSource(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newTestCompositor(WithMetrics(m))

	valid := encodeJPEGForTest(t, solid(64, 64, green))
	for name, src := range map[string][]byte{
		"garbage":   []byte("definitely not an image"),
		"truncated": valid[:len(valid)/3],
		"empty":     {},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := c.Compose(context.Background(), src, "caption", goldenHour)
			require.NoError(t, err)
			assert.Equal(t, src, out)
		})
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ComposeTotal.WithLabelValues(metrics.OutcomeFallback)))
}

func TestCompose_DataURISource(t *testing.T) {
	c := newTestCompositor()
	raw := encodeJPEGForTest(t, solid(640, 480, blue))
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	out, err := c.Compose(context.Background(), []byte(uri), "", goldenHour)
	require.NoError(t, err)
	assert.Equal(t, c.Layout().Bounds(), decodeJPEGForTest(t, out).Bounds())
}

func TestCompose_SlowFontStillComposes(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	fonts := NewFontSource("caveat.ttf", 20*time.Millisecond, logging.Discard())
	fonts.load = blockingLoad(block)

	c := newTestCompositor(WithFonts(fonts))
	src := encodeJPEGForTest(t, solid(400, 500, green))

	done := make(chan struct{})
	var out []byte
	var err error
	go func() {
		defer close(done)
		out, err = c.Compose(context.Background(), src, "still here", goldenHour)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("compose waited on the font without a bound")
	}
	require.NoError(t, err)
	assert.Equal(t, c.Layout().Bounds(), decodeJPEGForTest(t, out).Bounds())
}

func TestRender_EmptyCaptionDrawsOnlyDate(t *testing.T) {
	c := newTestCompositor()

	card, err := c.render(context.Background(), solid(480, 640, green), "", goldenHour)
	require.NoError(t, err)

	assert.True(t, inkBounds(card, captionRegion).Empty(), "caption region must be blank")
	assert.False(t, inkBounds(card, dateRegion).Empty(), "date must be drawn")
}

func TestRender_CaptionCentred(t *testing.T) {
	c := newTestCompositor()

	card, err := c.render(context.Background(), solid(1600, 1200, green), "golden hour", goldenHour)
	require.NoError(t, err)

	box := inkBounds(card, captionRegion)
	require.False(t, box.Empty(), "caption must be drawn")
	centre := (box.Min.X + box.Max.X) / 2
	// italic slant shifts the ink box slightly right of the advance box
	assert.InDelta(t, 360, centre, 15)
	assert.False(t, inkBounds(card, dateRegion).Empty(), "date must be drawn")
}

func TestRender_DateRightAligned(t *testing.T) {
	c := newTestCompositor()

	card, err := c.render(context.Background(), solid(300, 300, green), "", goldenHour)
	require.NoError(t, err)

	box := inkBounds(card, dateRegion)
	require.False(t, box.Empty())
	assert.LessOrEqual(t, box.Max.X, 228*3+1)
	assert.Greater(t, box.Max.X, 228*3-10)
}

func TestRender_WideSourceCroppedSymmetrically(t *testing.T) {
	c := newTestCompositor()
	// 320px red bars on both sides fall outside the 960px centre crop.
	src := striped(1600, 1200, 320, false, red, green)

	card, err := c.render(context.Background(), src, "", goldenHour)
	require.NoError(t, err)

	window := c.Layout().Window().Scaled(3).Pixels()
	midY := (window.Min.Y + window.Max.Y) / 2
	for _, x := range []int{window.Min.X + 1, window.Max.X - 2} {
		px := card.NRGBAAt(x, midY)
		assert.Greater(t, int(px.G), 200, "x=%d", x)
		assert.Less(t, int(px.R), 40, "x=%d", x)
	}
}

func TestRender_TallSourceCroppedSymmetrically(t *testing.T) {
	c := newTestCompositor()
	// 480x640 keeps 600 rows; the 20px blue bands top and bottom are cut.
	src := striped(480, 640, 20, true, blue, green)

	card, err := c.render(context.Background(), src, "", goldenHour)
	require.NoError(t, err)

	window := c.Layout().Window().Scaled(3).Pixels()
	midX := (window.Min.X + window.Max.X) / 2
	for _, y := range []int{window.Min.Y + 1, window.Max.Y - 2} {
		px := card.NRGBAAt(midX, y)
		assert.Greater(t, int(px.G), 200, "y=%d", y)
		assert.Less(t, int(px.B), 40, "y=%d", y)
	}
}

func TestRender_WindowFullyCovered(t *testing.T) {
	c := newTestCompositor()

	for _, src := range []image.Image{solid(4000, 10, white), solid(10, 4000, white), solid(7, 7, white)} {
		card, err := c.render(context.Background(), src, "", goldenHour)
		require.NoError(t, err)

		window := c.Layout().Window().Scaled(3).Pixels()
		for y := window.Min.Y; y < window.Max.Y; y += 7 {
			for x := window.Min.X; x < window.Max.X; x += 7 {
				px := card.NRGBAAt(x, y)
				// gloss darkens by at most 10%; the backing is far darker
				require.Greater(t, int(px.R), 200, "backing visible at %d,%d", x, y)
			}
		}
	}
}

func TestRender_SmartCropCoversWindow(t *testing.T) {
	c := newTestCompositor(WithCropMode(CropSmart))

	card, err := c.render(context.Background(), striped(1600, 1200, 320, false, red, green), "", goldenHour)
	require.NoError(t, err)
	assert.Equal(t, c.Layout().Bounds(), card.Bounds())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeJPEG_Failure(t *testing.T) {
	err := encodeJPEG(failingWriter{}, solid(16, 16, green), 90)
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestFormatDate(t *testing.T) {
	c := newTestCompositor()
	assert.Equal(t, "3/15/2024", c.formatDate(goldenHour))

	tokyo := time.FixedZone("JST", 9*3600)
	c = newTestCompositor(WithDateFormat("2006/01/02", tokyo))
	assert.Equal(t, "2024/03/16", c.formatDate(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)))
}

func TestRender_ShortCaptionsStayOnCard(t *testing.T) {
	c := newTestCompositor()
	l := c.Layout()
	margin := l.Padding * l.Scale / 2

	for _, caption := range []string{
		"Start of something new",
		"Sunset smiles with best friends",
		"WWWW MMMM WWWW MMMM WWWW",
	} {
		t.Run(caption, func(t *testing.T) {
			card, err := c.render(context.Background(), solid(1600, 1200, green), caption, goldenHour)
			require.NoError(t, err)

			box := inkBounds(card, captionRegion)
			require.False(t, box.Empty(), "caption must be drawn")
			assert.True(t, inkBounds(card, image.Rect(0, captionRegion.Min.Y, 1, captionRegion.Max.Y)).Empty(), "ink on first column")
			assert.True(t, inkBounds(card, image.Rect(719, captionRegion.Min.Y, 720, captionRegion.Max.Y)).Empty(), "ink on last column")
			assert.GreaterOrEqual(t, box.Min.X, margin)
			assert.LessOrEqual(t, box.Max.X, l.Width*l.Scale-margin)
		})
	}
}

// meanInkY is the average row of non-paper pixels of card in columns [x0, x1)
// of r.
func meanInkY(card *image.NRGBA, r image.Rectangle, x0, x1 int) float64 {
	var sum, n float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := x0; x < x1; x++ {
			if !isPaper(card.NRGBAAt(x, y)) {
				sum += float64(y)
				n++
			}
		}
	}
	return sum / n
}

func TestRender_CaptionTiltsCounterClockwise(t *testing.T) {
	// x-height letters only, so the untilted ink sits level
	const caption = "a new sun over warm seas"

	tilt := func(angle float64) (image.Rectangle, float64) {
		l := DefaultLayout()
		l.CaptionAngle = angle
		c := newTestCompositor(WithLayout(l))
		card, err := c.render(context.Background(), solid(1600, 1200, green), caption, goldenHour)
		require.NoError(t, err)

		box := inkBounds(card, captionRegion)
		require.False(t, box.Empty())
		fifth := box.Dx() / 5
		left := meanInkY(card, captionRegion, box.Min.X, box.Min.X+fifth)
		right := meanInkY(card, captionRegion, box.Max.X-fifth, box.Max.X)
		return box, left - right
	}

	levelBox, levelDrop := tilt(0)
	tiltedBox, tiltedDrop := tilt(1)

	assert.InDelta(t, 0, levelDrop, 2, "untilted caption is level")
	assert.Greater(t, tiltedDrop, 4.0, "left end sits lower than the right end")
	assert.Greater(t, tiltedBox.Dy(), levelBox.Dy())
}

func TestCompose_CancelledContext(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := newTestCompositor(WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := c.Compose(ctx, encodeJPEGForTest(t, solid(64, 64, green)), "late", goldenHour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComposeTotal.WithLabelValues(metrics.OutcomeFailed)))

	// an undecodable source still falls back
	out, err = c.Compose(ctx, []byte("nope"), "late", goldenHour)
	require.NoError(t, err)
	assert.Equal(t, []byte("nope"), out)
}
