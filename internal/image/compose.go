package imagepkg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/youruser/polaroidwall/internal/metrics"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var (
	paperColor   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	windowColor  = color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff} // gray-900
	captionColor = color.NRGBA{R: 0x37, G: 0x41, B: 0x51, A: 0xff} // gray-700
	dateColor    = color.NRGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff} // gray-400
)

// glossAlpha is the overlay opacity at the two ends of the window diagonal.
const glossAlpha = 0.1

// CropMode selects how the window region is chosen from the source.
type CropMode string

const (
	CropCenter CropMode = "center"
	CropSmart  CropMode = "smart"
)

// Compositor renders instant-photo cards. It holds no per-card state and is
// safe for concurrent use.
type Compositor struct {
	layout     Layout
	fonts      *FontSource
	crop       CropMode
	quality    int
	dateLayout string
	location   *time.Location
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Compositor.
type Option func(*Compositor)

func WithLayout(l Layout) Option { return func(c *Compositor) { c.layout = l } }

func WithFonts(f *FontSource) Option { return func(c *Compositor) { c.fonts = f } }

func WithCropMode(m CropMode) Option { return func(c *Compositor) { c.crop = m } }

func WithQuality(q int) Option { return func(c *Compositor) { c.quality = q } }

// WithDateFormat sets the Go time layout and zone used for the card date.
func WithDateFormat(layout string, loc *time.Location) Option {
	return func(c *Compositor) {
		c.dateLayout = layout
		c.location = loc
	}
}

func WithLogger(l *slog.Logger) Option { return func(c *Compositor) { c.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Compositor) { c.metrics = m } }

// NewCompositor returns a Compositor with the default 240×340 layout, JPEG
// quality 90 and US-style short dates in local time.
func NewCompositor(opts ...Option) *Compositor {
	c := &Compositor{
		layout:     DefaultLayout(),
		crop:       CropCenter,
		quality:    90,
		dateLayout: "1/2/2006",
		location:   time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.fonts == nil {
		c.fonts = NewFontSource("", time.Second, c.logger)
	}
	return c
}

// Layout returns the card geometry in use.
func (c *Compositor) Layout() Layout {
	return c.layout
}

// Compose renders source as a card with caption and the date of createdAt and
// returns it JPEG-encoded. If the source cannot be decoded, or drawing fails
// after decoding, the source bytes are returned unchanged with a nil error.
// Only an encoding failure or a cancelled ctx is reported; the former wraps
// ErrSerialization.
func (c *Compositor) Compose(ctx context.Context, source []byte, caption string, createdAt time.Time) ([]byte, error) {
	start := time.Now()

	src, err := DecodeSource(source)
	if err != nil {
		c.logger.WarnContext(ctx, "source decode failed, exporting original", "error", err)
		c.metrics.ObserveCompose(start, metrics.OutcomeFallback)
		return source, nil
	}

	if err := ctx.Err(); err != nil {
		c.metrics.ObserveCompose(start, metrics.OutcomeFailed)
		return nil, err
	}

	card, err := c.render(ctx, src, caption, createdAt)
	if err != nil {
		c.logger.WarnContext(ctx, "card rendering failed, exporting original", "error", err)
		c.metrics.ObserveCompose(start, metrics.OutcomeFallback)
		return source, nil
	}

	if err := ctx.Err(); err != nil {
		c.metrics.ObserveCompose(start, metrics.OutcomeFailed)
		return nil, err
	}

	var buf bytes.Buffer
	if err := encodeJPEG(&buf, card, c.quality); err != nil {
		c.logger.ErrorContext(ctx, "card encode failed", "error", err)
		c.metrics.ObserveCompose(start, metrics.OutcomeFailed)
		return nil, err
	}
	c.metrics.ObserveCompose(start, metrics.OutcomeComposited)
	return buf.Bytes(), nil
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// render draws the card. Panics from drawing are turned into ErrRender so the
// caller can fall back to the original.
func (c *Compositor) render(ctx context.Context, src image.Image, caption string, createdAt time.Time) (card *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			card, err = nil, fmt.Errorf("%w: %v", ErrRender, r)
		}
	}()

	l := c.layout
	s := float64(l.Scale)
	card = imaging.New(l.Width*l.Scale, l.Height*l.Scale, paperColor)

	window := l.Window().Scaled(s).Pixels()
	draw.Draw(card, window, image.NewUniform(windowColor), image.Point{}, draw.Src)

	photo := c.fitPhoto(ctx, src, window.Dx(), window.Dy())
	draw.Draw(card, window, photo, photo.Bounds().Min, draw.Over)
	applyGloss(card, window)

	if caption != "" {
		maxWidth := l.Window().W * s
		face, ferr := c.fonts.FitCaptionFace(ctx, caption, l.CaptionSize*s, maxWidth)
		if ferr != nil {
			c.logger.WarnContext(ctx, "using fallback caption font", "error", ferr)
		}
		cx, cy := l.CaptionCenter()
		drawRotatedText(card, face, caption, captionColor, cx*s, cy*s, l.CaptionAngle)
	}

	dx, dy := l.DateAnchor()
	drawRightAligned(card, c.fonts.MonoFace(l.DateSize*s), c.formatDate(createdAt), dateColor, dx*s, dy*s)
	return card, nil
}

func (c *Compositor) formatDate(t time.Time) string {
	loc := c.location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(c.dateLayout)
}

// fitPhoto crops src to the window aspect and resizes it to exactly w×h.
func (c *Compositor) fitPhoto(ctx context.Context, src image.Image, w, h int) image.Image {
	b := src.Bounds()
	var region image.Rectangle
	if c.crop == CropSmart {
		r, err := smartRegion(src, w, h)
		if err != nil {
			c.logger.DebugContext(ctx, "smart crop failed, centring", "error", err)
		} else {
			region = r
		}
	}
	if region.Empty() {
		fit := CoverFit(b.Dx(), b.Dy(), Rect{W: float64(w), H: float64(h)})
		region = fit.Src.Pixels().Add(b.Min).Intersect(b)
	}
	return imaging.Resize(imaging.Crop(src, region), w, h, imaging.Lanczos)
}

// applyGloss blends a diagonal ramp over r: white at the top-left corner,
// clear at the centre line, black at the bottom-right corner. dst must be opaque.
func applyGloss(dst *image.NRGBA, r image.Rectangle) {
	w, h := float64(r.Dx()), float64(r.Dy())
	den := w*w + h*h
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dy := float64(y-r.Min.Y) + 0.5
		for x := r.Min.X; x < r.Max.X; x++ {
			dx := float64(x-r.Min.X) + 0.5
			t := (dx*w + dy*h) / den
			tone, alpha := 255.0, glossAlpha*(1-2*t)
			if t >= 0.5 {
				tone, alpha = 0, glossAlpha*(2*t-1)
			}
			i := dst.PixOffset(x, y)
			for k := 0; k < 3; k++ {
				v := float64(dst.Pix[i+k])*(1-alpha) + tone*alpha
				dst.Pix[i+k] = uint8(math.Round(v))
			}
		}
	}
}

// drawRotatedText draws text centred on (cx, cy), rotated angle degrees
// counter-clockwise about its centre.
func drawRotatedText(dst draw.Image, face font.Face, text string, col color.Color, cx, cy, angle float64) {
	m := face.Metrics()
	tw := font.MeasureString(face, text).Ceil()
	th := (m.Ascent + m.Descent).Ceil()
	margin := th/2 + 2

	layer := image.NewNRGBA(image.Rect(0, 0, tw+2*margin, th+2*margin))
	d := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(margin, margin+m.Ascent.Ceil()),
	}
	d.DrawString(text)

	rotated := imaging.Rotate(layer, angle, color.Transparent)
	rb := rotated.Bounds()
	at := image.Pt(
		int(math.Round(cx-float64(rb.Dx())/2)),
		int(math.Round(cy-float64(rb.Dy())/2)),
	)
	draw.Draw(dst, rb.Sub(rb.Min).Add(at), rotated, rb.Min, draw.Over)
}

// drawRightAligned draws text whose baseline ends at (x, y).
func drawRightAligned(dst draw.Image, face font.Face, text string, col color.Color, x, y float64) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
	}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(int(math.Round(x))) - width,
		Y: fixed.I(int(math.Round(y))),
	}
	d.DrawString(text)
}
