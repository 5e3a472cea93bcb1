package imagepkg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
)

var (
	parseGoItalic = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(goitalic.TTF) })
	parseGoMono   = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(gomono.TTF) })
)

// FontSource provides the caption and date faces. The caption font is read
// from disk in the background the first time it is needed; callers wait for
// it at most timeout and then fall back to Go Italic.
type FontSource struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger

	once    sync.Once
	ready   chan struct{}
	caption *opentype.Font
	err     error

	// load is swapped in tests to simulate a slow or broken font.
	load func(path string) (*opentype.Font, error)
}

// NewFontSource returns a FontSource for the TTF/OTF file at path. An empty
// path selects the bundled fallback face directly.
func NewFontSource(path string, timeout time.Duration, logger *slog.Logger) *FontSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FontSource{
		path:    path,
		timeout: timeout,
		logger:  logger,
		ready:   make(chan struct{}),
		load:    loadFontFile,
	}
}

func loadFontFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(data)
}

func (f *FontSource) start() {
	f.once.Do(func() {
		if f.path == "" {
			close(f.ready)
			return
		}
		go func() {
			defer close(f.ready)
			fnt, err := f.load(f.path)
			if err != nil {
				f.err = fmt.Errorf("loading %s: %w", f.path, err)
				return
			}
			f.caption = fnt
		}()
	})
}

// Preload starts loading the caption font without waiting for it.
func (f *FontSource) Preload() {
	f.start()
}

// Caption faces shrink in steps of captionShrink, down to minCaptionScale of
// the requested size.
const (
	captionShrink   = 0.92
	minCaptionScale = 0.4
)

// CaptionFace returns a face for the caption at size pixels. If the configured
// font is not ready within the timeout, or failed to load, it returns the
// fallback face together with an error wrapping ErrFontUnavailable.
func (f *FontSource) CaptionFace(ctx context.Context, size float64) (font.Face, error) {
	return f.FitCaptionFace(ctx, "", size, 0)
}

// FitCaptionFace is CaptionFace shrunk until text is at most maxWidth pixels
// wide. A maxWidth of zero or less disables fitting.
func (f *FontSource) FitCaptionFace(ctx context.Context, text string, size, maxWidth float64) (font.Face, error) {
	fnt, waitErr := f.captionFont(ctx)
	if fnt == nil {
		return basicfont.Face7x13, waitErr
	}

	minSize := size * minCaptionScale
	for {
		face, err := newFace(fnt, size)
		if err != nil {
			if waitErr == nil {
				waitErr = fmt.Errorf("%w: %v", ErrFontUnavailable, err)
			}
			return basicfont.Face7x13, waitErr
		}
		width := float64(font.MeasureString(face, text).Ceil())
		if maxWidth <= 0 || width <= maxWidth || size <= minSize {
			return face, waitErr
		}
		face.Close()
		size = max(size*captionShrink, minSize)
	}
}

// captionFont waits for the configured font and falls back to Go Italic. It
// returns nil only when the fallback cannot be parsed either.
func (f *FontSource) captionFont(ctx context.Context) (*opentype.Font, error) {
	f.start()

	var waitErr error
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()
	select {
	case <-f.ready:
	case <-timer.C:
		waitErr = fmt.Errorf("%w: not ready after %s", ErrFontUnavailable, f.timeout)
	case <-ctx.Done():
		waitErr = fmt.Errorf("%w: %v", ErrFontUnavailable, ctx.Err())
	}

	if waitErr == nil {
		if f.err != nil {
			waitErr = fmt.Errorf("%w: %v", ErrFontUnavailable, f.err)
		} else if f.caption != nil {
			return f.caption, nil
		}
	}

	fallback, err := parseGoItalic()
	if err != nil {
		return nil, waitErr
	}
	return fallback, waitErr
}

// MonoFace returns the monospace face used for dates.
func (f *FontSource) MonoFace(size float64) font.Face {
	mono, err := parseGoMono()
	if err != nil {
		f.logger.Warn("monospace font unavailable, using basic face", "error", err)
		return basicfont.Face7x13
	}
	face, err := newFace(mono, size)
	if err != nil {
		f.logger.Warn("monospace face failed, using basic face", "error", err)
		return basicfont.Face7x13
	}
	return face
}

func newFace(fnt *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
