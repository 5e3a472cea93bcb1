package caption

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/youruser/polaroidwall/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	// DisabledCaption is returned when no caption provider is configured.
	DisabledCaption = "Just a moment..."
	// EmptyCaption replaces a blank model answer.
	EmptyCaption = "Memories..."

	Prompt = "Write a very short, nostalgic, or witty handwritten-style caption (max 4-5 words) for this photo. " +
		"Do not use quotes. If a person is in it, be complimentary. If it's an object, describe the vibe."

	defaultCacheExpiration = 30 * time.Minute
	cacheCleanupInterval   = time.Hour
)

// Caption outcomes, used as metric labels.
const (
	OutcomeGenerated = "generated"
	OutcomeCached    = "cached"
	OutcomeDisabled  = "disabled"
	OutcomeEmpty     = "empty"
	OutcomeFallback  = "fallback"
)

// Usage is the token usage of one provider call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is a caption and how it was obtained.
type Result struct {
	Text    string
	Usage   Usage
	Outcome string
}

// Billable reports whether the result came from a fresh provider call.
func (r Result) Billable() bool {
	return r.Outcome == OutcomeGenerated || r.Outcome == OutcomeEmpty
}

// Generator asks a vision-language model for a caption.
type Generator interface {
	Generate(ctx context.Context, image []byte, mimeType string) (Result, error)
}

// Session identifies who is billed for a caption. It is passed explicitly by
// the caller on every request.
type Session struct {
	SessionID string
	AgentID   string
}

// Valid reports whether both identifiers are present.
func (s Session) Valid() bool {
	return s.SessionID != "" && s.AgentID != ""
}

// Service produces captions with caching, rate limiting and fallbacks. The
// provider errors it absorbs never reach the caller; only a cancelled context
// is returned as an error.
type Service struct {
	gen        Generator
	cache      *cache.Cache
	limiter    *rate.Limiter
	now        func() time.Time
	dateLayout string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithRateInterval spaces provider calls at least d apart (burst 2).
func WithRateInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 2)
		}
	}
}

func WithCache(c *cache.Cache) Option { return func(s *Service) { s.cache = c } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithDateLayout sets the layout of the date used when the provider fails.
func WithDateLayout(layout string) Option { return func(s *Service) { s.dateLayout = layout } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService returns a Service over gen. A nil gen disables captioning.
func NewService(gen Generator, opts ...Option) *Service {
	s := &Service{
		gen:        gen,
		cache:      cache.New(defaultCacheExpiration, cacheCleanupInterval),
		limiter:    rate.NewLimiter(rate.Inf, 0),
		now:        time.Now,
		dateLayout: "1/2/2006",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s.gen != nil
}

// Caption returns a short caption for image.
func (s *Service) Caption(ctx context.Context, image []byte, mimeType string) (Result, error) {
	if s.gen == nil {
		s.metrics.IncCaption(OutcomeDisabled)
		return Result{Text: DisabledCaption, Outcome: OutcomeDisabled}, nil
	}

	key := cacheKey(image)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.IncCaption(OutcomeCached)
		return Result{Text: v.(string), Outcome: OutcomeCached}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("waiting for caption rate limit: %w", err)
	}

	res, err := s.gen.Generate(ctx, image, mimeType)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("generating caption: %w", ctx.Err())
		}
		s.logger.ErrorContext(ctx, "error generating caption", "error", err)
		s.metrics.IncCaption(OutcomeFallback)
		return Result{Text: s.now().Format(s.dateLayout), Outcome: OutcomeFallback}, nil
	}

	res.Text = Clean(res.Text)
	if res.Text == "" {
		res.Text = EmptyCaption
		res.Outcome = OutcomeEmpty
		s.metrics.IncCaption(OutcomeEmpty)
		return res, nil
	}
	res.Outcome = OutcomeGenerated
	s.cache.Set(key, res.Text, cache.DefaultExpiration)
	s.metrics.IncCaption(OutcomeGenerated)
	return res, nil
}

// Clean trims whitespace and the quotes models add despite being asked not to.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'“”")
	return strings.TrimSpace(text)
}

func cacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
