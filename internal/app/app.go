// Package app wires configuration into the services shared by the HTTP
// server and the command line tool.
package app

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/youruser/polaroidwall/internal/api"
	"github.com/youruser/polaroidwall/internal/caption"
	"github.com/youruser/polaroidwall/internal/config"
	imagepkg "github.com/youruser/polaroidwall/internal/image"
	"github.com/youruser/polaroidwall/internal/metering"
	"github.com/youruser/polaroidwall/internal/metrics"
	"github.com/youruser/polaroidwall/internal/wall"
)

// Components are the configured services.
type Components struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Fonts      *imagepkg.FontSource
	Compositor *imagepkg.Compositor
	Captions   *caption.Service
	// Meter is nil when no agent key is configured.
	Meter *metering.Client
	Wall  *wall.Store
}

// Build creates every component from cfg. reg may be nil, in which case
// metrics are collected but never exported.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Components, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	m := metrics.New(reg)

	fonts := imagepkg.NewFontSource(cfg.Compose.CaptionFont, cfg.Compose.FontTimeout.Duration, logger)
	fonts.Preload()

	comp := imagepkg.NewCompositor(
		imagepkg.WithFonts(fonts),
		imagepkg.WithCropMode(imagepkg.CropMode(cfg.Compose.CropMode)),
		imagepkg.WithQuality(cfg.Compose.Quality),
		imagepkg.WithDateFormat(cfg.Compose.DateLayout, loc),
		imagepkg.WithLogger(logger),
		imagepkg.WithMetrics(m),
	)

	var gen caption.Generator
	if cfg.CaptionsEnabled() {
		g, err := caption.NewGeminiGenerator(ctx, caption.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			return nil, err
		}
		gen = g
	} else {
		logger.Warn("no Gemini API key configured, captions are disabled")
	}
	captions := caption.NewService(gen,
		caption.WithRateInterval(cfg.Gemini.RateInterval.Duration),
		caption.WithDateLayout(cfg.Compose.DateLayout),
		caption.WithLogger(logger),
		caption.WithMetrics(m),
	)

	var meter *metering.Client
	if cfg.MeteringEnabled() {
		meter = metering.NewClient(cfg.Metering.URL, cfg.Metering.AgentKey, nil)
	}

	return &Components{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Fonts:      fonts,
		Compositor: comp,
		Captions:   captions,
		Meter:      meter,
		Wall:       wall.NewStore(cfg.Wall.TTL.Duration),
	}, nil
}

// Pricing returns the configured token prices.
func (c *Components) Pricing() metering.Pricing {
	return metering.Pricing{
		InputPerMillion:  c.Config.Metering.InputRate,
		OutputPerMillion: c.Config.Metering.OutputRate,
	}
}

// Server returns the HTTP layer over the components.
func (c *Components) Server(gatherer prometheus.Gatherer) *api.Server {
	return api.NewServer(api.Deps{
		Compositor:     c.Compositor,
		Captions:       c.Captions,
		Meter:          c.Meter,
		Pricing:        c.Pricing(),
		Wall:           c.Wall,
		PublicURL:      c.Config.PublicURL,
		CaptionTimeout: c.Config.Gemini.Timeout.Duration,
		Gatherer:       gatherer,
		Metrics:        c.Metrics,
		Logger:         c.Logger,
	})
}
