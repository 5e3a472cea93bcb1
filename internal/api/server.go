package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/youruser/polaroidwall/internal/caption"
	imagepkg "github.com/youruser/polaroidwall/internal/image"
	"github.com/youruser/polaroidwall/internal/metering"
	"github.com/youruser/polaroidwall/internal/metrics"
	"github.com/youruser/polaroidwall/internal/wall"
)

// Deps are the collaborators of the HTTP layer. Meter and Gatherer may be nil.
type Deps struct {
	Compositor     *imagepkg.Compositor
	Captions       *caption.Service
	Meter          *metering.Client
	Pricing        metering.Pricing
	Wall           *wall.Store
	PublicURL      string
	CaptionTimeout time.Duration
	Gatherer       prometheus.Gatherer
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Now            func() time.Time
}

// Server serves the photo booth API.
type Server struct {
	compositor     *imagepkg.Compositor
	captions       *caption.Service
	meter          *metering.Client
	pricing        metering.Pricing
	wall           *wall.Store
	publicURL      string
	captionTimeout time.Duration
	gatherer       prometheus.Gatherer
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time

	// background caption requests
	wg sync.WaitGroup
}

func NewServer(d Deps) *Server {
	s := &Server{
		compositor:     d.Compositor,
		captions:       d.Captions,
		meter:          d.Meter,
		pricing:        d.Pricing,
		wall:           d.Wall,
		publicURL:      d.PublicURL,
		captionTimeout: d.CaptionTimeout,
		gatherer:       d.Gatherer,
		metrics:        d.Metrics,
		logger:         d.Logger,
		now:            d.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.captionTimeout <= 0 {
		s.captionTimeout = 20 * time.Second
	}
	return s
}

// NewRouter returns a gin engine with recovery, request logging and all routes.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	r.MaxMultipartMemory = maxUploadBytes
	s.RegisterRoutes(r)
	return r
}

// Wait blocks until background caption requests have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}
