package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/youruser/polaroidwall/internal/caption"
	imagepkg "github.com/youruser/polaroidwall/internal/image"
	"github.com/youruser/polaroidwall/internal/wall"
)

// FallbackCaption is pinned to a photo whose caption request failed.
const FallbackCaption = "Start of something new"

func (s *Server) wallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wall.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, wall.ErrUnknownTheme):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("wall request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}

func (s *Server) listPhotos(c *gin.Context) {
	opt := wall.FilterOptions{
		FreeWords:     c.Query("q"),
		CaptionedOnly: c.Query("captioned") == "true",
	}
	for param, dst := range map[string]*time.Time{"since": &opt.Since, "until": &opt.Until} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, errors.New(param+" must be RFC 3339"))
			return
		}
		*dst = t
	}

	session := c.Param("session")
	out := wall.Filter(s.wall.List(session), opt)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(out),
		"theme":  s.wall.Theme(session),
		"photos": out,
	})
}

// addPhoto pins a new photo and captions it in the background. The photo is
// returned immediately with an empty caption.
func (s *Server) addPhoto(c *gin.Context) {
	req, source, err := s.readImage(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	raw, mime, err := decodableImage(source)
	if err != nil {
		badRequest(c, err)
		return
	}
	var startY float64
	if req.StartY != nil {
		startY = *req.StartY
	}

	session := c.Param("session")
	p := s.wall.Add(session, raw, mime, startY)
	s.logger.Info("photo pinned", "session", session, "photo", p.ID, "bytes", len(raw))
	s.captionInBackground(session, p, caption.Session{SessionID: req.SessionID, AgentID: req.AgentID})
	c.JSON(http.StatusCreated, p)
}

func (s *Server) captionInBackground(session string, p wall.Photo, billing caption.Session) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.captionTimeout)
		defer cancel()

		text := FallbackCaption
		res, err := s.captions.Caption(ctx, p.Image, p.MimeType)
		if err != nil {
			s.logger.Warn("caption request failed", "photo", p.ID, "error", err)
		} else {
			text = res.Text
			s.reportUsage(ctx, billing, res)
		}
		if _, err := s.wall.SetCaption(session, p.ID, text); err != nil {
			s.logger.Debug("photo gone before caption arrived", "photo", p.ID)
		}
	}()
}

func (s *Server) movePhoto(c *gin.Context) {
	var req struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.X == nil || req.Y == nil {
		badRequest(c, errors.New("x and y are required"))
		return
	}
	p, err := s.wall.Move(c.Param("session"), c.Param("id"), *req.X, *req.Y)
	if err != nil {
		s.wallError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deletePhoto(c *gin.Context) {
	if err := s.wall.Delete(c.Param("session"), c.Param("id")); err != nil {
		s.wallError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// exportPhoto renders a pinned photo as a card with its current caption.
func (s *Server) exportPhoto(c *gin.Context) {
	p, err := s.wall.Get(c.Param("session"), c.Param("id"))
	if err != nil {
		s.wallError(c, err)
		return
	}
	out, err := s.compositor.Compose(c.Request.Context(), p.Image, p.Caption, p.CreatedAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	sendExport(c, out, p.CreatedAt)
}

// photoQR returns a QR code pointing at the photo's export URL.
func (s *Server) photoQR(c *gin.Context) {
	session, id := c.Param("session"), c.Param("id")
	if _, err := s.wall.Get(session, id); err != nil {
		s.wallError(c, err)
		return
	}
	size := imagepkg.DefaultQRSize
	if v := c.Query("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			size = n
		}
	}
	b, err := imagepkg.GenerateQRPNG(s.baseURL(c)+"/api/walls/"+session+"/photos/"+id+"/export", size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

func (s *Server) baseURL(c *gin.Context) string {
	if s.publicURL != "" {
		return strings.TrimRight(s.publicURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}

func (s *Server) getTheme(c *gin.Context) {
	c.JSON(http.StatusOK, s.wall.Theme(c.Param("session")))
}

func (s *Server) setTheme(c *gin.Context) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	th, err := s.wall.SetTheme(c.Param("session"), req.Theme)
	if err != nil {
		s.wallError(c, err)
		return
	}
	c.JSON(http.StatusOK, th)
}
