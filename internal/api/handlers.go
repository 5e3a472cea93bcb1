package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/youruser/polaroidwall/internal/caption"
	imagepkg "github.com/youruser/polaroidwall/internal/image"
	"github.com/youruser/polaroidwall/internal/metering"
	"github.com/youruser/polaroidwall/internal/wall"
)

const maxUploadBytes = 16 << 20

var (
	errNoImage      = errors.New("image is required")
	errBadTimestamp = errors.New("created_at must be RFC 3339 or unix milliseconds")
)

// imageRequest is the body shared by the image endpoints. Multipart requests
// carry the image as the "image" file and the other fields as form values.
type imageRequest struct {
	Image     string   `json:"image" form:"-"`
	ImageURL  string   `json:"image_url" form:"image_url"`
	Caption   string   `json:"caption" form:"caption"`
	CreatedAt string   `json:"created_at" form:"created_at"`
	SessionID string   `json:"session_id" form:"session_id"`
	AgentID   string   `json:"agent_id" form:"agent_id"`
	StartY    *float64 `json:"start_y" form:"start_y"`
}

// readImage binds the request and returns its image source as submitted: a
// data URI, the decoded bytes of a base64 string, an upload or a download.
// A string that is not valid base64 is returned verbatim so Compose can fall
// back on it.
func (s *Server) readImage(c *gin.Context) (imageRequest, []byte, error) {
	var req imageRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			return req, nil, err
		}
		fh, err := c.FormFile("image")
		if err == nil {
			f, err := fh.Open()
			if err != nil {
				return req, nil, err
			}
			defer f.Close()
			source, err := io.ReadAll(f)
			return req, source, err
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		return req, nil, err
	}

	switch {
	case req.ImageURL != "":
		source, err := imagepkg.DownloadSource(c.Request.Context(), req.ImageURL)
		return req, source, err
	case strings.HasPrefix(req.Image, "data:"):
		return req, []byte(req.Image), nil
	case req.Image != "":
		if raw, err := base64.StdEncoding.DecodeString(req.Image); err == nil {
			return req, raw, nil
		}
		return req, []byte(req.Image), nil
	}
	return req, nil, errNoImage
}

// decodableImage unwraps source and checks that it decodes, for endpoints
// that cannot do anything useful with a broken image.
func decodableImage(source []byte) ([]byte, string, error) {
	raw, mime, err := imagepkg.SourceBytes(source)
	if err != nil {
		return nil, "", err
	}
	if _, err := imagepkg.DecodeSource(raw); err != nil {
		return nil, "", err
	}
	return raw, mime, nil
}

// parseTimestamp accepts RFC 3339 or unix milliseconds; empty means now.
func parseTimestamp(v string, now func() time.Time) (time.Time, error) {
	if v == "" {
		return now(), nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errBadTimestamp
	}
	return t, nil
}

// ExportFilename names a downloaded card after its capture time.
func ExportFilename(createdAt time.Time, contentType string) string {
	ext := ".jpg"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	case "image/bmp":
		ext = ".bmp"
	}
	return fmt.Sprintf("polaroid-%d%s", createdAt.UnixMilli(), ext)
}

// sendExport writes a card as an attachment. The body may be the untouched
// source when composition fell back, so its type is sniffed.
func sendExport(c *gin.Context, out []byte, createdAt time.Time) {
	ct := http.DetectContentType(out)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, ExportFilename(createdAt, ct)))
	c.Data(http.StatusOK, ct, out)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"captions": s.captions.Enabled(),
		"metering": s.meter != nil,
	})
}

func (s *Server) themes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"themes": wall.Themes()})
}

// compose renders an uploaded photo as a card and returns it for download.
// A source that does not decode is returned unchanged.
func (s *Server) compose(c *gin.Context) {
	req, source, err := s.readImage(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if raw, _, err := imagepkg.SourceBytes(source); err == nil {
		source = raw
	}
	createdAt, err := parseTimestamp(req.CreatedAt, s.now)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := s.compositor.Compose(c.Request.Context(), source, req.Caption, createdAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	sendExport(c, out, createdAt)
}

// caption asks the caption provider about an uploaded photo and bills the
// session for fresh answers.
func (s *Server) caption(c *gin.Context) {
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
	res, err := s.captions.Caption(c.Request.Context(), raw, mime)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	s.reportUsage(c.Request.Context(), caption.Session{SessionID: req.SessionID, AgentID: req.AgentID}, res)
	c.JSON(http.StatusOK, gin.H{"caption": res.Text, "outcome": res.Outcome})
}

// reportUsage sends the cost of a fresh caption to the metering API. Failures
// are logged and never surface to the caller.
func (s *Server) reportUsage(ctx context.Context, sess caption.Session, res caption.Result) {
	if s.meter == nil || !sess.Valid() || !res.Billable() {
		return
	}
	cost := metering.CostFromTokens(res.Usage.InputTokens, res.Usage.OutputTokens, s.pricing)
	if cost == 0 {
		return
	}
	report := metering.NewReport(sess.SessionID, sess.AgentID, cost, s.now())
	if err := s.meter.Report(ctx, report); err != nil {
		s.logger.WarnContext(ctx, "usage report failed", "session", sess.SessionID, "error", err)
		s.metrics.IncMetering("error")
		return
	}
	s.metrics.IncMetering("ok")
	s.logger.DebugContext(ctx, "usage reported", "session", sess.SessionID, "cost", cost, "metering_id", report.MeteringID)
}

// metering relays a usage report to the metering API with the server's agent key.
func (s *Server) metering(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}
	if s.meter == nil {
		s.logger.Error("metering request rejected: no agent key configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error"})
		return
	}
	var r metering.Report
	if err := c.ShouldBindJSON(&r); err != nil || r.Validate() != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	resp, err := s.meter.Forward(c.Request.Context(), r)
	if err != nil {
		s.logger.Error("metering relay failed", "error", err)
		s.metrics.IncMetering("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if resp.Status < 200 || resp.Status > 299 {
		s.logger.Warn("metering api rejected report", "status", resp.Status, "body", string(resp.Body))
		s.metrics.IncMetering("rejected")
		c.Data(resp.Status, "application/json", resp.Body)
		return
	}
	s.metrics.IncMetering("ok")
	c.Data(http.StatusOK, "application/json", resp.Body)
}
