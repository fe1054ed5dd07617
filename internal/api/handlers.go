package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/menta2k/cardmask"
	"github.com/menta2k/cardmask/pkg/decklist"
	"github.com/menta2k/cardmask/pkg/processing"
	"github.com/menta2k/cardmask/pkg/types"
)

const maxDecklistBytes = 1 << 20

// CardInfo describes a resolved printing and its frame style
type CardInfo struct {
	Requested string       `json:"requested"`
	Name      string       `json:"name,omitempty"`
	Set       string       `json:"set,omitempty"`
	ID        string       `json:"id,omitempty"`
	Border    types.Border `json:"border,omitempty"`
	Style     string       `json:"style,omitempty"`
	Regions   []RegionInfo `json:"regions,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// RegionInfo is one redaction band in working-space pixels
type RegionInfo struct {
	Top     int  `json:"top"`
	Bottom  int  `json:"bottom"`
	Left    int  `json:"left"`
	Right   int  `json:"right"`
	Inpaint bool `json:"inpaint"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cardmask.GetVersion()})
}

func (s *Server) resolve(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	card, err := s.pipeline.Resolve(name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.describe(name, card))
}

// decklist resolves every name of a plain-text decklist
func (s *Server) decklist(c *gin.Context) {
	names, err := decklist.Parse(http.MaxBytesReader(c.Writer, c.Request.Body, maxDecklistBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out := make([]CardInfo, 0, len(names))
	for _, name := range names {
		card, err := s.pipeline.Resolve(name)
		if err != nil {
			out = append(out, CardInfo{Requested: name, Error: err.Error()})
			continue
		}
		out = append(out, s.describe(name, card))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "cards": out})
}

func (s *Server) render(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	format := processing.NormalizeFormat(c.DefaultQuery("format", processing.FormatPNG))

	card, img, err := s.pipeline.Render(c.Request.Context(), name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	data, err := s.processor.EncodeBytes(img, format, s.quality)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Card-Set", card.SetCode())
	c.Header("X-Card-Id", card.ID())
	c.Data(http.StatusOK, contentType(format), data)
}

// preview draws the redaction bands over the prepared scan
func (s *Server) preview(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	card, err := s.pipeline.Resolve(name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	raw, err := s.pipeline.Scan(c.Request.Context(), card)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	overlay, err := s.pipeline.Preview(card, raw)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	data, err := s.processor.EncodeBytes(overlay, processing.FormatPNG, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) describe(name string, card *types.CardRecord) CardInfo {
	style := s.pipeline.Style(card)
	info := CardInfo{
		Requested: name,
		Name:      card.Name,
		Set:       card.SetCode(),
		ID:        card.ID(),
		Border:    card.Border(),
		Style:     style.Tag,
	}
	for _, r := range style.Regions {
		info.Regions = append(info.Regions, RegionInfo{
			Top: r.Top, Bottom: r.Bottom, Left: r.Left, Right: r.Right, Inpaint: r.Inpaint,
		})
	}
	return info
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cardmask.ErrNameNotResolved):
		return http.StatusNotFound
	case errors.Is(err, cardmask.ErrImageUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, cardmask.ErrRedactionFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func contentType(format string) string {
	switch format {
	case processing.FormatJPEG:
		return "image/jpeg"
	case processing.FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}
