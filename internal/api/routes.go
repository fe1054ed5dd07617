// Package api exposes the pipeline over HTTP.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/menta2k/cardmask"
	"github.com/menta2k/cardmask/internal/logging"
	"github.com/menta2k/cardmask/pkg/processing"
)

// Server holds the handlers' collaborators
type Server struct {
	pipeline  *cardmask.Pipeline
	processor *processing.Processor
	logger    *slog.Logger
	quality   int
}

// NewServer creates the API over a pipeline
func NewServer(p *cardmask.Pipeline, logger *slog.Logger) *Server {
	return &Server{
		pipeline:  p,
		processor: processing.NewProcessor(),
		logger:    logging.NewComponentLogger(logger, "api"),
		quality:   90,
	}
}

// Router builds a gin engine with the API routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the handlers under /api
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/resolve", s.resolve)
		api.POST("/decklist", s.decklist)
		api.GET("/render", s.render)
		api.GET("/preview", s.preview)
	}
}
