// Package api exposes the growth-curve pipeline over HTTP. It is a thin
// layer: parsing and status codes here, all computation in app.Pipeline.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"gogrowth/adapters/export"
	"gogrowth/app"
	"gogrowth/domain/curve"
	"gogrowth/internal"
	"gogrowth/internal/band"
	"gogrowth/internal/config"
	"gogrowth/internal/errors"

	"github.com/gin-gonic/gin"
)

// Server wraps the pipeline behind a gin router.
type Server struct {
	router   *gin.Engine
	pipeline *app.Pipeline
	cfg      *config.Config
	logger   *internal.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(pipeline *app.Pipeline, cfg *config.Config, logger *internal.Logger) *Server {
	s := &Server{
		router:   gin.Default(),
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/dataset", s.handleLoadDataset)
		api.POST("/smooth", s.handleSmooth)
		api.GET("/curves", s.handleCurves)
		api.GET("/samples", s.handleSamples)
		api.POST("/samples/:sample/undo", s.handleUndo)
		api.GET("/samples/:sample/band", s.handleBand)
		api.GET("/logphases", s.handleLogPhases)
		api.PUT("/logphases/:sample", s.handleSetLogPhase)
		api.DELETE("/logphases/:sample", s.handleClearLogPhase)
		api.POST("/logphases/:sample/redetect", s.handleRedetect)
		api.GET("/parameters", s.handleParameters)
	}
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Run starts the server on the given address.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting API server on %s", addr)
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) handleLoadDataset(c *gin.Context) {
	var ds curve.Dataset
	if err := c.ShouldBindJSON(&ds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset payload: " + err.Error()})
		return
	}
	count := s.pipeline.LoadDataset(&ds)
	if count == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "dataset contains no usable wells"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": count})
}

func (s *Server) handleSmooth(c *gin.Context) {
	outcomes, err := s.pipeline.SmoothAll(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	detections := s.pipeline.DetectAll(false)
	c.JSON(http.StatusOK, gin.H{"smoothing": outcomes, "logPhases": detections})
}

func (s *Server) handleCurves(c *gin.Context) {
	samples, phases, source := s.pipeline.Snapshot()
	payload := export.BuildSmoothedPayload(samples, phases, source, s.pipeline.SmoothingInfo())
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleSamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"samples": s.pipeline.SampleNames()})
}

func (s *Server) handleUndo(c *gin.Context) {
	if err := s.pipeline.Undo(c.Param("sample")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleBand(c *gin.Context) {
	mode := band.Mode(c.DefaultQuery("mode", s.cfg.Band.Mode))
	b, err := s.pipeline.EstimateBand(c.Request.Context(), c.Param("sample"), mode)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if b == nil {
		// Fewer than two wells: no band available, which is not a fault.
		c.JSON(http.StatusOK, gin.H{"band": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"band": b})
}

func (s *Server) handleLogPhases(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logPhases": s.pipeline.Phases()})
}

type logPhaseRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s *Server) handleSetLogPhase(c *gin.Context) {
	var req logPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log-phase payload: " + err.Error()})
		return
	}
	if err := s.pipeline.SetManualPhase(c.Param("sample"), req.Start, req.End); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleClearLogPhase(c *gin.Context) {
	s.pipeline.ClearPhase(c.Param("sample"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRedetect(c *gin.Context) {
	force := c.Query("force") == "true"
	det, err := s.pipeline.DetectPhase(c.Param("sample"), force)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detection": det})
}

func (s *Server) handleParameters(c *gin.Context) {
	thresholds := s.cfg.Data.Thresholds
	if raw := c.Query("thresholds"); raw != "" {
		parsed, err := parseThresholds(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		thresholds = parsed
	}
	exp, err := s.pipeline.ComputeParameters(c.Request.Context(), thresholds)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func parseThresholds(raw string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.InvalidInput("thresholds", "unparsable value "+part)
		}
		out = append(out, f)
	}
	return out, nil
}

// respondError maps AppError codes onto HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeValidationError:
		status = http.StatusBadRequest
	case errors.CodeInsufficientData:
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}
