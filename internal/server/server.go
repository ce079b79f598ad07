package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/relay/internal/archive"
	"github.com/kode4food/relay/internal/events"
	"github.com/kode4food/relay/internal/executor"
	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/internal/store"
	"github.com/kode4food/relay/pkg/api"
)

type (
	// Server implements the HTTP API server for relay
	Server struct {
		engine  *pipeline.Engine
		hub     *events.Hub
		reports ReportReader
		sockets map[*Client]struct{}
		mu      sync.Mutex
	}

	// ReportReader reads archived run reports
	ReportReader interface {
		Get(ctx context.Context, snapshot string) (*api.RunReport, error)
	}
)

var (
	ErrInvalidJSON   = errors.New("invalid JSON request")
	ErrInvalidStepID = errors.New("invalid step id")
	ErrNoArchive     = errors.New("run archive not configured")
)

// NewServer creates a new HTTP API server. The report reader may be nil
// when run reports are not archived
func NewServer(
	eng *pipeline.Engine, hub *events.Hub, reports ReportReader,
) *Server {
	return &Server{
		engine:  eng,
		hub:     hub,
		reports: reports,
		sockets: map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// Pipeline endpoints
	router.GET("/pipeline", s.listPipelines)
	p := router.Group("/pipeline/:name")
	{
		p.GET("/step", s.listSteps)
		p.POST("/step", s.createStep)
		p.GET("/step/:stepID", s.getStep)
		p.POST("/edge", s.connectSteps)
		p.POST("/run", s.runPipeline)
		p.DELETE("", s.deletePipeline)
	}

	// Run reports
	router.GET("/run/:snapshot", s.getReport)

	// WebSocket
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

func writeWrapped(c *gin.Context, status int, kind, err error) {
	writeError(c, status, fmt.Errorf("%w: %w", kind, err))
}

func statusFor(err error) int {
	switch {
	case pipeline.IsStructureError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrStepNotFound),
		errors.Is(err, store.ErrPipelineNotFound),
		errors.Is(err, archive.ErrReportNotFound),
		errors.Is(err, ErrNoArchive):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNameEmpty),
		errors.Is(err, api.ErrCommandEmpty),
		errors.Is(err, ErrInvalidStepID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNameCollision):
		return http.StatusConflict
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, executor.ErrExecution),
		errors.Is(err, executor.ErrTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
