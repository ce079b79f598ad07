package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/relay"
	"github.com/kode4food/relay/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.engine.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, api.HealthResponse{
			Service: relay.Name,
			Status:  api.HealthStatusUnhealthy,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, api.HealthResponse{
		Service: relay.Name,
		Status:  api.HealthStatusHealthy,
	})
}
