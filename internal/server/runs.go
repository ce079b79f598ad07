package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/relay/internal/pipeline"
)

func (s *Server) runPipeline(c *gin.Context) {
	p, ok := s.openPipeline(c)
	if !ok {
		return
	}

	rep, err := p.RunWithReport(c.Request.Context())
	if err == nil || errors.Is(err, pipeline.ErrStepFailed) {
		c.JSON(http.StatusOK, rep)
		return
	}
	writeError(c, statusFor(err), err)
}

func (s *Server) getReport(c *gin.Context) {
	if s.reports == nil {
		writeError(c, http.StatusNotFound, ErrNoArchive)
		return
	}

	rep, err := s.reports.Get(c.Request.Context(), c.Param("snapshot"))
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
