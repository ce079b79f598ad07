package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/pkg/api"
)

func (s *Server) listPipelines(c *gin.Context) {
	names, err := s.engine.List(c.Request.Context())
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if names == nil {
		names = []string{}
	}

	c.JSON(http.StatusOK, api.PipelinesListResponse{
		Pipelines: names,
		Count:     len(names),
	})
}

func (s *Server) openPipeline(c *gin.Context) (*pipeline.Pipeline, bool) {
	p, err := s.engine.Open(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, statusFor(err), err)
		return nil, false
	}
	return p, true
}

func (s *Server) listSteps(c *gin.Context) {
	p, ok := s.openPipeline(c)
	if !ok {
		return
	}

	steps, err := p.Steps(c.Request.Context())
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if steps == nil {
		steps = []*api.Step{}
	}

	c.JSON(http.StatusOK, api.StepsListResponse{
		Pipeline: p.Name(),
		Steps:    steps,
		Count:    len(steps),
	})
}

func (s *Server) createStep(c *gin.Context) {
	var req api.CreateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeWrapped(c, http.StatusBadRequest, ErrInvalidJSON, err)
		return
	}

	p, ok := s.openPipeline(c)
	if !ok {
		return
	}

	st, err := p.CreateStep(c.Request.Context(), req.Command, req.Description)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusCreated, api.StepCreatedResponse{
		Pipeline: p.Name(),
		Step:     st,
	})
}

func (s *Server) getStep(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("stepID"), 10, 64)
	if err != nil {
		writeWrapped(c, http.StatusBadRequest, ErrInvalidStepID, err)
		return
	}

	p, ok := s.openPipeline(c)
	if !ok {
		return
	}

	st, err := p.Step(c.Request.Context(), api.StepID(id))
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) connectSteps(c *gin.Context) {
	var req api.ConnectStepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeWrapped(c, http.StatusBadRequest, ErrInvalidJSON, err)
		return
	}

	p, ok := s.openPipeline(c)
	if !ok {
		return
	}

	if err := p.ConnectSteps(c.Request.Context(), req.Source, req.Dest); err != nil {
		writeError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusCreated, api.MessageResponse{
		Message: "Steps connected",
	})
}

func (s *Server) deletePipeline(c *gin.Context) {
	if err := s.engine.Delete(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{
		Message: "Pipeline deleted",
	})
}
