package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resonatehq/resmon/internal/app/subsystems/api/service"
)

// CREATE

func (s *server) createMonitor(c *gin.Context) {
	var header service.Header
	if err := c.ShouldBindHeader(&header); err != nil {
		s.error(c, service.RequestValidationError(err))
		return
	}

	var body *service.CreateMonitorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.error(c, service.RequestValidationError(err))
		return
	}

	if _, err := s.service.CreateMonitor(c.Request.Context(), &header, body); err != nil {
		s.error(c, err)
		return
	}

	// admission is acknowledged with an empty body, whether the monitor
	// was created or already existed
	c.Status(http.StatusOK)
}

// READ

func (s *server) readMonitor(c *gin.Context) {
	var header service.Header
	if err := c.ShouldBindHeader(&header); err != nil {
		s.error(c, service.RequestValidationError(err))
		return
	}

	m, err := s.service.ReadMonitor(c.Request.Context(), c.Param("key"), &header)
	if err != nil {
		s.error(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// SEARCH

func (s *server) searchMonitors(c *gin.Context) {
	var header service.Header
	if err := c.ShouldBindHeader(&header); err != nil {
		s.error(c, service.RequestValidationError(err))
		return
	}

	var params service.SearchMonitorsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		s.error(c, service.RequestValidationError(err))
		return
	}

	res, err := s.service.SearchMonitors(c.Request.Context(), &header, &params)
	if err != nil {
		s.error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cursor":   res.Cursor,
		"monitors": res.Monitors,
	})
}

// CHECK

func (s *server) checkMonitor(c *gin.Context) {
	var header service.Header
	if err := c.ShouldBindHeader(&header); err != nil {
		s.error(c, service.RequestValidationError(err))
		return
	}

	if err := s.service.CheckMonitor(c.Request.Context(), c.Param("key"), &header); err != nil {
		s.error(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// DELETE

func (s *server) deleteMonitor(c *gin.Context) {
	var header service.Header
	if err := c.ShouldBindHeader(&header); err != nil {
		s.error(c, service.RequestValidationError(err))
		return
	}

	if err := s.service.DeleteMonitor(c.Request.Context(), c.Param("key"), &header); err != nil {
		s.error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
