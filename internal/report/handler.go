package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	httperr "github.com/nsd23387/nsd-platform-shell-sub005/internal/core/errors"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/period"
)

// StatusClientClosedRequest is written when the caller disconnects before the
// report is ready.
const StatusClientClosedRequest = 499

// RegisterRoutes registers the report API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/marketing/report", s.HandleReport)
}

// HandleReport handles GET /v1/marketing/report
// Query parameters: preset, start, end, period (legacy), timeseries
func (s *Service) HandleReport(c *gin.Context) {
	var query struct {
		Preset     string `form:"preset"`
		Start      string `form:"start"`
		End        string `form:"end"`
		Period     string `form:"period"`
		Timeseries string `form:"timeseries"`
	}

	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpBadRequestError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	includeTimeseries := false
	if query.Timeseries != "" {
		v, err := strconv.ParseBool(query.Timeseries)
		if err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpBadRequestError,
				Message:   "Invalid report parameters",
				Details:   fmt.Sprintf("invalid timeseries value %q (expected true or false)", query.Timeseries),
			})
			return
		}
		includeTimeseries = v
	}

	ctx := c.Request.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	sel := period.Selection{
		Preset: query.Preset,
		Start:  query.Start,
		End:    query.End,
		Legacy: query.Period,
	}

	rep, err := s.BuildReport(ctx, sel, includeTimeseries)
	if err != nil {
		switch {
		case errors.Is(err, period.ErrInvalidSelection):
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpBadRequestError,
				Message:   "Invalid report parameters",
				Details:   err.Error(),
			})
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, httperr.ErrorResponse{
				ErrorType: httperr.HttpTimeoutError,
				Message:   "Report timed out",
			})
		case errors.Is(err, context.Canceled):
			c.AbortWithStatus(StatusClientClosedRequest)
		default:
			// Storage errors can carry SQL and connection details.
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Failed to build report",
			})
		}
		return
	}

	c.JSON(http.StatusOK, rep)
}
