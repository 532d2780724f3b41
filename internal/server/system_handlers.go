package server

import (
	"context"
	"net/http"
	"time"

	"judoclub/internal/api"
	"judoclub/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Sender interface {
	Send(ctx context.Context, to, name, subject, body string) error
}

// @Summary      Health check
// @Description  Reports 503 when the database or redis cannot be reached.
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Failure      503 {object} api.HealthResponse
// @Router       /health [get]
func Health(storage string, checks Checks) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := api.HealthResponse{Status: "ok", Storage: storage}
		code := http.StatusOK

		if checks.Database != nil {
			if err := checks.Database(ctx); err != nil {
				logger.Warn("health: database unreachable", "error", err)
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		if checks.Redis != nil {
			ok := checks.Redis(ctx) == nil
			resp.Redis = &ok
			if !ok {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		c.JSON(code, resp)
	}
}

// @Summary      Queue a test email
// @Tags         admin,system
// @Security     BearerAuth
// @Produce      json
// @Param        email query string true "Recipient email"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/test-email [post]
func TestEmail(sender Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		to := c.Query("email")
		if to == "" {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email parameter required"})
			return
		}

		if err := sender.Send(c.Request.Context(), to, "Test User", "Test email from Judo Club", "Email is working!"); err != nil {
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, api.MessageResponse{Message: "Email queued successfully"})
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
