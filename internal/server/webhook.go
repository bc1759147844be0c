package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	conversationdomain "github.com/mentorly/sessionmeter/internal/conversation/domain"
	webhookdomain "github.com/mentorly/sessionmeter/internal/webhook/domain"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes caps a single delivery. Provider payloads are a few
// kilobytes even with a full transcript property bag.
const maxWebhookBodyBytes = 1 << 20

// IngestWebhook receives provider deliveries. The response body always
// carries the {success, error} shape the provider expects, so errors are
// serialized here instead of the shared error middleware.
func (s *Server) IngestWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, webhookdomain.Result{
			Success: false,
			Error:   webhookdomain.ErrInvalidPayload.Error(),
		})
		return
	}

	if !s.authn.Authorize(c.Request.Header) {
		s.webhookSvc.RecordRejected(c.Request.Context(), payload)
		c.JSON(http.StatusForbidden, webhookdomain.Result{
			Success: false,
			Error:   webhookdomain.ErrUnauthorizedOrigin.Error(),
		})
		return
	}

	if s.webhookLimiter.Enabled() {
		allowed, err := s.webhookLimiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// The limiter is advisory. A redis outage must not drop
			// provider deliveries.
			s.log.Warn("webhook rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.obsMetrics.ObserveRateLimited()
			c.JSON(http.StatusTooManyRequests, webhookdomain.Result{
				Success: false,
				Error:   webhookdomain.ErrRateLimited.Error(),
			})
			return
		}
	}

	if err := s.webhookSvc.Ingest(c.Request.Context(), payload); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, webhookdomain.ErrInvalidPayload):
			status = http.StatusBadRequest
		case errors.Is(err, conversationdomain.ErrNotFound):
			status = http.StatusNotFound
		}
		c.JSON(status, webhookdomain.Result{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, webhookdomain.Result{Success: true})
}
