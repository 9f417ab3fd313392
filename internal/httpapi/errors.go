package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"checkin/internal/accounts"
	"checkin/internal/attendance"
)

// statusClientClosed is the nginx convention for a request the client abandoned.
const statusClientClosed = 499

var errBadIfMatch = errors.New("if-match must carry a non-negative update count")

// fail maps service errors onto responses. Unavailable stores ask the client
// to try again and never claim the write happened.
func (s *server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "outcome": attendance.Outcome(err)})
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try again", "outcome": attendance.Outcome(err)})
	case errors.Is(err, accounts.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, accounts.ErrInvalidRole), errors.Is(err, attendance.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		s.log.Debug("client went away", zap.String("path", c.FullPath()))
		c.AbortWithStatus(statusClientClosed)
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func outcomeStatus(outcome string) int {
	switch outcome {
	case attendance.OutcomeCreated:
		return http.StatusCreated
	case attendance.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	case attendance.OutcomeBlocked, attendance.OutcomeAmbiguous:
		return http.StatusConflict
	}
	return http.StatusOK
}
