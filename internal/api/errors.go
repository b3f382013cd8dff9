package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/apperr"
	"go.uber.org/zap"
)

// respondError writes err as {"error": ...} with the status apperr maps
// it to.
//
// Why not send err.Error() for every failure?
//   - Store errors carry SQL and driver details. Classified errors
//     (not found, conflict, permission) have a client-safe message;
//     everything else is logged here and answered with fallback.
func respondError(c *gin.Context, logger *zap.Logger, fallback string, err error) {
	status := apperr.HTTPStatus(err)
	msg := apperr.Message(err)
	if msg == "" || status >= http.StatusInternalServerError {
		logger.Error(fallback,
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}
	if msg == "" {
		msg = fallback
	}
	c.JSON(status, gin.H{"error": msg})
}

// uuidParam parses the named path parameter. On failure it writes a 400
// and returns false.
func uuidParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + label + " id"})
		return uuid.Nil, false
	}
	return id, true
}

// forbidOtherUser stops the request when an authenticated caller touches
// data owned by someone else. With auth disabled the caller is uuid.Nil
// and every request passes.
func forbidOtherUser(c *gin.Context, caller, owner uuid.UUID) bool {
	if caller == uuid.Nil || caller == owner {
		return false
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "resource belongs to another user"})
	return true
}
