package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"choose-rich-backend/internal/models"
)

// respondError maps the core's sentinel errors onto HTTP statuses. Anything
// unrecognized is an internal error; the detail is still returned so the
// caller can decide on retry policy.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrInvalidConfiguration),
		errors.Is(err, models.ErrInvalidMove),
		errors.Is(err, models.ErrNotActive),
		errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
