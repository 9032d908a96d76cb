package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"scopeboard/internal/models"
)

// statusOf maps a validation kind onto an HTTP status
func statusOf(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindDuplicateName:
		return http.StatusConflict
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

// respondError writes err as JSON. Validation errors keep their kind and
// rule so the settings UI can surface them; anything else is a 500.
func respondError(c *gin.Context, err error) {
	errs := multierr.Errors(err)
	if len(errs) > 1 {
		details := make([]interface{}, 0, len(errs))
		for _, e := range errs {
			details = append(details, errorBody(e))
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "errors": details})
		return
	}

	status := statusOf(models.KindOf(err))
	c.JSON(status, gin.H{"error": errorBody(err)})
}

func errorBody(err error) interface{} {
	var e *models.Error
	if errors.As(err, &e) {
		return e
	}
	return gin.H{"message": err.Error()}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
}
