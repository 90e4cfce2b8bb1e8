package api

import (
	"errors"
	"net/http"

	"gallery-service/internal/apperr"
	"gallery-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:      http.StatusBadRequest,
	apperr.KindNotFound:        http.StatusNotFound,
	apperr.KindUnauthenticated: http.StatusUnauthorized,
	apperr.KindForbidden:       http.StatusForbidden,
	apperr.KindConflict:        http.StatusConflict,
	apperr.KindPayment:         http.StatusBadGateway,
	apperr.KindPersistence:     http.StatusInternalServerError,
}

// respondError writes err using the kind-to-status table. Causes of server
// side failures are logged, never returned.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "internal server error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= 500 {
		util.LoggerFromContext(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	body := gin.H{"error": message, "code": kind}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperr.Validation("invalid request body", map[string]string{"body": err.Error()}))
}
