package handlers

import (
	"errors"
	"net/http"

	"grid-backtest/internal/api/models"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"

	"github.com/gin-gonic/gin"
)

func abortWithError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeRunError maps run errors to the API error envelope:
// INVALID_CONFIG 400, DATA_NOT_FOUND 404, BACKTEST_ERROR 500.
func writeRunError(c *gin.Context, err error, details map[string]interface{}) {
	var ce *config.ConfigError
	switch {
	case errors.As(err, &ce):
		if details == nil {
			details = map[string]interface{}{}
		}
		details["field"] = ce.Field
		abortWithError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), details)
	case errors.Is(err, backtest.ErrInvalidSetup):
		abortWithError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error(), details)
	case errors.Is(err, data.ErrDataNotFound):
		abortWithError(c, http.StatusNotFound, "DATA_NOT_FOUND", err.Error(), details)
	default:
		abortWithError(c, http.StatusInternalServerError, "BACKTEST_ERROR", err.Error(), details)
	}
}
