package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-shop-account/internal/application"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
	"github.com/oksasatya/go-shop-account/pkg/response"
	"github.com/oksasatya/go-shop-account/pkg/validation"
)

// writeError maps the apperror taxonomy onto HTTP statuses. Anything
// unclassified is logged and answered with a generic 500.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	var ve *apperror.ValidationError
	switch {
	case errors.As(err, &ve):
		response.Error[any](c, http.StatusBadRequest, "validation failed", validation.ToDetails(ve))
	case errors.Is(err, apperror.ErrAuthentication):
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, apperror.ErrForbidden):
		response.Error[any](c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, apperror.ErrNotFound):
		response.Error[any](c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, apperror.ErrConflict):
		response.Error[any](c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, userapp.ErrAvatarStorage):
		response.Error[any](c, http.StatusServiceUnavailable, err.Error(), nil)
	default:
		helpers.LogError(logger, "request failed", err, logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		})
		response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func bindError(c *gin.Context, err error) {
	response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
}
