package transport

import (
	"errors"
	"net/http"

	"garmentshop-be/internal/logger"
	"garmentshop-be/internal/notification"
	"garmentshop-be/internal/order"
	"garmentshop-be/internal/product"
	"garmentshop-be/internal/utils"

	"go.uber.org/zap"
)

// respondServiceError translates a domain error into an HTTP status and the
// standard failure envelope. Unknown errors are logged and masked as 500 so
// internals never leak to clients.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *order.InsufficientStockError
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &insufficient):
		utils.RespondError(w, http.StatusConflict, insufficient.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrNotAuthorized):
		utils.RespondError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidShippingAddress),
		errors.Is(err, product.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromCtx(r.Context()).Error("unhandled service error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondBadRequest(w http.ResponseWriter, message string) {
	utils.RespondError(w, http.StatusBadRequest, message)
}
