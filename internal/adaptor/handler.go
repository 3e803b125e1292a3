package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/usecase"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Booking       *BookingHandler
	Escrow        *EscrowHandler
	Rectification *RectificationHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking:       NewBookingHandler(service.Booking, log),
		Escrow:        NewEscrowHandler(service.Escrow, log),
		Rectification: NewRectificationHandler(service.Rectification, log),
	}
}

func actorFrom(w http.ResponseWriter, r *http.Request) (entity.Actor, bool) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
	}
	return actor, ok
}

// decodeBody fills dst from the request body. An empty body leaves dst as is.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// writeError maps the error kind onto a status code.
func writeError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Error(operation+" failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	fields := []zap.Field{zap.Error(err), zap.String("operation", operation), zap.String("kind", string(appErr.Kind))}
	switch appErr.Kind {
	case apperr.KindValidation:
		log.Warn(operation+" validation failed", fields...)
		utils.ResponseBadRequest(w, "Validation failed", appErr.Fields)
	case apperr.KindForbidden:
		log.Warn(operation+" forbidden", fields...)
		utils.ResponseForbidden(w, appErr.Error())
	case apperr.KindNotFound:
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, appErr.Error())
	case apperr.KindInvalidTransition, apperr.KindConflict:
		log.Warn(operation+" rejected", fields...)
		utils.ResponseJSON(w, http.StatusConflict, false, appErr.Error(), nil, map[string]any{
			"kind":      appErr.Kind,
			"retryable": appErr.Retryable(),
		})
	case apperr.KindInvariant:
		log.Warn(operation+" violates invariant", fields...)
		utils.ResponseUnprocessable(w, appErr.Error())
	default:
		log.Error(operation+" failed", fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}
