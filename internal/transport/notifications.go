package transport

import (
	"net/http"

	"garmentshop-be/internal/notification"
	"garmentshop-be/internal/utils"

	"github.com/google/uuid"
)

type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	notifications, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []*notification.Notification{}
	}

	utils.RespondJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondBadRequest(w, "invalid notification id")
		return
	}

	if err := h.svc.MarkRead(r.Context(), id, userID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"id": id.String()})
}
