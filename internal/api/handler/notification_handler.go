package handler

import (
	"net/http"

	"familytrack/internal/api/util"
	"familytrack/internal/notify"
)

const defaultInboxLimit = 50

type NotificationHandler struct {
	inbox *notify.InAppChannel
}

func NewNotificationHandler(inbox *notify.InAppChannel) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// Inbox lists the caller's in-app notifications, newest first.
func (h *NotificationHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	userID := util.UserIDFromContext(r.Context())
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		badRequest(w, "userId is required")
		return
	}

	limit, ok := queryInt(r, "limit")
	if !ok || limit < 0 {
		badRequest(w, "limit must be a positive number")
		return
	}
	if limit == 0 {
		limit = defaultInboxLimit
	}

	messages, err := h.inbox.Inbox(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []notify.InboxMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}
