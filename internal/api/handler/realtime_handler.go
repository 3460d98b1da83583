package handler

import (
	"net/http"

	"familytrack/internal/api/util"
	"familytrack/internal/realtime"
)

type RealtimeHandler struct {
	server *realtime.Server
}

func NewRealtimeHandler(server *realtime.Server) *RealtimeHandler {
	return &RealtimeHandler{server: server}
}

func (h *RealtimeHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.server.Serve(w, r, util.UserIDFromContext(r.Context()))
}
