package handler

import (
	"net/http"
	"time"
)

// ClientCounter reports connected realtime clients.
type ClientCounter interface {
	Count() int
}

type HealthHandler struct {
	clients ClientCounter
	storage string
	cache   string
	started time.Time
}

func NewHealthHandler(clients ClientCounter, storage, cache string) *HealthHandler {
	return &HealthHandler{clients: clients, storage: storage, cache: cache, started: time.Now()}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"storage":          h.storage,
		"cache":            h.cache,
		"connectedClients": h.clients.Count(),
		"uptimeSeconds":    int(time.Since(h.started).Seconds()),
	})
}
