package handler

import (
	"encoding/json"
	"net/http"

	"familytrack/internal/api/util"
	"familytrack/internal/core/model"
	"familytrack/internal/core/service"
)

type GeofenceHandler struct {
	geofenceService service.GeofenceService
}

func NewGeofenceHandler(geofenceService service.GeofenceService) *GeofenceHandler {
	return &GeofenceHandler{
		geofenceService: geofenceService,
	}
}

func (h *GeofenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGeofenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	callerID := util.UserIDFromContext(r.Context())
	if req.OwnerUserID == "" {
		req.OwnerUserID = callerID
	}

	fence, err := h.geofenceService.Create(r.Context(), callerID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fence)
}

func (h *GeofenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateGeofenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	fence, err := h.geofenceService.Update(r.Context(), util.UserIDFromContext(r.Context()), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fence)
}

func (h *GeofenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.geofenceService.Deactivate(r.Context(), util.UserIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GeofenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	fence, err := h.geofenceService.Get(r.Context(), util.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fence)
}

func (h *GeofenceHandler) List(w http.ResponseWriter, r *http.Request) {
	callerID := util.UserIDFromContext(r.Context())
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		ownerID = callerID
	}
	if ownerID == "" {
		badRequest(w, "ownerId is required")
		return
	}

	fences, err := h.geofenceService.ListByOwner(r.Context(), callerID, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if fences == nil {
		fences = []*model.Geofence{}
	}
	writeJSON(w, http.StatusOK, fences)
}

func (h *GeofenceHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	callerID := util.UserIDFromContext(r.Context())
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		ownerID = callerID
	}
	if ownerID == "" {
		badRequest(w, "ownerId is required")
		return
	}

	limit, ok := queryInt(r, "limit")
	if !ok {
		badRequest(w, "limit must be a number")
		return
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		badRequest(w, "offset must be a number")
		return
	}

	alerts, err := h.geofenceService.ListAlerts(r.Context(), callerID, ownerID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*model.GeofenceAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
