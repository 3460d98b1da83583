package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"familytrack/internal/api/util"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
	"familytrack/internal/core/service"
)

type LocationHandler struct {
	locationService service.LocationService
}

func NewLocationHandler(locationService service.LocationService) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
	}
}

type currentLocationResponse struct {
	UserID    string    `json:"userId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	if callerID := util.UserIDFromContext(r.Context()); callerID != "" {
		if req.UserID != "" && req.UserID != callerID {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "cannot report location for another user"})
			return
		}
		req.UserID = callerID
	}

	sample, err := h.locationService.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}

func (h *LocationHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		badRequest(w, "userId is required")
		return
	}

	pos, err := h.locationService.GetCurrent(r.Context(), util.UserIDFromContext(r.Context()), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, currentLocationResponse{
		UserID:    pos.UserID,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Timestamp: pos.Timestamp,
	})
}

func (h *LocationHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("userId")
	if userID == "" {
		badRequest(w, "userId is required")
		return
	}

	var q repository.HistoryQuery
	var err error
	if v := query.Get("from"); v != "" {
		if q.From, err = time.Parse(time.RFC3339, v); err != nil {
			badRequest(w, "from must be an RFC 3339 timestamp")
			return
		}
	}
	if v := query.Get("to"); v != "" {
		if q.To, err = time.Parse(time.RFC3339, v); err != nil {
			badRequest(w, "to must be an RFC 3339 timestamp")
			return
		}
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		badRequest(w, "limit must be a number")
		return
	}
	q.Limit = limit

	samples, err := h.locationService.GetHistory(r.Context(), util.UserIDFromContext(r.Context()), userID, q)
	if err != nil {
		writeError(w, err)
		return
	}
	if samples == nil {
		samples = []*model.LocationSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *LocationHandler) Distance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userA, userB := query.Get("userA"), query.Get("userB")
	if userA == "" || userB == "" {
		badRequest(w, "userA and userB are required")
		return
	}

	d, err := h.locationService.GetDistance(r.Context(), util.UserIDFromContext(r.Context()), userA, userB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
