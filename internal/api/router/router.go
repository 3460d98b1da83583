package router

import (
	"net/http"

	"familytrack/internal/api/handler"
	"familytrack/internal/api/middleware"
	"familytrack/internal/core/service"
	"familytrack/internal/notify"
	"familytrack/internal/realtime"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Locations service.LocationService
	Geofences service.GeofenceService
	Realtime  *realtime.Server
	Clients   handler.ClientCounter
	Inbox     *notify.InAppChannel
	Auth      *middleware.AuthMiddleware
	Storage   string
	Cache     string
}

func NewRouter(deps Dependencies) http.Handler {
	locationHandler := handler.NewLocationHandler(deps.Locations)
	geofenceHandler := handler.NewGeofenceHandler(deps.Geofences)
	realtimeHandler := handler.NewRealtimeHandler(deps.Realtime)
	notificationHandler := handler.NewNotificationHandler(deps.Inbox)
	healthHandler := handler.NewHealthHandler(deps.Clients, deps.Storage, deps.Cache)

	authMiddleware := deps.Auth
	if authMiddleware == nil {
		authMiddleware = middleware.NewAuthMiddleware("")
	}

	mux := http.NewServeMux()

	// Health check stays outside authentication
	mux.HandleFunc("GET /health", healthHandler.Health)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/location/update", locationHandler.Update)
	protected.HandleFunc("GET /api/location/current", locationHandler.Current)
	protected.HandleFunc("GET /api/location/history", locationHandler.History)
	protected.HandleFunc("GET /api/location/distance", locationHandler.Distance)

	protected.HandleFunc("POST /api/geofences", geofenceHandler.Create)
	protected.HandleFunc("GET /api/geofences", geofenceHandler.List)
	protected.HandleFunc("GET /api/geofences/alerts", geofenceHandler.Alerts)
	protected.HandleFunc("GET /api/geofences/{id}", geofenceHandler.Get)
	protected.HandleFunc("PUT /api/geofences/{id}", geofenceHandler.Update)
	protected.HandleFunc("PATCH /api/geofences/{id}", geofenceHandler.Update)
	protected.HandleFunc("DELETE /api/geofences/{id}", geofenceHandler.Delete)

	if deps.Inbox != nil {
		protected.HandleFunc("GET /api/notifications/inbox", notificationHandler.Inbox)
	}
	protected.HandleFunc("GET /ws", realtimeHandler.ServeWS)

	authed := authMiddleware.Authenticate(protected)
	mux.Handle("/api/", authed)
	mux.Handle("/ws", authed)

	return middleware.CORSMiddleware(middleware.LoggingMiddleware(mux))
}
