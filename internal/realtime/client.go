package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"familytrack/internal/core/apperr"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
	"familytrack/internal/core/service"
	"familytrack/internal/core/tracker"
	"familytrack/internal/core/util"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	queueSize      = 32
)

// Inbound message types.
const (
	msgJoinFamily      = "join_family"
	msgLocationUpdate  = "location_update"
	msgRequestLocation = "request_location"
)

type inbound struct {
	Type         string          `json:"type"`
	FamilyID     string          `json:"familyId,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type unavailablePayload struct {
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server accepts websocket connections and runs one Client per connection.
type Server struct {
	hub       *Hub
	locations service.LocationService
	families  repository.FamilyRepository
}

func NewServer(hub *Hub, locations service.LocationService, families repository.FamilyRepository) *Server {
	return &Server{hub: hub, locations: locations, families: families}
}

// Serve upgrades the request and blocks until the connection closes. userID is the
// authenticated caller, empty when authentication is disabled.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[realtime] upgrade failed: %v", err)
		return
	}

	c := &Client{
		id:     util.GenerateID(),
		userID: userID,
		conn:   conn,
		server: s,
		send:   make(chan model.Event, queueSize),
	}
	c.run(context.WithoutCancel(r.Context()))
}

// Client is one websocket connection: a reader goroutine handling inbound messages and a
// writer goroutine draining a bounded outbound queue.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	server *Server
	send   chan model.Event

	familyID string
	leave    context.CancelFunc
}

func (c *Client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	log.Printf("[realtime] client %s connected (user %q)", c.id, c.userID)

	done := make(chan struct{})
	go func() {
		c.writePump(ctx)
		close(done)
	}()

	c.readPump(ctx)
	cancel()
	<-done
	c.conn.Close()
	log.Printf("[realtime] client %s disconnected", c.id)
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.reply(model.EventError, errorPayload{Message: "malformed message"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[realtime] client %s read error: %v", c.id, err)
			}
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				log.Printf("[realtime] client %s write error: %v", c.id, err)
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// enqueue drops the event when the outbound queue is full.
func (c *Client) enqueue(event model.Event) {
	select {
	case c.send <- event:
	default:
		log.Printf("[realtime] client %s queue full, dropping %s", c.id, event.Type)
	}
}

func (c *Client) reply(t model.EventType, data interface{}) {
	c.enqueue(model.Event{Type: t, Data: data})
}

func (c *Client) handle(ctx context.Context, msg inbound) {
	switch msg.Type {
	case msgJoinFamily:
		c.join(ctx, msg.FamilyID)
	case msgLocationUpdate:
		c.locationUpdate(ctx, msg.Data)
	case msgRequestLocation:
		c.requestLocation(ctx, msg.TargetUserID)
	default:
		c.reply(model.EventError, errorPayload{Message: "unknown message type " + msg.Type})
	}
}

func (c *Client) join(ctx context.Context, familyID string) {
	if familyID == "" {
		c.reply(model.EventError, errorPayload{Message: "familyId is required"})
		return
	}
	if c.userID != "" {
		member, err := c.server.families.FindByUserID(ctx, c.userID)
		if err != nil {
			log.Printf("[realtime] family lookup for %s failed: %v", c.userID, err)
			c.reply(model.EventError, errorPayload{Message: "failed to join family"})
			return
		}
		if member == nil || member.FamilyID != familyID {
			c.reply(model.EventError, errorPayload{Message: "not a member of this family"})
			return
		}
	}

	if c.leave != nil {
		c.leave()
	}
	subCtx, leave := context.WithCancel(ctx)
	c.leave = leave
	c.familyID = familyID

	events := c.server.hub.Subscribe(subCtx, c.id, familyID, queueSize)
	go func() {
		for event := range events {
			c.enqueue(event)
		}
	}()
	log.Printf("[realtime] client %s joined family %s", c.id, familyID)
}

func (c *Client) locationUpdate(ctx context.Context, data json.RawMessage) {
	var req service.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(model.EventError, errorPayload{Message: "malformed location update"})
		return
	}
	if c.userID != "" {
		if req.UserID != "" && req.UserID != c.userID {
			c.reply(model.EventError, errorPayload{Message: "cannot report location for another user"})
			return
		}
		req.UserID = c.userID
	}
	req.Origin = c.id

	if _, err := c.server.locations.Ingest(ctx, req); err != nil {
		log.Printf("[realtime] client %s location update failed: %v", c.id, err)
		msg := "failed to process location update"
		if apperr.Is(err, apperr.KindValidation) {
			msg = err.Error()
		}
		c.reply(model.EventError, errorPayload{Message: msg})
	}
}

func (c *Client) requestLocation(ctx context.Context, targetUserID string) {
	if targetUserID == "" {
		c.reply(model.EventError, errorPayload{Message: "targetUserId is required"})
		return
	}
	if !c.sameFamily(ctx, targetUserID) {
		c.reply(model.EventError, errorPayload{Message: "user is not in your family"})
		return
	}

	pos, err := c.server.hub.RequestSnapshot(ctx, targetUserID)
	if errors.Is(err, tracker.ErrUnknown) {
		c.reply(model.EventLocationResponse, unavailablePayload{Error: "location not available"})
		return
	}
	if err != nil {
		log.Printf("[realtime] snapshot for %s failed: %v", targetUserID, err)
		c.reply(model.EventError, errorPayload{Message: "failed to fetch location"})
		return
	}
	c.enqueue(model.Event{
		Type:   model.EventLocationResponse,
		UserID: targetUserID,
		Data: model.LocationUpdate{
			UserID:    pos.UserID,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Timestamp: pos.Timestamp,
		},
	})
}

// sameFamily checks the target against the caller's family, or against the joined family
// for unauthenticated connections.
func (c *Client) sameFamily(ctx context.Context, targetUserID string) bool {
	familyID := c.familyID
	if c.userID != "" {
		if c.userID == targetUserID {
			return true
		}
		member, err := c.server.families.FindByUserID(ctx, c.userID)
		if err != nil || member == nil {
			return false
		}
		familyID = member.FamilyID
	}
	if familyID == "" {
		return false
	}

	target, err := c.server.families.FindByUserID(ctx, targetUserID)
	if err != nil {
		log.Printf("[realtime] family lookup for %s failed: %v", targetUserID, err)
		return false
	}
	return target != nil && target.FamilyID == familyID
}
