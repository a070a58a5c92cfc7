package gateway

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fitaccessng/qring-backend/config"
	"github.com/fitaccessng/qring-backend/metrics"
	"github.com/fitaccessng/qring-backend/models"
	"github.com/fitaccessng/qring-backend/redis"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatStore is the persistence surface the gateway needs: session
// lookup for sender-type resolution and durable message writes.
// Satisfied by services.SessionService.
type ChatStore interface {
	Get(sessionID string) (*models.VisitorSession, error)
	SaveMessage(msg *models.Message) error
}

// TokenDecoder resolves a bearer credential to an identity. Failures
// mean "unauthenticated", never a refused connection.
type TokenDecoder interface {
	Identity(token string) (userID, role string, err error)
}

// Gateway carries all live traffic between visitor and homeowner
// endpoints: presence, session rooms, call-signaling relay and the
// chat pipeline. Each shared table has its own lock; the tables are
// independent, so there is no cross-table lock ordering.
type Gateway struct {
	store    ChatStore
	auth     TokenDecoder
	presence *Presence
	rooms    *roomTable
	mirror   *redis.RedisClient
	stats    *metrics.Collector
	persist  *persistQueue

	connMu sync.RWMutex
	conns  map[string]*Client

	subMu sync.RWMutex
	subs  map[string]map[string]*Client // dashboard room key -> conn id
}

// New assembles the gateway and starts its persistence workers. mirror
// and stats may be nil (tests, redis-less deployments).
func New(store ChatStore, auth TokenDecoder, presence *Presence, mirror *redis.RedisClient, stats *metrics.Collector, cfg config.GatewayConfig) *Gateway {
	g := &Gateway{
		store:    store,
		auth:     auth,
		presence: presence,
		rooms:    newRoomTable(),
		mirror:   mirror,
		stats:    stats,
		persist:  newPersistQueue(cfg),
		conns:    make(map[string]*Client),
		subs:     make(map[string]map[string]*Client),
	}
	for i := 0; i < cfg.ChatWorkers; i++ {
		go g.persistWorker()
	}
	return g
}

func (g *Gateway) HandleDashboard(c echo.Context) error {
	return g.handleWS(c, ChannelDashboard)
}

func (g *Gateway) HandleSignaling(c echo.Context) error {
	return g.handleWS(c, ChannelSignaling)
}

func (g *Gateway) handleWS(c echo.Context, channel string) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := newClient(channel, ws)
	g.identify(client, c)
	g.register(client)

	if channel == ChannelDashboard {
		g.push(client, EventDashboardSnapshot, map[string]interface{}{
			"data": map[string]interface{}{"message": "connected"},
		})
	}

	go g.writePump(client)
	g.readPump(client)
	return nil
}

// identify resolves the connection's identity from a query token or
// Authorization header. A missing or bad credential leaves the
// connection anonymous.
func (g *Gateway) identify(client *Client, c echo.Context) {
	token := c.QueryParam("token")
	if token == "" {
		token = strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	}
	if token == "" || g.auth == nil {
		return
	}
	userID, role, err := g.auth.Identity(token)
	if err != nil || userID == "" {
		return
	}
	client.UserID = userID
	client.Role = role
	g.presence.Bind(userID, client.ID)
}

func (g *Gateway) register(client *Client) {
	g.connMu.Lock()
	g.conns[client.ID] = client
	g.connMu.Unlock()
	g.stats.ConnectionOpened(client.Channel)
}

// dropClient tears down everything the connection owned: its presence
// binding, every room membership (with participant_left fan-out) and
// any dashboard subscriptions. In-flight persistence jobs for messages
// it sent continue independently.
func (g *Gateway) dropClient(client *Client) {
	g.connMu.Lock()
	delete(g.conns, client.ID)
	g.connMu.Unlock()

	g.presence.UnbindConn(client.ID)

	for room, count := range g.rooms.leaveAll(client.ID) {
		g.broadcastRoom(room, "", EventParticipantLeft, map[string]interface{}{
			"sid":   client.ID,
			"count": count,
		})
		if g.mirror != nil && strings.HasPrefix(room, "session:") {
			g.mirror.RemoveOccupant(context.Background(), strings.TrimPrefix(room, "session:"), client.ID)
		}
	}

	g.subMu.Lock()
	for key, members := range g.subs {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(g.subs, key)
		}
	}
	g.subMu.Unlock()

	g.stats.ConnectionClosed(client.Channel)
}

func (g *Gateway) client(connID string) *Client {
	g.connMu.RLock()
	defer g.connMu.RUnlock()
	return g.conns[connID]
}

// push enqueues one outbound event. A client whose send buffer is full
// is cut loose rather than allowed to stall everyone else.
func (g *Gateway) push(client *Client, event string, payload map[string]interface{}) {
	msg := map[string]interface{}{"type": event, "payload": payload}
	select {
	case client.Send <- msg:
	default:
		log.Printf("Client %s send buffer full, disconnecting", client.ID)
		client.cancel()
	}
}

func (g *Gateway) broadcastRoom(room, exceptID string, event string, payload map[string]interface{}) {
	for _, member := range g.rooms.members(room) {
		if member.ID == exceptID {
			continue
		}
		g.push(member, event, payload)
	}
}

// dispatch routes one decoded inbound event. Events are handled in
// isolation; an unknown or misaddressed command is dropped silently
// (fire-and-forget socket semantics).
func (g *Gateway) dispatch(client *Client, ev inboundEvent) {
	switch ev := ev.(type) {
	case dashboardSubscribe:
		if client.Channel == ChannelDashboard {
			g.handleSubscribe(client, ev)
		}
	case sessionJoin:
		if client.Channel == ChannelSignaling {
			g.handleJoin(client, ev)
		}
	case webrtcSignal:
		if client.Channel == ChannelSignaling {
			g.relaySignal(client, ev)
		}
	case chatSubmit:
		if client.Channel == ChannelSignaling {
			g.handleChat(client, ev)
		}
	case sessionControl:
		if client.Channel == ChannelSignaling {
			g.handleControl(client, ev)
		}
	case unknownEvent:
		// ignored
	}
}

// handleSubscribe registers the connection for a caller-supplied room
// key. Which keys an identity may watch is the dashboard collaborator's
// concern, not the gateway's.
func (g *Gateway) handleSubscribe(client *Client, ev dashboardSubscribe) {
	if ev.Room == "" {
		return
	}
	g.subMu.Lock()
	defer g.subMu.Unlock()
	members, ok := g.subs[ev.Room]
	if !ok {
		members = make(map[string]*Client)
		g.subs[ev.Room] = members
	}
	members[client.ID] = client
}

func (g *Gateway) handleJoin(client *Client, ev sessionJoin) {
	if ev.SessionID == "" {
		return
	}
	displayName := ev.DisplayName
	if displayName == "" {
		displayName = "Participant"
	}
	client.DisplayName = displayName

	room := sessionRoom(ev.SessionID)
	count := g.rooms.join(room, client)

	if g.mirror != nil {
		g.mirror.AddOccupant(context.Background(), ev.SessionID, redis.Occupant{
			ConnID:      client.ID,
			UserID:      client.UserID,
			DisplayName: displayName,
		})
	}

	g.broadcastRoom(room, client.ID, EventParticipantJoined, map[string]interface{}{
		"sid":         client.ID,
		"displayName": displayName,
		"count":       count,
	})
	g.push(client, EventSessionJoined, map[string]interface{}{
		"sid":   client.ID,
		"count": count,
	})
}

// relaySignal forwards call-setup payloads opaquely. An explicit
// target connection wins; otherwise the session room hears it, minus
// the sender, with the sender's connection id stamped on.
func (g *Gateway) relaySignal(client *Client, ev webrtcSignal) {
	if target, ok := ev.payload["target"].(string); ok && target != "" {
		if peer := g.client(target); peer != nil {
			g.push(peer, ev.event, ev.payload)
		}
		return
	}

	sessionID, _ := ev.payload["sessionId"].(string)
	if sessionID == "" {
		return
	}
	payload := make(map[string]interface{}, len(ev.payload)+1)
	for k, v := range ev.payload {
		payload[k] = v
	}
	payload["sender"] = client.ID
	g.broadcastRoom(sessionRoom(sessionID), client.ID, ev.event, payload)
}

func (g *Gateway) handleControl(client *Client, ev sessionControl) {
	if ev.SessionID == "" || ev.Action == "" {
		return
	}
	g.broadcastRoom(sessionRoom(ev.SessionID), "", EventSessionControl, map[string]interface{}{
		"sessionId": ev.SessionID,
		"action":    ev.Action,
		"senderSid": client.ID,
		"at":        time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// PublishSessionControl broadcasts a server-originated control event,
// used when a status transition arrives over HTTP instead of the
// socket.
func (g *Gateway) PublishSessionControl(sessionID, action string) {
	g.broadcastRoom(sessionRoom(sessionID), "", EventSessionControl, map[string]interface{}{
		"sessionId": sessionID,
		"action":    action,
		"senderSid": "server",
		"at":        time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// PublishActivity pushes one dashboard.patch activity entry to the
// homeowner's bound dashboard connection and to any subscribers of the
// owner's room key.
func (g *Gateway) PublishActivity(homeownerID string, activity map[string]interface{}) {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"activity": []map[string]interface{}{activity},
		},
	}

	delivered := make(map[string]bool)
	if connID, ok := g.presence.Lookup(homeownerID); ok {
		if client := g.client(connID); client != nil && client.Channel == ChannelDashboard {
			g.push(client, EventDashboardPatch, payload)
			delivered[client.ID] = true
		}
	}

	g.subMu.RLock()
	subscribers := make([]*Client, 0, len(g.subs["owner:"+homeownerID]))
	for _, client := range g.subs["owner:"+homeownerID] {
		subscribers = append(subscribers, client)
	}
	g.subMu.RUnlock()

	for _, client := range subscribers {
		if !delivered[client.ID] {
			g.push(client, EventDashboardPatch, payload)
		}
	}
}

// Occupancy lists a session room's live occupants, preferring the
// redis mirror when configured.
func (g *Gateway) Occupancy(ctx context.Context, sessionID string) ([]redis.Occupant, error) {
	if g.mirror != nil {
		return g.mirror.Occupants(ctx, sessionID)
	}
	members := g.rooms.members(sessionRoom(sessionID))
	occupants := make([]redis.Occupant, 0, len(members))
	for _, member := range members {
		occupants = append(occupants, redis.Occupant{
			ConnID:      member.ID,
			UserID:      member.UserID,
			DisplayName: member.DisplayName,
		})
	}
	return occupants, nil
}
