package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fitaccessng/qring-backend/config"
	"github.com/fitaccessng/qring-backend/models"
	"github.com/fitaccessng/qring-backend/services"
)

// fakeStore is an in-memory ChatStore with injectable write failures.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*models.VisitorSession
	saved    []models.Message
	failures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*models.VisitorSession)}
}

func (f *fakeStore) Get(sessionID string) (*models.VisitorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, services.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (f *fakeStore) SaveMessage(msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("storage unavailable")
	}
	f.saved = append(f.saved, *msg)
	return nil
}

func (f *fakeStore) savedMessages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.saved...)
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		ChatQueueSize:      16,
		ChatWorkers:        1,
		ChatRetryBackoffMS: []int{1, 1},
	}
}

func testGateway(store ChatStore, cfg config.GatewayConfig) *Gateway {
	return New(store, nil, NewPresence(), nil, nil, cfg)
}

// testConn registers a pumpless client; tests read its Send channel
// directly instead of driving a websocket.
func testConn(g *Gateway, channel string) *Client {
	client := newClient(channel, nil)
	g.register(client)
	return client
}

func waitEvent(t *testing.T, client *Client, eventType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-client.Send:
			if msg["type"] == eventType {
				return msg["payload"].(map[string]interface{})
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s on %s", eventType, client.ID)
		}
	}
}

func expectNoEvent(t *testing.T, client *Client, eventType string) {
	t.Helper()
	timeout := time.After(50 * time.Millisecond)
	for {
		select {
		case msg := <-client.Send:
			if msg["type"] == eventType {
				t.Fatalf("unexpected %s: %v", eventType, msg["payload"])
			}
		case <-timeout:
			return
		}
	}
}

func TestJoinAndLeaveFanout(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	c1 := testConn(g, ChannelSignaling)
	c2 := testConn(g, ChannelSignaling)

	g.handleJoin(c1, sessionJoin{SessionID: "s1", DisplayName: "Owner"})
	self := waitEvent(t, c1, EventSessionJoined)
	if self["count"].(int) != 1 {
		t.Fatalf("first join count = %v, want 1", self["count"])
	}

	g.handleJoin(c2, sessionJoin{SessionID: "s1"})
	joined := waitEvent(t, c1, EventParticipantJoined)
	if joined["sid"] != c2.ID || joined["count"].(int) != 2 {
		t.Fatalf("participant_joined = %v", joined)
	}
	if joined["displayName"] != "Participant" {
		t.Fatalf("default display name = %v, want Participant", joined["displayName"])
	}
	waitEvent(t, c2, EventSessionJoined)

	g.dropClient(c2)
	left := waitEvent(t, c1, EventParticipantLeft)
	if left["sid"] != c2.ID || left["count"].(int) != 1 {
		t.Fatalf("participant_left = %v", left)
	}
	// Exactly one leave notice per room membership.
	expectNoEvent(t, c1, EventParticipantLeft)
}

func TestDropClientLeavesEveryRoom(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	roamer := testConn(g, ChannelSignaling)
	w1 := testConn(g, ChannelSignaling)
	w2 := testConn(g, ChannelSignaling)

	g.handleJoin(w1, sessionJoin{SessionID: "s1"})
	g.handleJoin(w2, sessionJoin{SessionID: "s2"})
	g.handleJoin(roamer, sessionJoin{SessionID: "s1"})
	g.handleJoin(roamer, sessionJoin{SessionID: "s2"})
	waitEvent(t, w1, EventParticipantJoined)
	waitEvent(t, w2, EventParticipantJoined)

	g.dropClient(roamer)
	for _, watcher := range []*Client{w1, w2} {
		left := waitEvent(t, watcher, EventParticipantLeft)
		if left["sid"] != roamer.ID || left["count"].(int) != 1 {
			t.Fatalf("participant_left on %s = %v", watcher.ID, left)
		}
		expectNoEvent(t, watcher, EventParticipantLeft)
	}
}

func TestRelaySignalRoomBroadcast(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	caller := testConn(g, ChannelSignaling)
	callee := testConn(g, ChannelSignaling)
	g.handleJoin(caller, sessionJoin{SessionID: "s1"})
	g.handleJoin(callee, sessionJoin{SessionID: "s1"})

	g.relaySignal(caller, webrtcSignal{
		event:   EventWebRTCOffer,
		payload: map[string]interface{}{"sessionId": "s1", "sdp": "v=0"},
	})

	offer := waitEvent(t, callee, EventWebRTCOffer)
	if offer["sdp"] != "v=0" || offer["sender"] != caller.ID {
		t.Fatalf("relayed offer = %v", offer)
	}
	// The sender never hears its own signal back.
	expectNoEvent(t, caller, EventWebRTCOffer)
}

func TestRelaySignalTargeted(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	caller := testConn(g, ChannelSignaling)
	callee := testConn(g, ChannelSignaling)
	bystander := testConn(g, ChannelSignaling)
	for _, c := range []*Client{caller, callee, bystander} {
		g.handleJoin(c, sessionJoin{SessionID: "s1"})
	}

	g.relaySignal(caller, webrtcSignal{
		event:   EventWebRTCICE,
		payload: map[string]interface{}{"sessionId": "s1", "target": callee.ID, "candidate": "c"},
	})

	ice := waitEvent(t, callee, EventWebRTCICE)
	if ice["candidate"] != "c" {
		t.Fatalf("targeted ice = %v", ice)
	}
	expectNoEvent(t, bystander, EventWebRTCICE)
}

func TestDispatchChannelGuards(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	dash := testConn(g, ChannelDashboard)

	// A dashboard connection cannot enter session rooms.
	g.dispatch(dash, sessionJoin{SessionID: "s1"})
	if n := g.rooms.count(sessionRoom("s1")); n != 0 {
		t.Fatalf("room count = %d after guarded join, want 0", n)
	}
	expectNoEvent(t, dash, EventSessionJoined)

	// And a signaling connection cannot subscribe to dashboard keys.
	sig := testConn(g, ChannelSignaling)
	g.dispatch(sig, dashboardSubscribe{Room: "owner:o1"})
	g.PublishActivity("o1", map[string]interface{}{"kind": "visitor.request"})
	expectNoEvent(t, sig, EventDashboardPatch)
}

func TestSessionControlReachesWholeRoom(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	c1 := testConn(g, ChannelSignaling)
	c2 := testConn(g, ChannelSignaling)
	g.handleJoin(c1, sessionJoin{SessionID: "s1"})
	g.handleJoin(c2, sessionJoin{SessionID: "s1"})

	g.handleControl(c1, sessionControl{SessionID: "s1", Action: "approve"})
	for _, c := range []*Client{c1, c2} {
		ev := waitEvent(t, c, EventSessionControl)
		if ev["action"] != "approve" || ev["senderSid"] != c1.ID {
			t.Fatalf("session.control on %s = %v", c.ID, ev)
		}
	}

	g.PublishSessionControl("s1", "close")
	for _, c := range []*Client{c1, c2} {
		ev := waitEvent(t, c, EventSessionControl)
		if ev["action"] != "close" || ev["senderSid"] != "server" {
			t.Fatalf("server control on %s = %v", c.ID, ev)
		}
	}
}

func TestPublishActivityDedupes(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	dash := testConn(g, ChannelDashboard)
	g.presence.Bind("owner-1", dash.ID)
	g.dispatch(dash, dashboardSubscribe{Room: "owner:owner-1"})

	g.PublishActivity("owner-1", map[string]interface{}{"kind": "visitor.request"})

	patch := waitEvent(t, dash, EventDashboardPatch)
	data := patch["data"].(map[string]interface{})
	activity := data["activity"].([]map[string]interface{})
	if len(activity) != 1 || activity[0]["kind"] != "visitor.request" {
		t.Fatalf("patch activity = %v", activity)
	}
	// Bound connection and subscriber are the same socket; one delivery.
	expectNoEvent(t, dash, EventDashboardPatch)
}

func TestPublishActivityToSubscriberOnly(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	watcher := testConn(g, ChannelDashboard)
	other := testConn(g, ChannelDashboard)
	g.dispatch(watcher, dashboardSubscribe{Room: "owner:owner-1"})

	g.PublishActivity("owner-1", map[string]interface{}{"kind": "session.approve"})
	waitEvent(t, watcher, EventDashboardPatch)
	expectNoEvent(t, other, EventDashboardPatch)
}

func TestDecodeInbound(t *testing.T) {
	join := decodeInbound(Envelope{
		Type:    cmdSessionJoin,
		Payload: json.RawMessage(`{"sessionId":"s1","displayName":"Ada"}`),
	})
	ev, ok := join.(sessionJoin)
	if !ok || ev.SessionID != "s1" || ev.DisplayName != "Ada" {
		t.Fatalf("decoded join = %#v", join)
	}

	signal := decodeInbound(Envelope{
		Type:    EventWebRTCAnswer,
		Payload: json.RawMessage(`{"sessionId":"s1","sdp":"v=0"}`),
	})
	sig, ok := signal.(webrtcSignal)
	if !ok || sig.event != EventWebRTCAnswer || sig.payload["sdp"] != "v=0" {
		t.Fatalf("decoded signal = %#v", signal)
	}

	if _, ok := decodeInbound(Envelope{Type: "made.up"}).(unknownEvent); !ok {
		t.Fatal("unknown type did not decode to unknownEvent")
	}
	if _, ok := decodeInbound(Envelope{
		Type:    cmdSessionJoin,
		Payload: json.RawMessage(`not json`),
	}).(unknownEvent); !ok {
		t.Fatal("malformed payload did not decode to unknownEvent")
	}
}

func TestOccupancyFromRoomTable(t *testing.T) {
	g := testGateway(newFakeStore(), testGatewayConfig())
	c1 := testConn(g, ChannelSignaling)
	c1.UserID = "owner-1"
	g.handleJoin(c1, sessionJoin{SessionID: "s1", DisplayName: "Owner"})

	occupants, err := g.Occupancy(context.Background(), "s1")
	if err != nil {
		t.Fatalf("occupancy: %v", err)
	}
	if len(occupants) != 1 || occupants[0].ConnID != c1.ID || occupants[0].DisplayName != "Owner" {
		t.Fatalf("occupants = %+v", occupants)
	}
}
