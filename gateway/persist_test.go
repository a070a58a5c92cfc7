package gateway

import (
	"testing"
	"time"

	"github.com/fitaccessng/qring-backend/config"
	"github.com/fitaccessng/qring-backend/models"
)

func seedSession(store *fakeStore, sessionID, homeownerID string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions[sessionID] = &models.VisitorSession{
		ID:          sessionID,
		HomeownerID: homeownerID,
		Status:      models.SessionApproved,
	}
}

func TestChatPipelineHappyPath(t *testing.T) {
	store := newFakeStore()
	seedSession(store, "s1", "owner-1")
	g := testGateway(store, testGatewayConfig())

	sender := testConn(g, ChannelSignaling)
	receiver := testConn(g, ChannelSignaling)
	g.handleJoin(sender, sessionJoin{SessionID: "s1", DisplayName: "Ada"})
	g.handleJoin(receiver, sessionJoin{SessionID: "s1"})

	g.handleChat(sender, chatSubmit{SessionID: "s1", Text: "  hello  ", ClientID: "c-1", DisplayName: "Ada"})

	// Optimistic copy reaches the whole room, sender included.
	for _, c := range []*Client{sender, receiver} {
		msg := waitEvent(t, c, EventChatMessage)
		if msg["text"] != "hello" || msg["persisted"] != false || msg["clientId"] != "c-1" {
			t.Fatalf("chat.message on %s = %v", c.ID, msg)
		}
	}

	ack := waitEvent(t, sender, EventChatAck)
	if ack["status"] != "queued" || ack["clientId"] != "c-1" {
		t.Fatalf("chat.ack = %v", ack)
	}

	for _, c := range []*Client{sender, receiver} {
		done := waitEvent(t, c, EventChatPersisted)
		if done["persisted"] != true || done["senderType"] != models.SenderVisitor {
			t.Fatalf("chat.persisted on %s = %v", c.ID, done)
		}
	}

	saved := store.savedMessages()
	if len(saved) != 1 || saved[0].Body != "hello" || saved[0].SessionID != "s1" {
		t.Fatalf("saved = %+v", saved)
	}
}

// The durable sender type comes from the presence binding of the
// submitting connection, never from the client's own claim.
func TestChatSenderTypeDerivedFromIdentity(t *testing.T) {
	store := newFakeStore()
	seedSession(store, "s1", "owner-1")
	g := testGateway(store, testGatewayConfig())

	sender := testConn(g, ChannelSignaling)
	g.presence.Bind("owner-1", sender.ID)
	g.handleJoin(sender, sessionJoin{SessionID: "s1"})

	g.handleChat(sender, chatSubmit{SessionID: "s1", Text: "open up", SenderType: models.SenderVisitor})

	waitEvent(t, sender, EventChatMessage)
	done := waitEvent(t, sender, EventChatPersisted)
	if done["senderType"] != models.SenderHomeowner {
		t.Fatalf("persisted senderType = %v, want homeowner", done["senderType"])
	}
	saved := store.savedMessages()
	if len(saved) != 1 || saved[0].SenderType != models.SenderHomeowner {
		t.Fatalf("saved = %+v", saved)
	}
}

func TestChatRetryThenSucceed(t *testing.T) {
	store := newFakeStore()
	seedSession(store, "s1", "owner-1")
	store.failures = 1
	g := testGateway(store, testGatewayConfig())

	sender := testConn(g, ChannelSignaling)
	g.handleJoin(sender, sessionJoin{SessionID: "s1"})
	g.handleChat(sender, chatSubmit{SessionID: "s1", Text: "hi"})

	waitEvent(t, sender, EventChatPersisted)
	if saved := store.savedMessages(); len(saved) != 1 {
		t.Fatalf("saved %d messages, want 1", len(saved))
	}
}

func TestChatRetriesExhaustedNotifiesSenderOnly(t *testing.T) {
	store := newFakeStore()
	seedSession(store, "s1", "owner-1")
	// Backoff of two entries allows three attempts total.
	store.failures = 3
	g := testGateway(store, testGatewayConfig())

	sender := testConn(g, ChannelSignaling)
	receiver := testConn(g, ChannelSignaling)
	g.handleJoin(sender, sessionJoin{SessionID: "s1"})
	g.handleJoin(receiver, sessionJoin{SessionID: "s1"})

	g.handleChat(sender, chatSubmit{SessionID: "s1", Text: "hi"})

	failed := waitEvent(t, sender, EventChatPersistFailed)
	if failed["persisted"] != false {
		t.Fatalf("persist_failed = %v", failed)
	}
	if failed["error"] != "storage unavailable" {
		t.Fatalf("persist_failed error = %v", failed["error"])
	}
	expectNoEvent(t, receiver, EventChatPersistFailed)
	expectNoEvent(t, receiver, EventChatPersisted)
	if saved := store.savedMessages(); len(saved) != 0 {
		t.Fatalf("saved %d messages, want 0", len(saved))
	}
}

func TestChatUnknownSessionFailsWithoutRetry(t *testing.T) {
	store := newFakeStore()
	g := testGateway(store, testGatewayConfig())

	sender := testConn(g, ChannelSignaling)
	g.handleJoin(sender, sessionJoin{SessionID: "ghost"})
	g.handleChat(sender, chatSubmit{SessionID: "ghost", Text: "anyone?"})

	failed := waitEvent(t, sender, EventChatPersistFailed)
	if failed["error"] != "session not found" {
		t.Fatalf("persist_failed error = %v", failed["error"])
	}
	if saved := store.savedMessages(); len(saved) != 0 {
		t.Fatalf("saved %d messages, want 0", len(saved))
	}
}

func TestChatQueueSaturation(t *testing.T) {
	store := newFakeStore()
	seedSession(store, "s1", "owner-1")
	// No workers and no buffer: every enqueue hits the saturated path.
	g := testGateway(store, config.GatewayConfig{
		ChatQueueSize:      0,
		ChatWorkers:        0,
		ChatRetryBackoffMS: []int{1},
	})

	sender := testConn(g, ChannelSignaling)
	g.handleJoin(sender, sessionJoin{SessionID: "s1"})
	g.handleChat(sender, chatSubmit{SessionID: "s1", Text: "hi"})

	waitEvent(t, sender, EventChatMessage)
	waitEvent(t, sender, EventChatAck)
	failed := waitEvent(t, sender, EventChatPersistFailed)
	if failed["error"] != "persistence queue full" {
		t.Fatalf("persist_failed error = %v", failed["error"])
	}
}

func TestChatIgnoresBlankMessages(t *testing.T) {
	store := newFakeStore()
	seedSession(store, "s1", "owner-1")
	g := testGateway(store, testGatewayConfig())

	sender := testConn(g, ChannelSignaling)
	g.handleJoin(sender, sessionJoin{SessionID: "s1"})

	g.handleChat(sender, chatSubmit{SessionID: "s1", Text: "   "})
	g.handleChat(sender, chatSubmit{SessionID: "", Text: "hi"})

	expectNoEvent(t, sender, EventChatMessage)
	expectNoEvent(t, sender, EventChatAck)
	time.Sleep(10 * time.Millisecond)
	if saved := store.savedMessages(); len(saved) != 0 {
		t.Fatalf("saved %d messages, want 0", len(saved))
	}
}
