package gateway

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/fitaccessng/qring-backend/config"
	"github.com/fitaccessng/qring-backend/models"
	"github.com/fitaccessng/qring-backend/services"
	"github.com/google/uuid"
)

// persistJob is one chat message awaiting durable storage. The
// optimistic broadcast and the sender ack have already gone out by the
// time a job is enqueued.
type persistJob struct {
	MessageID   string
	SessionID   string
	Text        string
	ClientID    string
	DisplayName string
	SenderConn  string
	At          time.Time
}

type persistQueue struct {
	jobs    chan persistJob
	backoff []time.Duration
}

// newPersistQueue builds the bounded queue. The backoff schedule is
// the retry budget: one initial attempt plus one retry per entry,
// sleeping that entry's duration first.
func newPersistQueue(cfg config.GatewayConfig) *persistQueue {
	backoff := make([]time.Duration, 0, len(cfg.ChatRetryBackoffMS))
	for _, ms := range cfg.ChatRetryBackoffMS {
		backoff = append(backoff, time.Duration(ms)*time.Millisecond)
	}
	return &persistQueue{
		jobs:    make(chan persistJob, cfg.ChatQueueSize),
		backoff: backoff,
	}
}

// handleChat runs the low-latency half of the chat pipeline on the
// connection handler: validate, broadcast optimistically, ack the
// sender, then hand off to the persistence workers. The claimed sender
// type is only a display hint; the durable record derives its own.
func (g *Gateway) handleChat(client *Client, ev chatSubmit) {
	text := strings.TrimSpace(ev.Text)
	if ev.SessionID == "" || text == "" {
		return
	}

	id := uuid.NewString()
	at := time.Now().UTC()

	senderHint := ev.SenderType
	if senderHint != models.SenderHomeowner && senderHint != models.SenderVisitor {
		senderHint = models.SenderVisitor
	}
	displayName := ev.DisplayName
	if displayName == "" {
		displayName = "Participant"
	}

	job := persistJob{
		MessageID:   id,
		SessionID:   ev.SessionID,
		Text:        text,
		ClientID:    ev.ClientID,
		DisplayName: displayName,
		SenderConn:  client.ID,
		At:          at,
	}

	g.broadcastRoom(sessionRoom(ev.SessionID), "", EventChatMessage,
		chatPayload(job, senderHint, false))
	g.stats.ChatMessage()

	g.push(client, EventChatAck, map[string]interface{}{
		"id":        id,
		"sessionId": ev.SessionID,
		"clientId":  ev.ClientID,
		"at":        at.Format(time.RFC3339Nano),
		"status":    "queued",
	})

	select {
	case g.persist.jobs <- job:
	default:
		// Queue saturated: the message keeps its optimistic delivery
		// but gets its terminal disposition right away.
		log.Printf("chat persistence queue full, dropping message %s", id)
		g.stats.ChatPersistFailed()
		failed := chatPayload(job, senderHint, false)
		failed["error"] = "persistence queue full"
		g.push(client, EventChatPersistFailed, failed)
	}
}

func (g *Gateway) persistWorker() {
	for job := range g.persist.jobs {
		g.persistMessage(job)
	}
}

// persistMessage drives one job to a terminal disposition: either a
// chat.persisted broadcast to the room or a chat.persist_failed notice
// to the sender alone. An unknown session is permanent and skips the
// retry schedule.
func (g *Gateway) persistMessage(job persistJob) {
	var msg *models.Message
	var err error
	for attempt := 0; ; attempt++ {
		msg, err = g.tryPersist(job)
		if err == nil || errors.Is(err, services.ErrSessionNotFound) {
			break
		}
		if attempt >= len(g.persist.backoff) {
			break
		}
		time.Sleep(g.persist.backoff[attempt])
	}

	if err == nil {
		g.stats.ChatPersisted()
		g.broadcastRoom(sessionRoom(job.SessionID), "", EventChatPersisted,
			chatPayload(job, msg.SenderType, true))
		return
	}

	log.Printf("chat message %s dropped after retries: %v", job.MessageID, err)
	g.stats.ChatPersistFailed()

	// The room already holds the optimistic copy; only the sender is
	// told. A sender that disconnected meanwhile simply misses the
	// notice.
	sender := g.client(job.SenderConn)
	if sender == nil {
		return
	}
	failed := chatPayload(job, g.senderTypeFor(job, nil), false)
	failed["error"] = err.Error()
	g.push(sender, EventChatPersistFailed, failed)
}

func (g *Gateway) tryPersist(job persistJob) (*models.Message, error) {
	session, err := g.store.Get(job.SessionID)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:         job.MessageID,
		SessionID:  job.SessionID,
		SenderType: g.senderTypeFor(job, session),
		Body:       job.Text,
		CreatedAt:  job.At,
	}
	if err := g.store.SaveMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// senderTypeFor derives the authoritative sender type: the presence
// identity of the submitting connection compared against the session's
// homeowner. The client's claim is never consulted here.
func (g *Gateway) senderTypeFor(job persistJob, session *models.VisitorSession) string {
	if session == nil {
		loaded, err := g.store.Get(job.SessionID)
		if err != nil {
			return models.SenderVisitor
		}
		session = loaded
	}
	if userID, ok := g.presence.UserFor(job.SenderConn); ok && userID == session.HomeownerID {
		return models.SenderHomeowner
	}
	return models.SenderVisitor
}

func chatPayload(job persistJob, senderType string, persisted bool) map[string]interface{} {
	return map[string]interface{}{
		"id":          job.MessageID,
		"sessionId":   job.SessionID,
		"text":        job.Text,
		"clientId":    job.ClientID,
		"senderType":  senderType,
		"displayName": job.DisplayName,
		"at":          job.At.Format(time.RFC3339Nano),
		"persisted":   persisted,
	}
}
