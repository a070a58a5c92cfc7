package gateway

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Channels a connection can attach to.
const (
	ChannelDashboard = "dashboard"
	ChannelSignaling = "signaling"
)

const (
	readWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Client is one live websocket connection. UserID is empty for
// unauthenticated connections; they still join rooms and receive
// broadcasts, identity-addressed delivery just never targets them.
type Client struct {
	ID          string
	Channel     string
	UserID      string
	Role        string
	DisplayName string
	Conn        *websocket.Conn
	Send        chan map[string]interface{}
	ctx         context.Context
	cancel      context.CancelFunc
}

func newClient(channel string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:      uuid.NewString(),
		Channel: channel,
		Conn:    conn,
		Send:    make(chan map[string]interface{}, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// readPump consumes inbound frames until the connection drops, then
// tears the client down. One event at a time: an error in one event's
// handling never affects another connection.
func (g *Gateway) readPump(client *Client) {
	defer func() {
		client.cancel()
		client.Conn.Close()
		g.dropClient(client)
	}()

	client.Conn.SetReadDeadline(time.Now().Add(readWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		var env Envelope
		err := client.Conn.ReadJSON(&env)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		g.dispatch(client, decodeInbound(env))
	}
}

func (g *Gateway) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.ctx.Done():
			return

		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(message); err != nil {
				log.Printf("WriteJSON error: %v", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
