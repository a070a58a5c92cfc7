package gateway

import "encoding/json"

// Outbound event names. These are the wire contract and must match the
// frontend exactly.
const (
	EventDashboardSnapshot = "dashboard.snapshot"
	EventDashboardPatch    = "dashboard.patch"

	EventSessionJoined     = "session.joined"
	EventParticipantJoined = "session.participant_joined"
	EventParticipantLeft   = "session.participant_left"

	EventWebRTCOffer  = "webrtc.offer"
	EventWebRTCAnswer = "webrtc.answer"
	EventWebRTCICE    = "webrtc.ice"

	EventChatMessage       = "chat.message"
	EventChatAck           = "chat.ack"
	EventChatPersisted     = "chat.persisted"
	EventChatPersistFailed = "chat.persist_failed"

	EventSessionControl = "session.control"
)

// Inbound command names.
const (
	cmdDashboardSubscribe = "dashboard.subscribe"
	cmdSessionJoin        = "session.join"
)

// Envelope is the framing for every websocket message, both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// inboundEvent is the closed set of commands the gateway handles.
// decodeInbound is the only constructor, so every handled and
// unhandled case is enumerable in the dispatch type switch.
type inboundEvent interface {
	isInbound()
}

type dashboardSubscribe struct {
	Room string `json:"room"`
}

type sessionJoin struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

// webrtcSignal carries an opaque relay payload. The gateway reads only
// the addressing fields; the rest is forwarded untouched.
type webrtcSignal struct {
	event   string
	payload map[string]interface{}
}

type chatSubmit struct {
	SessionID   string `json:"sessionId"`
	Text        string `json:"text"`
	ClientID    string `json:"clientId"`
	SenderType  string `json:"senderType"`
	DisplayName string `json:"displayName"`
}

type sessionControl struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
}

type unknownEvent struct {
	name string
}

func (dashboardSubscribe) isInbound() {}
func (sessionJoin) isInbound()        {}
func (webrtcSignal) isInbound()       {}
func (chatSubmit) isInbound()         {}
func (sessionControl) isInbound()     {}
func (unknownEvent) isInbound()       {}

// decodeInbound maps a raw envelope to its typed variant. Malformed
// payloads decode to unknownEvent; socket commands are fire-and-forget
// so validation failures drop silently.
func decodeInbound(env Envelope) inboundEvent {
	switch env.Type {
	case cmdDashboardSubscribe:
		var ev dashboardSubscribe
		if json.Unmarshal(env.Payload, &ev) != nil {
			return unknownEvent{name: env.Type}
		}
		return ev
	case cmdSessionJoin:
		var ev sessionJoin
		if json.Unmarshal(env.Payload, &ev) != nil {
			return unknownEvent{name: env.Type}
		}
		return ev
	case EventWebRTCOffer, EventWebRTCAnswer, EventWebRTCICE:
		payload := map[string]interface{}{}
		if len(env.Payload) > 0 {
			if json.Unmarshal(env.Payload, &payload) != nil {
				return unknownEvent{name: env.Type}
			}
		}
		return webrtcSignal{event: env.Type, payload: payload}
	case EventChatMessage:
		var ev chatSubmit
		if json.Unmarshal(env.Payload, &ev) != nil {
			return unknownEvent{name: env.Type}
		}
		return ev
	case EventSessionControl:
		var ev sessionControl
		if json.Unmarshal(env.Payload, &ev) != nil {
			return unknownEvent{name: env.Type}
		}
		return ev
	default:
		return unknownEvent{name: env.Type}
	}
}

func sessionRoom(sessionID string) string {
	return "session:" + sessionID
}
