package ws

import (
	"encoding/json"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"
)

// Event names of the connection-level contract. Inbound events come from the
// client, outbound events are fanned out to rooms.
const (
	EventConnectOK    = "connect:ok"
	EventConnectError = "connect:error"
	EventError        = "error"

	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"

	EventMessageSend     = "message:send"
	EventMessageReceived = "message:received"
	EventMessageRead     = "message:read"

	EventUnreadCount      = "unread_count"
	EventTotalUnreadCount = "unread_count:total"

	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"

	EventNewActivity = "conversation:new_activity"
)

// Inbound is a raw client frame; Data is decoded per event.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a server frame queued on a client's send channel.
type Outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ConnectOKPayload struct {
	IdentityKind models.IdentityKind `json:"identity_kind"`
	GuestToken   string              `json:"guest_token,omitempty"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

type SendPayload struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Topic          string          `json:"topic,omitempty" validate:"omitempty,oneof=general onboarding call_request"`
	Subject        string          `json:"subject,omitempty"`
	Body           string          `json:"body" validate:"required_without=File"`
	Kind           string          `json:"kind,omitempty" validate:"omitempty,oneof=text file system auth_code"`
	File           *models.FileRef `json:"file,omitempty"`
}

type ReadPayload struct {
	MessageID string `json:"message_id"`
}

type ReadConfirmPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type UnreadCountPayload struct {
	ConversationID string              `json:"conversation_id"`
	Viewer         models.IdentityKind `json:"viewer"`
	Count          int64               `json:"count"`
}

type TotalUnreadPayload struct {
	Count int64 `json:"count"`
}

type TypingPayload struct {
	ConversationID string            `json:"conversation_id"`
	SenderKind     models.SenderKind `json:"sender_kind,omitempty"`
}

type NewActivityPayload struct {
	ConversationID string                   `json:"conversation_id"`
	Topic          models.ConversationTopic `json:"topic"`
	Preview        string                   `json:"preview"`
}
