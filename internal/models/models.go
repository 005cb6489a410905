package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConversationStatus string

const (
	StatusOpen     ConversationStatus = "open"
	StatusClosed   ConversationStatus = "closed"
	StatusResolved ConversationStatus = "resolved"
)

// IsTerminal reports whether the status allows no further transitions.
func (s ConversationStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusResolved
}

type ConversationTopic string

const (
	TopicGeneral     ConversationTopic = "general"
	TopicOnboarding  ConversationTopic = "onboarding"
	TopicCallRequest ConversationTopic = "call_request"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type SenderKind string

const (
	SenderAccount  SenderKind = "account"
	SenderOperator SenderKind = "operator"
	SenderGuest    SenderKind = "guest"
	SenderSystem   SenderKind = "system"
)

type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageFile     MessageKind = "file"
	MessageSystem   MessageKind = "system"
	MessageAuthCode MessageKind = "auth_code"
)

// Conversation is one support thread. Exactly one of AccountID/GuestToken
// is set; the pair (owner, topic) has at most one open conversation at a time.
type Conversation struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AccountID     string             `bson:"account_id,omitempty" json:"account_id,omitempty"`
	GuestToken    string             `bson:"guest_token,omitempty" json:"guest_token,omitempty"`
	OperatorID    string             `bson:"operator_id,omitempty" json:"operator_id,omitempty"`
	Topic         ConversationTopic  `bson:"topic" json:"topic"`
	Subject       string             `bson:"subject,omitempty" json:"subject,omitempty"`
	Status        ConversationStatus `bson:"status" json:"status"`
	Priority      Priority           `bson:"priority" json:"priority"`
	LastMessageAt time.Time          `bson:"last_message_at" json:"last_message_at"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// OwnerKey returns the identity key of the conversation owner,
// matching Identity.Key for the account or guest that opened it.
func (c *Conversation) OwnerKey() string {
	if c.AccountID != "" {
		return "account:" + c.AccountID
	}
	return "guest:" + c.GuestToken
}

// ConversationSummary is a conversation annotated with the viewer's
// live unread count, as returned by listings.
type ConversationSummary struct {
	Conversation `bson:",inline"`
	UnreadCount  int64 `json:"unread_count"`
}

// FileRef points at an uploaded attachment. The upload itself is handled
// by the media collaborator; messages only carry the reference.
type FileRef struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Size int64  `bson:"size" json:"size"`
}

// Message is append-only: after creation only IsRead/ReadAt may change,
// and only from unread to read.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	SenderKind     SenderKind         `bson:"sender_kind" json:"sender_kind"`
	SenderRef      string             `bson:"sender_ref" json:"sender_ref"`
	Body           string             `bson:"body" json:"body"`
	Kind           MessageKind        `bson:"kind" json:"kind"`
	File           *FileRef           `bson:"file,omitempty" json:"file,omitempty"`
	IsRead         bool               `bson:"is_read" json:"is_read"`
	ReadAt         *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

type AuthCodeStatus string

const (
	CodePending AuthCodeStatus = "pending"
	CodeUsed    AuthCodeStatus = "used"
	CodeExpired AuthCodeStatus = "expired"
)

// AuthCode is a short-lived one-time code an operator hands to a chat
// participant to bridge into the account-linking flow.
type AuthCode struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Code           string              `bson:"code" json:"code"`
	OperatorID     string              `bson:"operator_id" json:"operator_id"`
	AccountID      string              `bson:"account_id,omitempty" json:"account_id,omitempty"`
	GuestToken     string              `bson:"guest_token,omitempty" json:"guest_token,omitempty"`
	ConversationID *primitive.ObjectID `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	Status         AuthCodeStatus      `bson:"status" json:"status"`
	ExpiresAt      time.Time           `bson:"expires_at" json:"expires_at"`
	UsedAt         *time.Time          `bson:"used_at,omitempty" json:"used_at,omitempty"`
	DeviceInfo     string              `bson:"device_info,omitempty" json:"device_info,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
}
