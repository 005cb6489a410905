package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"
	"github.com/cambiartech/buykoins-be-sub000/internal/services"
	"github.com/cambiartech/buykoins-be-sub000/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const opTimeout = 10 * time.Second

// SocketHandler owns the socket side of the support chat: it resolves the
// connecting identity, registers the connection with the hub and routes every
// inbound event through the chat service and back out to the right rooms.
type SocketHandler struct {
	hub      *Hub
	chat     *services.ChatService
	notifier *services.NotifierService
	resolver *utils.IdentityResolver
	upgrader websocket.Upgrader

	// orderLocks serializes append+fan-out per conversation: without it two
	// connections could commit in one order and broadcast in the other.
	orderMu    sync.Mutex
	orderLocks map[string]*sync.Mutex
}

func NewSocketHandler(hub *Hub, chat *services.ChatService, notifier *services.NotifierService, resolver *utils.IdentityResolver) *SocketHandler {
	return &SocketHandler{
		hub:      hub,
		chat:     chat,
		notifier: notifier,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		orderLocks: make(map[string]*sync.Mutex),
	}
}

func (h *SocketHandler) conversationLock(id string) *sync.Mutex {
	h.orderMu.Lock()
	defer h.orderMu.Unlock()
	lock, ok := h.orderLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		h.orderLocks[id] = lock
	}
	return lock
}

func (h *SocketHandler) Hub() *Hub { return h.hub }

// HandleConnection upgrades the request and resolves the identity. A failed
// resolution gets exactly one error event and a forced close; there is no
// silent downgrade and no server-side retry.
func (h *SocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	bearer := c.Query("token")
	if bearer == "" {
		bearer = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	}
	guestToken := c.Query("guest_token")

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	identity, minted, err := h.resolver.Resolve(ctx, bearer, guestToken)
	cancel()
	if err != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(Outbound{Event: EventConnectError, Data: ErrorPayload{Reason: err.Error()}})
		conn.Close()
		return
	}

	client := newClient(h.hub, conn, identity)
	h.hub.Register(client)

	ok := ConnectOKPayload{IdentityKind: identity.Kind}
	if minted {
		// Freshly minted guest token goes back to the caller so the next
		// connection can present it.
		ok.GuestToken = identity.GuestToken
	}
	client.enqueue(Outbound{Event: EventConnectOK, Data: ok})

	go client.writePump()
	go client.readPump(h.dispatch)
}

func (h *SocketHandler) dispatch(c *Client, in Inbound) {
	switch in.Event {
	case EventConversationJoin:
		h.handleJoin(c, in.Data)
	case EventConversationLeave:
		h.handleLeave(c, in.Data)
	case EventMessageSend:
		h.handleSend(c, in.Data)
	case EventMessageRead:
		h.handleRead(c, in.Data)
	case EventTypingStart, EventTypingStop:
		h.handleTyping(c, in.Event, in.Data)
	default:
		h.sendError(c, "unknown event: "+in.Event)
	}
}

// handleJoin puts the connection in a conversation room. Operators may
// observe any thread; accounts and guests only their own.
func (h *SocketHandler) handleJoin(c *Client, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, "malformed join payload")
		return
	}
	convID, err := primitive.ObjectIDFromHex(payload.ConversationID)
	if err != nil {
		h.sendError(c, "invalid conversation id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	conv, err := h.chat.GetConversation(ctx, convID)
	if err != nil {
		h.sendError(c, "conversation not found")
		return
	}
	if !c.identity.IsOperator() && conv.OwnerKey() != c.identity.Key() {
		h.sendError(c, "not a participant of this conversation")
		return
	}
	h.hub.Join(c, ConversationRoom(payload.ConversationID))
}

func (h *SocketHandler) handleLeave(c *Client, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, "malformed leave payload")
		return
	}
	h.hub.Leave(c, ConversationRoom(payload.ConversationID))
}

// handleSend appends the message and fans out. The append is the ordering
// point: append and broadcast happen under the conversation's ordering lock,
// so subscribers see messages in append order even with concurrent senders.
func (h *SocketHandler) handleSend(c *Client, data json.RawMessage) {
	var payload SendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, "malformed message payload")
		return
	}
	if err := utils.ValidateStruct(payload); err != nil {
		h.sendError(c, "invalid message payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var convID primitive.ObjectID
	if payload.ConversationID == "" {
		// First message of a thread: get-or-create by topic.
		if c.identity.IsOperator() {
			h.sendError(c, "operators must address an existing conversation")
			return
		}
		conv, _, err := h.chat.GetOrCreateActive(ctx, c.identity, models.ConversationTopic(payload.Topic), payload.Subject)
		if err != nil {
			h.sendError(c, "could not open conversation")
			return
		}
		convID = conv.ID
	} else {
		var err error
		convID, err = primitive.ObjectIDFromHex(payload.ConversationID)
		if err != nil {
			h.sendError(c, "invalid conversation id")
			return
		}
	}

	lock := h.conversationLock(convID.Hex())
	lock.Lock()
	defer lock.Unlock()

	msg, err := h.chat.AppendMessage(ctx, convID, c.identity, payload.Body, models.MessageKind(payload.Kind), payload.File)
	if err != nil {
		h.sendError(c, "could not send message")
		return
	}

	room := ConversationRoom(convID.Hex())
	h.hub.Join(c, room)
	h.hub.Broadcast(room, Outbound{Event: EventMessageReceived, Data: msg})

	conv, err := h.chat.GetConversation(ctx, convID)
	if err != nil {
		log.Printf("[WS] conversation lookup failed after append to %s: %v", convID.Hex(), err)
		return
	}
	if c.identity.IsOperator() {
		// Receiving side is the thread owner: their unread went up.
		h.emitUnread(ctx, convID, ownerViewer(conv))
	} else {
		h.hub.Broadcast(OperatorsPool, Outbound{Event: EventNewActivity, Data: NewActivityPayload{
			ConversationID: convID.Hex(),
			Topic:          conv.Topic,
			Preview:        preview(msg.Body),
		}})
		h.emitUnread(ctx, convID, models.IdentityOperator)
		h.emitTotalUnread(ctx)
		go h.notifyOperators(convID.Hex(), preview(msg.Body))
	}
}

// handleRead marks the message read and rebroadcasts the confirmation and the
// recomputed counts, again only after the write committed.
func (h *SocketHandler) handleRead(c *Client, data json.RawMessage) {
	var payload ReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, "malformed read payload")
		return
	}
	msgID, err := primitive.ObjectIDFromHex(payload.MessageID)
	if err != nil {
		h.sendError(c, "invalid message id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	convID, count, err := h.chat.MarkRead(ctx, msgID, c.identity)
	if err != nil {
		h.sendError(c, "could not mark message read")
		return
	}

	room := ConversationRoom(convID.Hex())
	h.hub.Broadcast(room, Outbound{Event: EventMessageRead, Data: ReadConfirmPayload{
		MessageID:      payload.MessageID,
		ConversationID: convID.Hex(),
	}})
	h.hub.Broadcast(room, Outbound{Event: EventUnreadCount, Data: UnreadCountPayload{
		ConversationID: convID.Hex(),
		Viewer:         c.identity.Kind,
		Count:          count,
	}})
	if c.identity.IsOperator() {
		h.emitTotalUnread(ctx)
	}
}

// handleTyping relays the indicator to everyone else in the room. Ephemeral:
// nothing is persisted, nothing is acknowledged.
func (h *SocketHandler) handleTyping(c *Client, event string, data json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	payload.SenderKind = c.identity.SenderKind()
	h.hub.BroadcastExcept(ConversationRoom(payload.ConversationID), c, Outbound{Event: event, Data: payload})
}

func (h *SocketHandler) emitUnread(ctx context.Context, convID primitive.ObjectID, viewer models.IdentityKind) {
	count, err := h.chat.UnreadCount(ctx, convID, viewer)
	if err != nil {
		log.Printf("[WS] unread count failed for %s: %v", convID.Hex(), err)
		return
	}
	h.hub.Broadcast(ConversationRoom(convID.Hex()), Outbound{Event: EventUnreadCount, Data: UnreadCountPayload{
		ConversationID: convID.Hex(),
		Viewer:         viewer,
		Count:          count,
	}})
}

func (h *SocketHandler) emitTotalUnread(ctx context.Context) {
	total, err := h.chat.TotalUnreadForOperators(ctx)
	if err != nil {
		log.Printf("[WS] total unread failed: %v", err)
		return
	}
	h.hub.Broadcast(OperatorsPool, Outbound{Event: EventTotalUnreadCount, Data: TotalUnreadPayload{Count: total}})
}

// notifyOperators fans the alert out through the notification collaborator,
// reaching operators beyond the currently connected sockets. Best effort.
func (h *SocketHandler) notifyOperators(conversationID, msgPreview string) {
	if h.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ids, err := h.notifier.ListActiveOperatorIDs(ctx)
	if err != nil {
		log.Printf("[WS] operator directory unavailable: %v", err)
		return
	}
	for _, id := range ids {
		if err := h.notifier.SendChatAlert(ctx, id, conversationID, msgPreview); err != nil {
			log.Printf("[WS] alert to operator %s failed: %v", id, err)
		}
	}
}

func (h *SocketHandler) sendError(c *Client, reason string) {
	c.enqueue(Outbound{Event: EventError, Data: ErrorPayload{Reason: reason}})
}

func ownerViewer(conv *models.Conversation) models.IdentityKind {
	if conv.AccountID != "" {
		return models.IdentityAccount
	}
	return models.IdentityGuest
}

func preview(body string) string {
	const max = 80
	if len(body) <= max {
		return body
	}
	return body[:max] + "…"
}
