package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatRepository is the storage contract of the chat service. Satisfied by
// repository.SupportRepository; unread counting stays behind it so the
// storage technology can change without touching broadcast code.
type ChatRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindOpenConversation(ctx context.Context, owner models.Identity, topic models.ConversationTopic) (*models.Conversation, error)
	ListConversationsForOwner(ctx context.Context, owner models.Identity) ([]models.Conversation, error)
	UpdateConversationStatus(ctx context.Context, id primitive.ObjectID, status models.ConversationStatus, operatorID string) error
	AssignOperator(ctx context.Context, id primitive.ObjectID, operatorID string) error
	TouchConversation(ctx context.Context, id primitive.ObjectID, at time.Time) error

	AddMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]models.Message, error)
	MarkMessageRead(ctx context.Context, id primitive.ObjectID, at time.Time) error
	CountUnread(ctx context.Context, conversationID primitive.ObjectID, senderKinds []models.SenderKind) (int64, error)
	CountUnreadFromClients(ctx context.Context) (int64, error)
}

type ChatService struct {
	repo ChatRepository

	// createMu serializes conversation creation per (owner, topic) so two
	// simultaneous get-or-create calls cannot both open a thread.
	createMu    sync.Mutex
	createLocks map[string]*sync.Mutex
}

func NewChatService(repo ChatRepository) *ChatService {
	return &ChatService{
		repo:        repo,
		createLocks: make(map[string]*sync.Mutex),
	}
}

func (s *ChatService) creationLock(key string) *sync.Mutex {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	lock, ok := s.createLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.createLocks[key] = lock
	}
	return lock
}

// GetOrCreateActive returns the single open conversation for the identity and
// topic, creating it when none is open. Closed and resolved conversations are
// never reopened; the next message simply starts a fresh thread.
func (s *ChatService) GetOrCreateActive(ctx context.Context, owner models.Identity, topic models.ConversationTopic, subject string) (*models.Conversation, bool, error) {
	if owner.Kind == models.IdentityOperator {
		return nil, false, fmt.Errorf("%w: operators do not own conversations", models.ErrValidation)
	}
	if topic == "" {
		topic = models.TopicGeneral
	}

	lock := s.creationLock(owner.Key() + "|" + string(topic))
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.repo.FindOpenConversation(ctx, owner, topic)
	if err == nil {
		return conv, false, nil
	}
	if err != models.ErrNotFound {
		return nil, false, err
	}

	now := time.Now().UTC()
	conv = &models.Conversation{
		AccountID:     owner.AccountID,
		GuestToken:    owner.GuestToken,
		Topic:         topic,
		Subject:       strings.TrimSpace(subject),
		Status:        models.StatusOpen,
		Priority:      models.PriorityNormal,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

func (s *ChatService) GetConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	return s.repo.GetConversationByID(ctx, id)
}

// SetStatus moves an open conversation to closed or resolved. Operator-only;
// terminal conversations reject further transitions.
func (s *ChatService) SetStatus(ctx context.Context, id primitive.ObjectID, status models.ConversationStatus, operator models.Identity) error {
	if !operator.IsOperator() {
		return fmt.Errorf("%w: only operators may change conversation status", models.ErrAuthenticationFailed)
	}
	if status != models.StatusClosed && status != models.StatusResolved {
		return fmt.Errorf("%w: status %q is not a valid target", models.ErrValidation, status)
	}

	conv, err := s.repo.GetConversationByID(ctx, id)
	if err != nil {
		return err
	}
	if conv.Status.IsTerminal() {
		return fmt.Errorf("%w: conversation is already %s", models.ErrInvalidState, conv.Status)
	}
	return s.repo.UpdateConversationStatus(ctx, id, status, operator.OperatorID)
}

// Assign sets the handling operator. Allowed regardless of status.
func (s *ChatService) Assign(ctx context.Context, id primitive.ObjectID, operatorID string) error {
	if operatorID == "" {
		return fmt.Errorf("%w: operator id required", models.ErrValidation)
	}
	return s.repo.AssignOperator(ctx, id, operatorID)
}

// ListForIdentity returns the identity's conversations, most recently active
// first, each with the viewer's live unread count.
func (s *ChatService) ListForIdentity(ctx context.Context, owner models.Identity) ([]models.ConversationSummary, error) {
	convs, err := s.repo.ListConversationsForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		count, err := s.repo.CountUnread(ctx, conv.ID, unreadSenderKinds(owner.Kind))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ConversationSummary{Conversation: conv, UnreadCount: count})
	}
	return summaries, nil
}

// AppendMessage persists a message with a server-assigned UTC instant and
// bumps the conversation's last_message_at. Closed and resolved conversations
// still accept messages: a late "thanks" after resolution must not be dropped,
// and new threads come from GetOrCreateActive anyway.
func (s *ChatService) AppendMessage(ctx context.Context, conversationID primitive.ObjectID, sender models.Identity, body string, kind models.MessageKind, file *models.FileRef) (*models.Message, error) {
	if body == "" && file == nil {
		return nil, fmt.Errorf("%w: empty message", models.ErrValidation)
	}
	if kind == "" {
		kind = models.MessageText
	}

	if _, err := s.repo.GetConversationByID(ctx, conversationID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ConversationID: conversationID,
		SenderKind:     sender.SenderKind(),
		SenderRef:      sender.Ref(),
		Body:           body,
		Kind:           kind,
		File:           file,
		IsRead:         false,
		CreatedAt:      now,
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.repo.TouchConversation(ctx, conversationID, now); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ChatService) Messages(ctx context.Context, conversationID primitive.ObjectID) ([]models.Message, error) {
	if _, err := s.repo.GetConversationByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.repo.GetMessagesByConversation(ctx, conversationID)
}

// UnreadCount computes the viewer's unread count fresh from the message log.
// Operators count unread account/guest messages; account and guest viewers
// count unread operator/system messages.
func (s *ChatService) UnreadCount(ctx context.Context, conversationID primitive.ObjectID, viewer models.IdentityKind) (int64, error) {
	return s.repo.CountUnread(ctx, conversationID, unreadSenderKinds(viewer))
}

// TotalUnreadForOperators is the platform-wide unread total shown to the
// operator pool.
func (s *ChatService) TotalUnreadForOperators(ctx context.Context) (int64, error) {
	return s.repo.CountUnreadFromClients(ctx)
}

// MarkRead marks a message read (idempotently) and returns the conversation
// id together with the viewer's recomputed unread count for rebroadcast.
// Only the conversation's owner or an operator may mark its messages.
func (s *ChatService) MarkRead(ctx context.Context, messageID primitive.ObjectID, viewer models.Identity) (primitive.ObjectID, int64, error) {
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return primitive.NilObjectID, 0, err
	}
	conv, err := s.repo.GetConversationByID(ctx, msg.ConversationID)
	if err != nil {
		return primitive.NilObjectID, 0, err
	}
	if !viewer.IsOperator() && conv.OwnerKey() != viewer.Key() {
		return primitive.NilObjectID, 0, fmt.Errorf("%w: not a participant of this conversation", models.ErrAuthenticationFailed)
	}
	if !msg.IsRead {
		if err := s.repo.MarkMessageRead(ctx, messageID, time.Now().UTC()); err != nil {
			return primitive.NilObjectID, 0, err
		}
	}
	count, err := s.repo.CountUnread(ctx, msg.ConversationID, unreadSenderKinds(viewer.Kind))
	if err != nil {
		return primitive.NilObjectID, 0, err
	}
	return msg.ConversationID, count, nil
}

func unreadSenderKinds(viewer models.IdentityKind) []models.SenderKind {
	if viewer == models.IdentityOperator {
		return []models.SenderKind{models.SenderAccount, models.SenderGuest}
	}
	return []models.SenderKind{models.SenderOperator, models.SenderSystem}
}
