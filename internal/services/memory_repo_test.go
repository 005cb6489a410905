package services

import (
	"context"
	"sync"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryRepo is an in-memory stand-in for repository.SupportRepository,
// implementing ChatRepository and AuthCodeRepository with the same lookup
// and update semantics.
type memoryRepo struct {
	mu            sync.Mutex
	conversations map[primitive.ObjectID]*models.Conversation
	messages      []*models.Message
	codes         map[primitive.ObjectID]*models.AuthCode

	// collideAlways makes every pending-code lookup hit, to exercise the
	// generation retry bound.
	collideAlways bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		conversations: make(map[primitive.ObjectID]*models.Conversation),
		codes:         make(map[primitive.ObjectID]*models.AuthCode),
	}
}

func (r *memoryRepo) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv.ID = primitive.NewObjectID()
	clone := *conv
	r.conversations[conv.ID] = &clone
	return nil
}

func (r *memoryRepo) GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *conv
	return &clone, nil
}

func (r *memoryRepo) FindOpenConversation(ctx context.Context, owner models.Identity, topic models.ConversationTopic) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.conversations {
		if conv.Status != models.StatusOpen || conv.Topic != topic {
			continue
		}
		if conv.OwnerKey() == owner.Key() {
			clone := *conv
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memoryRepo) ListConversationsForOwner(ctx context.Context, owner models.Identity) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Conversation
	for _, conv := range r.conversations {
		if conv.OwnerKey() == owner.Key() {
			result = append(result, *conv)
		}
	}
	// most recently active first, as the mongo query sorts
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].LastMessageAt.After(result[i].LastMessageAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (r *memoryRepo) UpdateConversationStatus(ctx context.Context, id primitive.ObjectID, status models.ConversationStatus, operatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return models.ErrNotFound
	}
	if conv.Status != models.StatusOpen {
		return models.ErrInvalidState
	}
	conv.Status = status
	if operatorID != "" {
		conv.OperatorID = operatorID
	}
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepo) AssignOperator(ctx context.Context, id primitive.ObjectID, operatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return models.ErrNotFound
	}
	conv.OperatorID = operatorID
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepo) TouchConversation(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.conversations[id]; ok {
		conv.LastMessageAt = at
		conv.UpdatedAt = at
	}
	return nil
}

func (r *memoryRepo) AddMessage(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	clone := *msg
	r.messages = append(r.messages, &clone)
	return nil
}

func (r *memoryRepo) GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.messages {
		if msg.ID == id {
			clone := *msg
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memoryRepo) GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Message
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID {
			result = append(result, *msg)
		}
	}
	return result, nil
}

func (r *memoryRepo) MarkMessageRead(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.messages {
		if msg.ID == id && !msg.IsRead {
			msg.IsRead = true
			readAt := at
			msg.ReadAt = &readAt
		}
	}
	return nil
}

func (r *memoryRepo) CountUnread(ctx context.Context, conversationID primitive.ObjectID, senderKinds []models.SenderKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, msg := range r.messages {
		if msg.ConversationID != conversationID || msg.IsRead {
			continue
		}
		for _, kind := range senderKinds {
			if msg.SenderKind == kind {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *memoryRepo) CountUnreadFromClients(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, msg := range r.messages {
		if msg.IsRead {
			continue
		}
		if msg.SenderKind == models.SenderAccount || msg.SenderKind == models.SenderGuest {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) CreateAuthCode(ctx context.Context, code *models.AuthCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	code.ID = primitive.NewObjectID()
	clone := *code
	r.codes[code.ID] = &clone
	return nil
}

func (r *memoryRepo) FindPendingAuthCode(ctx context.Context, code string) (*models.AuthCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collideAlways {
		return &models.AuthCode{Code: code, Status: models.CodePending}, nil
	}
	for _, ac := range r.codes {
		if ac.Code == code && ac.Status == models.CodePending {
			clone := *ac
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memoryRepo) UpdateAuthCodeStatus(ctx context.Context, id primitive.ObjectID, status models.AuthCodeStatus, usedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac, ok := r.codes[id]
	if !ok {
		return models.ErrNotFound
	}
	ac.Status = status
	if usedAt != nil {
		at := *usedAt
		ac.UsedAt = &at
	}
	return nil
}

func (r *memoryRepo) BindAuthCodeAccount(ctx context.Context, id primitive.ObjectID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ac, ok := r.codes[id]; ok {
		ac.AccountID = accountID
	}
	return nil
}

// storedCode looks a code row up directly, bypassing the pending filter.
func (r *memoryRepo) storedCode(id primitive.ObjectID) *models.AuthCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ac, ok := r.codes[id]; ok {
		clone := *ac
		return &clone
	}
	return nil
}
