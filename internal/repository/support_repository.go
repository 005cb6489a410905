package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SupportRepository struct {
	conversationsCol *mongo.Collection
	messagesCol      *mongo.Collection
	authCodesCol     *mongo.Collection
}

func NewSupportRepository(db *mongo.Database) *SupportRepository {
	return &SupportRepository{
		conversationsCol: db.Collection("support_conversations"),
		messagesCol:      db.Collection("support_messages"),
		authCodesCol:     db.Collection("auth_codes"),
	}
}

// --- Conversations ---

func (r *SupportRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	conv.ID = primitive.NewObjectID()
	_, err := r.conversationsCol.InsertOne(ctx, conv)
	return err
}

func (r *SupportRepository) GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.conversationsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *SupportRepository) FindOpenConversation(ctx context.Context, owner models.Identity, topic models.ConversationTopic) (*models.Conversation, error) {
	filter := ownerFilter(owner)
	filter["topic"] = topic
	filter["status"] = models.StatusOpen

	var conv models.Conversation
	err := r.conversationsCol.FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *SupportRepository) ListConversationsForOwner(ctx context.Context, owner models.Identity) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := r.conversationsCol.Find(ctx, ownerFilter(owner), opts)
	if err != nil {
		return nil, err
	}
	var result []models.Conversation
	err = cursor.All(ctx, &result)
	return result, err
}

// UpdateConversationStatus moves an open conversation to a terminal status.
// The filter matches on status=open so two racing transitions cannot both
// win; the loser sees ErrInvalidState.
func (r *SupportRepository) UpdateConversationStatus(ctx context.Context, id primitive.ObjectID, status models.ConversationStatus, operatorID string) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if operatorID != "" {
		set["operator_id"] = operatorID
	}
	res, err := r.conversationsCol.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusOpen},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetConversationByID(ctx, id); err != nil {
			return err
		}
		return models.ErrInvalidState
	}
	return nil
}

func (r *SupportRepository) AssignOperator(ctx context.Context, id primitive.ObjectID, operatorID string) error {
	res, err := r.conversationsCol.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"operator_id": operatorID,
			"updated_at":  time.Now().UTC(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// TouchConversation bumps last_message_at to the instant of the append it
// follows, keeping listing order consistent with message order.
func (r *SupportRepository) TouchConversation(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.conversationsCol.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"last_message_at": at,
			"updated_at":      at,
		},
	})
	return err
}

// --- Messages ---

func (r *SupportRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	_, err := r.messagesCol.InsertOne(ctx, msg)
	return err
}

func (r *SupportRepository) GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := r.messagesCol.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *SupportRepository) GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.messagesCol.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	var result []models.Message
	err = cursor.All(ctx, &result)
	return result, err
}

// MarkMessageRead flips is_read once; a message already read is left as is,
// so read_at keeps the instant of the first read.
func (r *SupportRepository) MarkMessageRead(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.messagesCol.UpdateOne(ctx,
		bson.M{"_id": id, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at}},
	)
	return err
}

func (r *SupportRepository) CountUnread(ctx context.Context, conversationID primitive.ObjectID, senderKinds []models.SenderKind) (int64, error) {
	return r.messagesCol.CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"sender_kind":     bson.M{"$in": senderKinds},
		"is_read":         false,
	})
}

// CountUnreadFromClients is the platform-wide total of unread account/guest
// messages, broadcast to the operator pool.
func (r *SupportRepository) CountUnreadFromClients(ctx context.Context) (int64, error) {
	return r.messagesCol.CountDocuments(ctx, bson.M{
		"sender_kind": bson.M{"$in": []models.SenderKind{models.SenderAccount, models.SenderGuest}},
		"is_read":     false,
	})
}

// --- Auth codes ---

func (r *SupportRepository) CreateAuthCode(ctx context.Context, code *models.AuthCode) error {
	code.ID = primitive.NewObjectID()
	_, err := r.authCodesCol.InsertOne(ctx, code)
	return err
}

func (r *SupportRepository) FindPendingAuthCode(ctx context.Context, code string) (*models.AuthCode, error) {
	var ac models.AuthCode
	err := r.authCodesCol.FindOne(ctx, bson.M{
		"code":   code,
		"status": models.CodePending,
	}).Decode(&ac)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *SupportRepository) UpdateAuthCodeStatus(ctx context.Context, id primitive.ObjectID, status models.AuthCodeStatus, usedAt *time.Time) error {
	set := bson.M{"status": status}
	if usedAt != nil {
		set["used_at"] = usedAt
	}
	res, err := r.authCodesCol.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SupportRepository) BindAuthCodeAccount(ctx context.Context, id primitive.ObjectID, accountID string) error {
	_, err := r.authCodesCol.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"account_id": accountID},
	})
	return err
}

func ownerFilter(owner models.Identity) bson.M {
	if owner.Kind == models.IdentityAccount {
		return bson.M{"account_id": owner.AccountID}
	}
	return bson.M{"guest_token": owner.GuestToken}
}
