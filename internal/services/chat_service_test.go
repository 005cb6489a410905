package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGetOrCreateActive_Concurrent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	guest := models.GuestIdentity("guest_1699999999999_a1B2c3D4e5")

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := svc.GetOrCreateActive(context.Background(), guest, models.TopicGeneral, "")
			if err != nil {
				t.Errorf("GetOrCreateActive: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(repo.conversations); got != 1 {
		t.Errorf("open conversations after %d concurrent calls = %d, want 1", n, got)
	}
}

func TestGetOrCreateActive_NewThreadAfterTerminal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.AccountIdentity("acc-1")
	operator := models.OperatorIdentity("op-1", nil)

	first, created, err := svc.GetOrCreateActive(context.Background(), owner, models.TopicGeneral, "hello")
	if err != nil || !created {
		t.Fatalf("first call = (%v, %v), want created", created, err)
	}

	// Same pair returns the same open conversation.
	same, created, err := svc.GetOrCreateActive(context.Background(), owner, models.TopicGeneral, "")
	if err != nil || created || same.ID != first.ID {
		t.Fatalf("second call returned new conversation")
	}

	// A different topic opens its own thread.
	other, created, err := svc.GetOrCreateActive(context.Background(), owner, models.TopicOnboarding, "")
	if err != nil || !created || other.ID == first.ID {
		t.Fatalf("different topic should create a separate conversation")
	}

	// Once resolved, the next call starts a brand-new thread.
	if err := svc.SetStatus(context.Background(), first.ID, models.StatusResolved, operator); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	fresh, created, err := svc.GetOrCreateActive(context.Background(), owner, models.TopicGeneral, "")
	if err != nil || !created {
		t.Fatalf("post-resolve call = (%v, %v), want created", created, err)
	}
	if fresh.ID == first.ID {
		t.Error("resolved conversation was reopened")
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.GuestIdentity("guest_1699999999999_a1B2c3D4e5")
	operator := models.OperatorIdentity("op-1", nil)

	conv, _, err := svc.GetOrCreateActive(context.Background(), owner, models.TopicGeneral, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetStatus(context.Background(), conv.ID, models.StatusClosed, owner); !errors.Is(err, models.ErrAuthenticationFailed) {
		t.Errorf("non-operator SetStatus = %v, want ErrAuthenticationFailed", err)
	}
	if err := svc.SetStatus(context.Background(), conv.ID, models.StatusOpen, operator); !errors.Is(err, models.ErrValidation) {
		t.Errorf("SetStatus(open) = %v, want ErrValidation", err)
	}
	if err := svc.SetStatus(context.Background(), conv.ID, models.StatusClosed, operator); err != nil {
		t.Fatalf("open→closed: %v", err)
	}
	if err := svc.SetStatus(context.Background(), conv.ID, models.StatusResolved, operator); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("closed→resolved = %v, want ErrInvalidState", err)
	}
}

func TestSetStatus_ConcurrentTransitionsSingleWinner(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.AccountIdentity("acc-1")
	ctx := context.Background()

	conv, _, err := svc.GetOrCreateActive(ctx, owner, models.TopicGeneral, "")
	if err != nil {
		t.Fatal(err)
	}

	targets := []models.ConversationStatus{models.StatusClosed, models.StatusResolved}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	wg.Add(len(targets))
	for i, status := range targets {
		go func(i int, status models.ConversationStatus) {
			defer wg.Done()
			op := models.OperatorIdentity("op-a", nil)
			errs[i] = svc.SetStatus(ctx, conv.ID, status, op)
		}(i, status)
	}
	wg.Wait()

	var winners int
	var final models.ConversationStatus
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
			final = targets[i]
		case errors.Is(err, models.ErrInvalidState):
		default:
			t.Fatalf("SetStatus(%s) = %v", targets[i], err)
		}
	}
	if winners != 1 {
		t.Fatalf("winning transitions = %d, want exactly 1", winners)
	}
	got, _ := svc.GetConversation(ctx, conv.ID)
	if got.Status != final {
		t.Errorf("status = %s, want the winner's %s", got.Status, final)
	}
}

func TestAssign_IndependentOfStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.AccountIdentity("acc-1")
	operator := models.OperatorIdentity("op-1", nil)

	conv, _, _ := svc.GetOrCreateActive(context.Background(), owner, models.TopicGeneral, "")
	if err := svc.SetStatus(context.Background(), conv.ID, models.StatusClosed, operator); err != nil {
		t.Fatal(err)
	}

	// Re-assignment stays allowed on a terminal conversation.
	if err := svc.Assign(context.Background(), conv.ID, "op-2"); err != nil {
		t.Fatalf("Assign on closed conversation: %v", err)
	}
	got, _ := svc.GetConversation(context.Background(), conv.ID)
	if got.OperatorID != "op-2" {
		t.Errorf("operator = %q, want op-2", got.OperatorID)
	}
}

func TestAppendMessage_ServerTimestampAndTouch(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.AccountIdentity("acc-1")

	conv, _, _ := svc.GetOrCreateActive(context.Background(), owner, models.TopicGeneral, "")

	before := time.Now().UTC()
	msg, err := svc.AppendMessage(context.Background(), conv.ID, owner, "hello", models.MessageText, nil)
	if err != nil {
		t.Fatal(err)
	}
	after := time.Now().UTC()

	if msg.CreatedAt.Location() != time.UTC {
		t.Error("message timestamp is not UTC")
	}
	if msg.CreatedAt.Before(before) || msg.CreatedAt.After(after) {
		t.Error("message timestamp is not server-assigned")
	}

	got, _ := svc.GetConversation(context.Background(), conv.ID)
	if !got.LastMessageAt.Equal(msg.CreatedAt) {
		t.Errorf("last_message_at = %v, want %v", got.LastMessageAt, msg.CreatedAt)
	}
}

func TestAppendMessage_ClosedConversationStillAccepts(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.AccountIdentity("acc-1")
	operator := models.OperatorIdentity("op-1", nil)

	conv, _, _ := svc.GetOrCreateActive(context.Background(), owner, models.TopicGeneral, "")
	if err := svc.SetStatus(context.Background(), conv.ID, models.StatusResolved, operator); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AppendMessage(context.Background(), conv.ID, owner, "thanks!", models.MessageText, nil); err != nil {
		t.Errorf("append into resolved conversation = %v, want nil", err)
	}
}

func TestAppendMessage_MissingConversation(t *testing.T) {
	svc := NewChatService(newMemoryRepo())
	owner := models.AccountIdentity("acc-1")

	_, err := svc.AppendMessage(context.Background(), primitive.NewObjectID(), owner, "hello", models.MessageText, nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("append to missing conversation = %v, want ErrNotFound", err)
	}
}

func TestUnreadCounts_GuestOperatorScenario(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	guest := models.GuestIdentity("guest_1699999999999_a1B2c3D4e5")
	operator := models.OperatorIdentity("op-a", nil)
	ctx := context.Background()

	conv, _, _ := svc.GetOrCreateActive(ctx, guest, models.TopicGeneral, "")
	hello, err := svc.AppendMessage(ctx, conv.ID, guest, "hello", models.MessageText, nil)
	if err != nil {
		t.Fatal(err)
	}

	if count, _ := svc.UnreadCount(ctx, conv.ID, models.IdentityOperator); count != 1 {
		t.Errorf("operator unread after guest hello = %d, want 1", count)
	}
	if count, _ := svc.UnreadCount(ctx, conv.ID, models.IdentityGuest); count != 0 {
		t.Errorf("guest unread of own message = %d, want 0", count)
	}

	if _, count, err := svc.MarkRead(ctx, hello.ID, operator); err != nil || count != 0 {
		t.Fatalf("operator MarkRead = (%d, %v), want (0, nil)", count, err)
	}
	if count, _ := svc.UnreadCount(ctx, conv.ID, models.IdentityGuest); count != 0 {
		t.Errorf("guest unread before operator reply = %d, want 0", count)
	}

	if _, err := svc.AppendMessage(ctx, conv.ID, operator, "hi, how can I help?", models.MessageText, nil); err != nil {
		t.Fatal(err)
	}
	if count, _ := svc.UnreadCount(ctx, conv.ID, models.IdentityGuest); count != 1 {
		t.Errorf("guest unread after operator reply = %d, want 1", count)
	}
	if total, _ := svc.TotalUnreadForOperators(ctx); total != 0 {
		t.Errorf("platform unread for operators = %d, want 0", total)
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	guest := models.GuestIdentity("guest_1699999999999_a1B2c3D4e5")
	operator := models.OperatorIdentity("op-a", nil)
	ctx := context.Background()

	conv, _, _ := svc.GetOrCreateActive(ctx, guest, models.TopicGeneral, "")
	msg, _ := svc.AppendMessage(ctx, conv.ID, guest, "hello", models.MessageText, nil)

	convID1, count1, err := svc.MarkRead(ctx, msg.ID, operator)
	if err != nil {
		t.Fatal(err)
	}
	first, _ := svc.Messages(ctx, conv.ID)

	convID2, count2, err := svc.MarkRead(ctx, msg.ID, operator)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := svc.Messages(ctx, conv.ID)

	if convID1 != convID2 || count1 != count2 {
		t.Errorf("second MarkRead = (%v, %d), want (%v, %d)", convID2, count2, convID1, count1)
	}
	if !first[0].ReadAt.Equal(*second[0].ReadAt) {
		t.Error("second MarkRead moved read_at")
	}
}

func TestMarkRead_ForeignIdentityRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.GuestIdentity("guest_1699999999999_a1B2c3D4e5")
	stranger := models.GuestIdentity("guest_1699999999998_z9Y8x7W6v5")
	operator := models.OperatorIdentity("op-a", nil)
	ctx := context.Background()

	conv, _, _ := svc.GetOrCreateActive(ctx, owner, models.TopicGeneral, "")
	msg, _ := svc.AppendMessage(ctx, conv.ID, operator, "reply", models.MessageText, nil)

	if _, _, err := svc.MarkRead(ctx, msg.ID, stranger); !errors.Is(err, models.ErrAuthenticationFailed) {
		t.Errorf("foreign guest MarkRead = %v, want ErrAuthenticationFailed", err)
	}
	if got, _ := svc.Messages(ctx, conv.ID); got[0].IsRead {
		t.Error("foreign MarkRead flipped is_read")
	}

	if _, _, err := svc.MarkRead(ctx, msg.ID, owner); err != nil {
		t.Errorf("owner MarkRead = %v, want nil", err)
	}
}

func TestListForIdentity_OrderAndCounts(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewChatService(repo)
	owner := models.AccountIdentity("acc-1")
	operator := models.OperatorIdentity("op-a", nil)
	ctx := context.Background()

	general, _, _ := svc.GetOrCreateActive(ctx, owner, models.TopicGeneral, "")
	onboarding, _, _ := svc.GetOrCreateActive(ctx, owner, models.TopicOnboarding, "")

	if _, err := svc.AppendMessage(ctx, general.ID, operator, "first", models.MessageText, nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := svc.AppendMessage(ctx, onboarding.ID, operator, "second", models.MessageText, nil); err != nil {
		t.Fatal(err)
	}

	summaries, err := svc.ListForIdentity(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
	if summaries[0].ID != onboarding.ID {
		t.Error("most recently active conversation is not first")
	}
	if summaries[0].UnreadCount != 1 || summaries[1].UnreadCount != 1 {
		t.Errorf("unread counts = (%d, %d), want (1, 1)", summaries[0].UnreadCount, summaries[1].UnreadCount)
	}
}
