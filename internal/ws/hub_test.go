package ws

import (
	"testing"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"
)

func TestRegisterAutoJoinsOwnChannels(t *testing.T) {
	hub := NewHub()

	operator := newClient(hub, nil, models.OperatorIdentity("op-1", nil))
	account := newClient(hub, nil, models.AccountIdentity("acc-1"))
	guest := newClient(hub, nil, models.GuestIdentity("guest_1699999999999_a1B2c3D4e5"))
	hub.Register(operator)
	hub.Register(account)
	hub.Register(guest)

	if hub.RoomSize(OperatorsPool) != 1 {
		t.Errorf("operators pool size = %d, want 1", hub.RoomSize(OperatorsPool))
	}
	if hub.RoomSize(OperatorRoom("op-1")) != 1 {
		t.Error("operator not in own room")
	}
	if hub.RoomSize(IdentityRoom("account:acc-1")) != 1 {
		t.Error("account not in identity room")
	}
	if hub.RoomSize(IdentityRoom(guest.identity.Key())) != 1 {
		t.Error("guest not in identity room")
	}

	if !hub.IsOnline("operator:op-1") || !hub.IsOnline("account:acc-1") {
		t.Error("registered identities not reported online")
	}
	// Guests self-present their token and are not indexed by identity.
	if hub.IsOnline(guest.identity.Key()) {
		t.Error("guest unexpectedly indexed for presence lookup")
	}
}

func TestBroadcastDeliversInOrder(t *testing.T) {
	hub := NewHub()
	subscriber := newClient(hub, nil, models.OperatorIdentity("op-1", nil))
	hub.Register(subscriber)

	room := ConversationRoom("c1")
	hub.Join(subscriber, room)

	for _, body := range []string{"s1", "s2", "s3"} {
		hub.Broadcast(room, Outbound{Event: EventMessageReceived, Data: body})
	}

	for _, want := range []string{"s1", "s2", "s3"} {
		got := <-subscriber.send
		if got.Data != want {
			t.Fatalf("delivery order: got %v, want %v", got.Data, want)
		}
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	sender := newClient(hub, nil, models.AccountIdentity("acc-1"))
	other := newClient(hub, nil, models.OperatorIdentity("op-1", nil))
	hub.Register(sender)
	hub.Register(other)

	room := ConversationRoom("c1")
	hub.Join(sender, room)
	hub.Join(other, room)

	hub.BroadcastExcept(room, sender, Outbound{Event: EventTypingStart})

	if len(other.send) != 1 {
		t.Errorf("other client received %d events, want 1", len(other.send))
	}
	if len(sender.send) != 0 {
		t.Errorf("sender received own typing event")
	}
}

func TestUnregisterCleansEverything(t *testing.T) {
	hub := NewHub()
	first := newClient(hub, nil, models.AccountIdentity("acc-1"))
	second := newClient(hub, nil, models.AccountIdentity("acc-1"))
	hub.Register(first)
	hub.Register(second)

	room := ConversationRoom("c1")
	hub.Join(first, room)
	hub.Join(second, room)

	hub.Unregister(first)

	if hub.RoomSize(room) != 1 {
		t.Errorf("room size after unregister = %d, want 1", hub.RoomSize(room))
	}
	// The identity stays online while any of its connections remains.
	if !hub.IsOnline("account:acc-1") {
		t.Error("identity offline while second connection is live")
	}

	hub.Unregister(second)
	if hub.IsOnline("account:acc-1") {
		t.Error("identity online with no connections left")
	}
	if hub.RoomSize(room) != 0 {
		t.Error("room not emptied")
	}

	// Idempotent: a second unregister of the same client is a no-op.
	hub.Unregister(first)

	if _, ok := <-first.send; ok {
		t.Error("send channel not closed on unregister")
	}
}
