package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatmesh-io/chatmesh/internal/models"
	"github.com/chatmesh-io/chatmesh/internal/transport"
)

func seedChat(s *fakeStore, admin uuid.UUID, members ...uuid.UUID) *models.Chat {
	chat := &models.Chat{
		ID:        uuid.New(),
		Name:      "general",
		AdminID:   admin,
		MemberIDs: members,
		CreatedAt: time.Now(),
	}
	s.chats[chat.ID] = chat
	return chat
}

func seedUser(s *fakeStore, id uuid.UUID) {
	s.users[id] = &models.User{ID: id, Name: "u-" + id.String()[:8]}
}

func TestEmptyBodyEmitsUnverifiedWithoutPersistence(t *testing.T) {
	q := newMemQueue()
	s := newFakeStore()
	p := NewProcessor(q, s, zerolog.Nop())

	p.Handle(context.Background(), models.MessageToProcess{
		UserID:    uuid.New(),
		MessageID: "m1",
		ChatID:    uuid.NewString(),
	})

	route := popOne[models.MessageToRoute](t, q, transport.QueueRoute)
	if route.Status != models.StatusUnverified {
		t.Fatalf("expected unverified, got %s", route.Status)
	}
	if route.Text != "Message can not be empty" {
		t.Fatalf("unexpected text %q", route.Text)
	}
	if s.messageCount() != 0 {
		t.Fatal("empty message must not be persisted")
	}
}

func TestMissingChatEmitsSuccessChatNotFound(t *testing.T) {
	// A missing chat reports StatusSuccess with "Chat not found" instead
	// of the reserved chat_not_found status. Pinned wire behavior.
	q := newMemQueue()
	s := newFakeStore()
	p := NewProcessor(q, s, zerolog.Nop())

	msg := models.MessageToProcess{
		UserID:    uuid.New(),
		MessageID: "m1",
		Body:      "hello",
		ChatID:    uuid.NewString(),
	}

	p.Handle(context.Background(), msg)
	route := popOne[models.MessageToRoute](t, q, transport.QueueRoute)
	if route.Status != models.StatusSuccess {
		t.Fatalf("expected success classification, got %s", route.Status)
	}
	if route.Text != "Chat not found" {
		t.Fatalf("unexpected text %q", route.Text)
	}
	if s.messageCount() != 0 {
		t.Fatal("missing chat must not persist anything")
	}

	// Idempotence: repeating the same input never creates a message.
	p.Handle(context.Background(), msg)
	if s.messageCount() != 0 {
		t.Fatal("repeat of missing-chat input persisted a message")
	}
}

func TestUnknownSenderEmitsUnauthorized(t *testing.T) {
	q := newMemQueue()
	s := newFakeStore()
	sender := uuid.New()
	chat := seedChat(s, uuid.New(), sender)
	p := NewProcessor(q, s, zerolog.Nop())

	p.Handle(context.Background(), models.MessageToProcess{
		UserID:    sender, // in the chat, but not a known user
		MessageID: "m1",
		Body:      "hello",
		ChatID:    chat.ID.String(),
	})

	route := popOne[models.MessageToRoute](t, q, transport.QueueRoute)
	if route.Status != models.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %s", route.Status)
	}
	if s.messageCount() != 0 {
		t.Fatal("unauthorized message must not be persisted")
	}
}

func TestNonMemberEmitsUnauthorizedChatUnchanged(t *testing.T) {
	q := newMemQueue()
	s := newFakeStore()
	member, outsider := uuid.New(), uuid.New()
	chat := seedChat(s, member, member)
	seedUser(s, outsider)
	p := NewProcessor(q, s, zerolog.Nop())

	p.Handle(context.Background(), models.MessageToProcess{
		UserID:    outsider,
		MessageID: "m1",
		Body:      "let me in",
		ChatID:    chat.ID.String(),
	})

	route := popOne[models.MessageToRoute](t, q, transport.QueueRoute)
	if route.Status != models.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %s", route.Status)
	}
	if s.messageCount() != 0 {
		t.Fatal("chat state must be unchanged for a non-member")
	}
}

func TestChatAdminMayPost(t *testing.T) {
	q := newMemQueue()
	s := newFakeStore()
	admin, member := uuid.New(), uuid.New()
	chat := seedChat(s, admin, member) // admin not in member list
	seedUser(s, admin)
	p := NewProcessor(q, s, zerolog.Nop())

	p.Handle(context.Background(), models.MessageToProcess{
		UserID:    admin,
		MessageID: "m1",
		Body:      "announcement",
		ChatID:    chat.ID.String(),
	})

	route := popOne[models.MessageToRoute](t, q, transport.QueueRoute)
	if route.Status != models.StatusSuccess {
		t.Fatalf("expected success for chat admin, got %s", route.Status)
	}
	if s.messageCount() != 1 {
		t.Fatal("admin message should be persisted")
	}
}

func TestMemberMessagePersistedAndRouted(t *testing.T) {
	q := newMemQueue()
	s := newFakeStore()
	sender := uuid.New()
	chat := seedChat(s, uuid.New(), sender, uuid.New())
	seedUser(s, sender)
	p := NewProcessor(q, s, zerolog.Nop())

	p.Handle(context.Background(), models.MessageToProcess{
		UserID:    sender,
		MessageID: "m1",
		SubType:   "text",
		Body:      "hello room",
		ChatID:    chat.ID.String(),
	})

	if s.messageCount() != 1 {
		t.Fatal("expected the message to be persisted")
	}
	saved := s.messages[0]
	if saved.SenderID != sender || saved.Body != "hello room" || saved.ChatID != chat.ID {
		t.Fatalf("persisted message fields wrong: %+v", saved)
	}

	route := popOne[models.MessageToRoute](t, q, transport.QueueRoute)
	if route.Status != models.StatusSuccess || route.Text != "hello room" {
		t.Fatalf("unexpected route %+v", route)
	}
	if route.UserID != sender {
		t.Fatalf("route must carry the sender id, got %s", route.UserID)
	}

	if _, ok := s.lastSeen[sender]; !ok {
		t.Fatal("sender last-seen timestamp was not updated")
	}
}
