package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"healthmate/internal/database/dbtest"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestRepository(t *testing.T) *Repository {
	repo := NewRepository(dbtest.New(t))
	clock := &stepClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	repo.now = clock.now
	return repo
}

func TestRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	first, err := repo.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.Title != DefaultTitle {
		t.Errorf("Expected title '%s', got '%s'", DefaultTitle, first.Title)
	}
	second, err := repo.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := repo.AddMessage(ctx, first.ID, "user", "hello"); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if _, err := repo.AddMessage(ctx, first.ID, "assistant", "hi there"); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	chats, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != first.ID || chats[1].ID != second.ID {
		t.Errorf("Expected the chat with new messages first, got %+v", chats)
	}

	messages, err := repo.Messages(ctx, first.ID)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 2 || messages[0].Content != "hello" || messages[1].Role != "assistant" {
		t.Errorf("Expected messages in insertion order, got %+v", messages)
	}

	if err := repo.Rename(ctx, first.ID, "Headaches"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	got, err := repo.Get(ctx, "user-1", first.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Headaches" {
		t.Errorf("Expected title 'Headaches', got '%s'", got.Title)
	}

	if err := repo.Delete(ctx, "user-1", first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "user-1", first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	messages, _ = repo.Messages(ctx, first.ID)
	if len(messages) != 0 {
		t.Errorf("Expected messages to be deleted, got %d", len(messages))
	}
}

func TestRepository_Ownership(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	c, err := repo.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Get(ctx, "user-2", c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another user's chat, got %v", err)
	}
	if err := repo.Delete(ctx, "user-2", c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting another user's chat, got %v", err)
	}
}

func TestRepository_RejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	c, _ := repo.Create(ctx, "user-1")
	if _, err := repo.AddMessage(ctx, c.ID, "system", "nope"); err == nil {
		t.Fatal("Expected an error for an invalid role, got nil")
	}
}
