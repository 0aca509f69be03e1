package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/voicecore/assistant/internal/session"
	"github.com/voicecore/assistant/pkg/store"
	"github.com/voicecore/assistant/pkg/store/memstore"
)

func TestManager_Create_AssignsIDAndName(t *testing.T) {
	m := session.NewManager(memstore.New())
	s, err := m.Create(context.Background(), "table one")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected a generated session id")
	}
	if s.Name != "table one" {
		t.Errorf("expected name %q, got %q", "table one", s.Name)
	}
}

func TestManager_EnsureFromAudio_CreatesOnFirstReference(t *testing.T) {
	m := session.NewManager(memstore.New())
	s, err := m.EnsureFromAudio(context.Background(), "unknown-id")
	if err != nil {
		t.Fatalf("EnsureFromAudio: %v", err)
	}
	if s.ID != "unknown-id" {
		t.Errorf("expected id %q, got %q", "unknown-id", s.ID)
	}

	again, err := m.EnsureFromAudio(context.Background(), "unknown-id")
	if err != nil {
		t.Fatalf("EnsureFromAudio (second call): %v", err)
	}
	if again.CreatedAt != s.CreatedAt {
		t.Error("expected the second call to return the same session, not create a new one")
	}
}

func TestManager_Get_ReturnsNotFoundForUnknownID(t *testing.T) {
	m := session.NewManager(memstore.New())
	_, err := m.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected store.ErrNotFound, got %v", err)
	}
}

func TestManager_RenameSetActiveBumpActivity(t *testing.T) {
	st := memstore.New()
	m := session.NewManager(st)
	ctx := context.Background()

	created, err := m.Create(ctx, "original")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Rename(ctx, created.ID, "renamed"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := m.SetActive(ctx, created.ID, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := m.BumpActivity(ctx, created.ID); err != nil {
		t.Fatalf("BumpActivity: %v", err)
	}

	got, err := m.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("expected name %q, got %q", "renamed", got.Name)
	}
	if !got.Active {
		t.Error("expected session to be active")
	}
	if !got.LastActivity.After(created.LastActivity) && got.LastActivity != created.LastActivity {
		t.Error("expected last activity to be bumped")
	}
}

func TestManager_Delete_RemovesSession(t *testing.T) {
	m := session.NewManager(memstore.New())
	ctx := context.Background()

	created, err := m.Create(ctx, "to delete")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected store.ErrNotFound after delete, got %v", err)
	}
}
