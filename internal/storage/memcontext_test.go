package storage

import (
	"context"
	"errors"
	"testing"

	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
)

func TestMemContextStoreLifecycle(t *testing.T) {
	store := NewMemContextStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "conv-1"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
	}

	conv, err := store.Initialize(ctx, "conv-1", "scn-1", "per-1", nil)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if conv.ScenarioID != "scn-1" || conv.PersonaID != "per-1" {
		t.Errorf("initialized context lost identifiers: %+v", conv)
	}

	conv.AppendTurn(models.RoleUser, "hello")
	if err := store.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(loaded.Turns) != 1 || loaded.Turns[0].Text != "hello" {
		t.Errorf("expected saved turn to round-trip, got %+v", loaded.Turns)
	}

	deleted, err := store.Delete(ctx, "conv-1")
	if err != nil || !deleted {
		t.Fatalf("Delete = (%v, %v), expected (true, nil)", deleted, err)
	}
	deleted, _ = store.Delete(ctx, "conv-1")
	if deleted {
		t.Error("second delete should report false")
	}
}

func TestMemContextStoreIsolatesCallers(t *testing.T) {
	store := NewMemContextStore()
	ctx := context.Background()

	traits := models.PersonaTraits{Name: "Dana", TechLevel: models.TechBeginner}
	_, err := store.Initialize(ctx, "conv-2", "", "", &models.ContextData{Persona: &traits})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	first, _ := store.Get(ctx, "conv-2")
	first.Data.Persona.Name = "mutated"
	first.AppendTurn(models.RoleUser, "should not leak")

	second, _ := store.Get(ctx, "conv-2")
	if second.Data.Persona.Name != "Dana" {
		t.Errorf("stored persona mutated through a returned copy: %q", second.Data.Persona.Name)
	}
	if len(second.Turns) != 0 {
		t.Errorf("stored turns mutated through a returned copy: %d turns", len(second.Turns))
	}
}
