package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/model"
)

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUserUpsert_NewUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		GitHubID:  55555,
		Login:     "alice",
		Name:      "Alice",
		AvatarURL: "https://example.com/alice.png",
	}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() (new) error = %v", err)
	}

	if user.ID == "" {
		t.Error("Upsert() did not set user.ID for new user")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Upsert() did not set user.CreatedAt for new user")
	}

	found, err := db.GetByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByLogin() after Upsert: %v", err)
	}
	if found.GitHubID != 55555 {
		t.Errorf("GitHubID = %d, want 55555", found.GitHubID)
	}
}

func TestUserUpsert_ExistingUser_UpdatesProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{GitHubID: 1, Login: "bob", Name: "Bob", AvatarURL: "https://example.com/old.png"}
	if err := db.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	second := &model.User{GitHubID: 1, Login: "bob", Name: "Robert", AvatarURL: "https://example.com/new.png"}
	if err := db.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	// Same internal ID, new profile.
	if second.ID != first.ID {
		t.Errorf("ID changed on upsert: %q → %q", first.ID, second.ID)
	}

	found, err := db.GetByLogin(ctx, "bob")
	if err != nil {
		t.Fatalf("GetByLogin() error = %v", err)
	}
	if found.Name != "Robert" {
		t.Errorf("Name = %q, want %q", found.Name, "Robert")
	}
	if found.AvatarURL != "https://example.com/new.png" {
		t.Errorf("AvatarURL = %q, want new avatar", found.AvatarURL)
	}
}

// =========================================================================
// GET BY LOGIN TESTS
// =========================================================================

func TestUserGetByLogin_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByLogin(context.Background(), "nobody")
	if err == nil {
		t.Fatal("GetByLogin() should have returned an error for unknown login")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByLogin() error = %v, want ErrNotFound", err)
	}
}
