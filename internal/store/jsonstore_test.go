package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

func TestJSONStore_LoadMissingFileReturnsEmptyMap(t *testing.T) {
	s, err := NewJSONStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("unexpected error constructing store: %v", err)
	}
	users, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error loading a missing file: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected an empty map for a missing file, got %d entries", len(users))
	}
}

func TestJSONStore_SaveThenLoadRoundTrips(t *testing.T) {
	s, err := NewJSONStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("unexpected error constructing store: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	users := map[string]models.UserTemplate{
		"alice": {
			UserID:    "alice",
			CreatedAt: now,
			UpdatedAt: now,
			Templates: []models.UserSample{
				{RawVector: []float64{1, 2, 3}, HashHex: "abc", RegisteredAt: now},
			},
		},
	}

	if err := s.Save(users); err != nil {
		t.Fatalf("unexpected error saving: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	alice, ok := loaded["alice"]
	if !ok {
		t.Fatalf("expected 'alice' to round-trip through save/load")
	}
	if alice.Templates[0].HashHex != "abc" {
		t.Fatalf("expected hash 'abc' to round-trip, got %q", alice.Templates[0].HashHex)
	}
	if !alice.CreatedAt.Equal(now) {
		t.Fatalf("expected CreatedAt to round-trip exactly, got %v want %v", alice.CreatedAt, now)
	}
}

func TestJSONStore_SaveOverwritesPreviousContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("unexpected error constructing store: %v", err)
	}

	first := map[string]models.UserTemplate{"alice": {UserID: "alice"}}
	second := map[string]models.UserTemplate{"bob": {UserID: "bob"}}

	if err := s.Save(first); err != nil {
		t.Fatalf("unexpected error on first save: %v", err)
	}
	if err := s.Save(second); err != nil {
		t.Fatalf("unexpected error on second save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	if _, ok := loaded["alice"]; ok {
		t.Fatalf("expected the second save to fully overwrite the first")
	}
	if _, ok := loaded["bob"]; !ok {
		t.Fatalf("expected 'bob' to be present after the second save")
	}
}

func TestJSONStore_LoadEmptyFileReturnsEmptyMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("unexpected error constructing store: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("unexpected error writing an empty file: %v", err)
	}
	users, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected an empty map, got %d entries", len(users))
	}
}
