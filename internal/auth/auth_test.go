package auth

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestRegistry_PrimaryAlwaysAuthorized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	r := Load(path, "primary-1", zap.NewNop())

	if !r.IsAuthorized("primary-1") {
		t.Fatalf("primary admin must be authorized")
	}
	if r.IsAuthorized("stranger") {
		t.Fatalf("unknown principal must not be authorized")
	}
	if !r.IsPrimary("primary-1") || r.IsPrimary("stranger") {
		t.Fatalf("IsPrimary misidentifies")
	}
}

func TestRegistry_AddRemovePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	r := Load(path, "primary-1", zap.NewNop())

	if !r.Add("second") {
		t.Fatalf("add should succeed")
	}
	if r.Add("second") {
		t.Fatalf("duplicate add should report false")
	}
	if !r.IsAuthorized("second") {
		t.Fatalf("added admin must be authorized")
	}

	// reload from disk
	r2 := Load(path, "primary-1", zap.NewNop())
	if !r2.IsAuthorized("second") {
		t.Fatalf("added admin lost on reload")
	}

	if err := r2.Remove("second"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if r2.IsAuthorized("second") {
		t.Fatalf("removed admin still authorized")
	}
	if err := r2.Remove("second"); err != ErrNotAdmin {
		t.Fatalf("want ErrNotAdmin, got %v", err)
	}
}

func TestRegistry_PrimaryCannotBeRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	r := Load(path, "primary-1", zap.NewNop())

	if err := r.Remove("primary-1"); err != ErrPrimaryLocked {
		t.Fatalf("want ErrPrimaryLocked, got %v", err)
	}
	if !r.IsAuthorized("primary-1") {
		t.Fatalf("primary must survive removal attempts")
	}
}

func TestLoad_CorruptFileKeepsPrimary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := Load(path, "primary-1", zap.NewNop())
	if !r.IsAuthorized("primary-1") {
		t.Fatalf("primary must be authorized despite corrupt file")
	}
	got := r.List()
	if len(got) != 1 || got[0] != "primary-1" {
		t.Fatalf("want only primary, got %v", got)
	}
}
