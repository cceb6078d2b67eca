// Package auth holds the admin registry: the set of principals allowed
// to manage targets. The primary admin is fixed by configuration and can
// never be removed; the rest of the list is mutable and persisted.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"uptimebot/internal/domain"
)

// Provider is the authorization boundary the API layer consults before
// any catalog mutation reaches the core.
type Provider interface {
	IsAuthorized(p domain.PrincipalID) bool
}

var (
	ErrNotAdmin      = errors.New("not an admin")
	ErrPrimaryLocked = errors.New("primary admin cannot be removed")
)

type Registry struct {
	logger  *zap.Logger
	path    string
	primary domain.PrincipalID

	mu     sync.RWMutex
	admins map[domain.PrincipalID]struct{}
}

type adminFile struct {
	PrimaryAdmin domain.PrincipalID   `json:"primary_admin"`
	AdminIDs     []domain.PrincipalID `json:"admin_ids"`
}

// Load reads the admin list from path. A missing or corrupt file yields a
// registry holding only the primary admin.
func Load(path string, primary domain.PrincipalID, logger *zap.Logger) *Registry {
	r := &Registry{
		logger:  logger,
		path:    path,
		primary: primary,
		admins:  map[domain.PrincipalID]struct{}{},
	}
	if primary != "" {
		r.admins[primary] = struct{}{}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("admin_file_unreadable", zap.String("path", path), zap.Error(err))
		}
		return r
	}
	var f adminFile
	if err := json.Unmarshal(raw, &f); err != nil {
		logger.Warn("admin_file_corrupt", zap.String("path", path), zap.Error(err))
		return r
	}
	for _, id := range f.AdminIDs {
		if id != "" {
			r.admins[id] = struct{}{}
		}
	}
	return r
}

func (r *Registry) IsAuthorized(p domain.PrincipalID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[p]
	return ok
}

func (r *Registry) IsPrimary(p domain.PrincipalID) bool {
	return p != "" && p == r.primary
}

// Add registers a new admin. Returns false when already present.
func (r *Registry) Add(p domain.PrincipalID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.admins[p]; exists {
		return false
	}
	r.admins[p] = struct{}{}
	r.saveLocked()
	r.logger.Info("admin_added", zap.String("principal_id", string(p)))
	return true
}

// Remove drops an admin. The primary admin is locked.
func (r *Registry) Remove(p domain.PrincipalID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == r.primary {
		return ErrPrimaryLocked
	}
	if _, exists := r.admins[p]; !exists {
		return ErrNotAdmin
	}
	delete(r.admins, p)
	r.saveLocked()
	r.logger.Info("admin_removed", zap.String("principal_id", string(p)))
	return nil
}

// List returns every admin id, primary first.
func (r *Registry) List() []domain.PrincipalID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PrincipalID, 0, len(r.admins))
	if r.primary != "" {
		out = append(out, r.primary)
	}
	for id := range r.admins {
		if id != r.primary {
			out = append(out, id)
		}
	}
	return out
}

// saveLocked persists the admin list with the same write-then-rename
// discipline as the state snapshot. Failures are logged; the in-memory
// list stays authoritative.
func (r *Registry) saveLocked() {
	f := adminFile{PrimaryAdmin: r.primary}
	for id := range r.admins {
		f.AdminIDs = append(f.AdminIDs, id)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		r.logger.Error("admin_save_error", zap.Error(err))
		return
	}
	if err := writeAtomic(r.path, data); err != nil {
		r.logger.Error("admin_save_error", zap.String("path", r.path), zap.Error(err))
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".admins-*.json")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
