// Package seed provisions users and officer profiles from a JSON file.
// Accounts are owned by an external identity service; this keeps local and
// test deployments usable without one.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
)

// Store receives the seeded records. Both writes are upserts.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	CreatePoliceDetails(ctx context.Context, details *models.PoliceDetails) error
}

// File is the seed document layout.
type File struct {
	Users  []models.User          `json:"users"`
	Police []models.PoliceDetails `json:"police"`
}

// Load reads path and applies it to store.
func Load(ctx context.Context, path string, store Store) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	if err := Apply(ctx, f, store); err != nil {
		return File{}, err
	}
	return f, nil
}

// Apply validates roles and writes users before officer profiles.
func Apply(ctx context.Context, f File, store Store) error {
	officers := make(map[id.UserID]bool, len(f.Users))
	for i := range f.Users {
		u := &f.Users[i]
		if u.ID.IsNil() {
			return fmt.Errorf("seed user %d: missing id", i)
		}
		role, err := id.ParseRole(string(u.Role))
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		u.Role = role
		officers[u.ID] = role.IsOfficer()
		if err := store.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	for i := range f.Police {
		d := &f.Police[i]
		if !officers[d.UserID] {
			return fmt.Errorf("seed police details %s: user is not a seeded officer", d.UserID)
		}
		if err := store.CreatePoliceDetails(ctx, d); err != nil {
			return fmt.Errorf("seed police details %s: %w", d.UserID, err)
		}
	}
	return nil
}
