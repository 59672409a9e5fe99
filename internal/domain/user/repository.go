// internal/domain/user/repository.go
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/store"
	"gorm.io/gorm"
)

// Auth is the session side of the store handle
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*store.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*store.Session, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*store.Session, error)
	OnSessionChange(ctx context.Context, fn store.SessionListener) func()
}

// ProfileRepository reads and writes user_profiles rows
type ProfileRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
	Update(ctx context.Context, id uuid.UUID, values map[string]any) error
	IsAdmin(ctx context.Context, id uuid.UUID) (bool, error)
}

// StoreProfiles implements ProfileRepository on a store handle
type StoreProfiles struct {
	handle *store.Handle
}

// NewProfileRepository creates a store-backed profile repository
func NewProfileRepository(h *store.Handle) *StoreProfiles {
	return &StoreProfiles{handle: h}
}

// Get fetches one profile
func (r *StoreProfiles) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	if err := r.handle.First(ctx, ProfilesTable, &p, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a profile. An existing row for the id is overwritten.
func (r *StoreProfiles) Create(ctx context.Context, p *Profile) error {
	return r.handle.Upsert(ctx, ProfilesTable, p, store.OnConflict("id"))
}

// Update applies a partial update. is_admin can never be set this way.
func (r *StoreProfiles) Update(ctx context.Context, id uuid.UUID, values map[string]any) error {
	delete(values, "is_admin")
	if len(values) == 0 {
		return nil
	}
	values["updated_at"] = time.Now().UTC()
	return r.handle.Update(ctx, ProfilesTable, values, store.Eq("id", id))
}

// IsAdmin reads the admin flag fresh from the table. A missing profile is not an admin.
func (r *StoreProfiles) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := r.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsAdmin, nil
}

// IsAdminTx checks the admin flag inside a procedure's transaction
func IsAdminTx(db *gorm.DB, id uuid.UUID) (bool, error) {
	var p Profile
	res := db.Select("is_admin").Where("id = ?", id).Limit(1).Find(&p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0 && p.IsAdmin, nil
}
