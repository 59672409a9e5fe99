// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/store"
)

const ProfilesTable = "user_profiles"

// Profile holds the storefront details of an account. Its id is the auth user id.
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;index" json:"email"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	Phone     string    `gorm:"size:20" json:"phone,omitempty"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name for Profile
func (Profile) TableName() string {
	return ProfilesTable
}

// DisplayName returns the full name, or the email when no name is set
func (p *Profile) DisplayName() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	return p.Email
}

// ProfileUpdate is a partial profile change. Nil fields are left alone.
type ProfileUpdate struct {
	FullName *string `json:"full_name"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
}

func (u ProfileUpdate) values() map[string]any {
	v := make(map[string]any, 4)
	if u.FullName != nil {
		v["full_name"] = strings.TrimSpace(*u.FullName)
	}
	if u.Address != nil {
		v["address"] = strings.TrimSpace(*u.Address)
	}
	if u.Phone != nil {
		v["phone"] = strings.TrimSpace(*u.Phone)
	}
	return v
}

// Identity is the signed-in principal with its profile
type Identity struct {
	User    store.User `json:"user"`
	Profile *Profile   `json:"profile,omitempty"`
	IsAdmin bool       `json:"is_admin"`
}

// ID returns the auth user id
func (i *Identity) ID() uuid.UUID {
	return i.User.ID
}
