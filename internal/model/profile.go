package model

import "time"

// Marketplace roles.
const (
	RoleOwner  = "owner"
	RoleRenter = "renter"
)

// Profile is the locally cached signed-in user.
type Profile struct {
	ID       string    `json:"id" db:"id"`
	Email    string    `json:"email" db:"email"`
	Name     string    `json:"name" db:"name"`
	Role     string    `json:"role" db:"role"`
	CachedAt time.Time `json:"-" db:"cached_at"`
}

// IsOwner reports whether the user lists bikes on the marketplace.
func (p Profile) IsOwner() bool {
	return p.Role == RoleOwner
}
