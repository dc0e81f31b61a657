package user

import "time"

// Roles a profile can hold. Role is set at provisioning time and never edited.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Profile is a provisioned account. PasswordHash never leaves the package
// boundary in responses.
type Profile struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	GroupName    *string    `json:"group_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Email returns the synthetic login email for a username.
func (p Profile) Email() string {
	return p.Username + "@system.local"
}

// ValidRole reports whether role is one of the three known roles.
func ValidRole(role string) bool {
	return role == RoleStudent || role == RoleInstructor || role == RoleAdmin
}
