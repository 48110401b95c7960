package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleStaff   UserRole = "STAFF"
)

// UserStatus flags whether an account may sign in.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// User represents an application user stored in the users table.
type User struct {
	ID                  string     `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	Name                string     `db:"name" json:"name"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	Role                UserRole   `db:"role" json:"role"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	Status              UserStatus `db:"status" json:"status"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile is the public projection of a user.
type Profile struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}

// ToProfile projects the user.
func (u *User) ToProfile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// UpdateProfileRequest carries optional profile changes. Nil fields are left untouched.
type UpdateProfileRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	OldPassword string  `json:"old_password"`
	NewPassword string  `json:"new_password"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
