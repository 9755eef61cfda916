package domain

import "time"

// Role is the coarse permission level stored on a user record.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is the stored account record.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	IsVerified   bool
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
