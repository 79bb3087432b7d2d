package entity

import "time"

// Role is the flat set of marketplace roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleCustomer:
		return true
	}
	return false
}

// Status is the account lifecycle state. Deleted is a soft delete.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// Identity represents a row in the `identities` table.
type Identity struct {
	ID           int64      `db:"id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FullName     string     `db:"full_name"`
	PhoneNumber  *string    `db:"phone_number"`
	Role         Role       `db:"role"`
	Status       Status     `db:"status"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Principal is the authenticated projection handed to the rest of the core;
// it never carries the password hash.
type Principal struct {
	ID       int64
	Username string
	FullName string
	Role     Role
}

// Principal returns the authenticated projection of the identity.
func (i *Identity) Principal() Principal {
	return Principal{ID: i.ID, Username: i.Username, FullName: i.FullName, Role: i.Role}
}
