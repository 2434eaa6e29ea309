package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountKind tags the Account union
type AccountKind string

const (
	KindAdministrator AccountKind = "administrator"
	KindClient        AccountKind = "client"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

const (
	StatusActive    = "Active"
	StatusSuspended = "Suspended"
)

// DefaultPhoto is assigned to clients that never uploaded one
const DefaultPhoto = "https://i.ibb.co/4pDNDk1/avatar.png"

// Address is a client's postal address
type Address struct {
	Address string `json:"address,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Account is an authenticated principal. Administrators are keyed by Username,
// clients by Email; both carry an authorization Role and, for pipeline
// operators, the Stage they own.
type Account struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	Kind          AccountKind `json:"kind" db:"kind"`
	Username      string      `json:"username,omitempty" db:"username"`
	Name          string      `json:"name,omitempty" db:"name"`
	Email         string      `json:"email,omitempty" db:"email"`
	Phone         string      `json:"phone,omitempty" db:"phone"`
	Address       *Address    `json:"address,omitempty" db:"address"`
	Photo         string      `json:"photo,omitempty" db:"photo"`
	Role          string      `json:"role" db:"role"`
	AssignedStage Stage       `json:"assignedStage,omitempty" db:"assigned_stage"`
	Services      []uuid.UUID `json:"services,omitempty" db:"services"`
	Status        string      `json:"status,omitempty" db:"status"`
	PasswordHash  string      `json:"-" db:"password_hash"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time   `json:"updatedAt" db:"updated_at"`
}

// IsClient reports whether the account is a client
func (a *Account) IsClient() bool { return a.Kind == KindClient }

// IsStaff reports whether the account acts for the back office. It follows
// the role, so a client promoted through a role assignment counts as staff.
func (a *Account) IsStaff() bool { return a.Role != "" && a.Role != RoleClient }

// DisplayName returns the best human-readable name for the account
func (a *Account) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Username != "":
		return a.Username
	default:
		return a.Email
	}
}

// HasService reports whether formID is already linked to the account
func (a *Account) HasService(formID uuid.UUID) bool {
	for _, id := range a.Services {
		if id == formID {
			return true
		}
	}
	return false
}

// AdminRegisterRequest is the request body for POST /api/auth/admin/register
type AdminRegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ClientRegisterRequest is the request body for client self-registration
type ClientRegisterRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Phone    string   `json:"phone"`
	Address  *Address `json:"address,omitempty"`
}

// LoginRequest accepts an admin username, client name or client email
type LoginRequest struct {
	Identifier string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// LoginIdentifier returns whichever identifier the caller supplied
func (r LoginRequest) LoginIdentifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Email
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	Role    string   `json:"role"`
	Account *Account `json:"account"`
}

// ProfileUpdate carries the mutable client profile fields
type ProfileUpdate struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address,omitempty"`
}

// PasswordChange is the request body for changing a password
type PasswordChange struct {
	OldPassword string `json:"oldPassword"`
	Password    string `json:"password"`
}

// ResetToken stores only the hash of a password-reset token
type ResetToken struct {
	AccountID uuid.UUID `json:"accountId" db:"account_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}
