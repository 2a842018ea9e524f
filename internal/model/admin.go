package model

import (
	"strings"
	"time"
)

// Admin roles, from most to least privileged.
const (
	RoleSuperAdmin = "super-admin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
)

// Admin account statuses.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// AdminUser is an administrative account for the club dashboard. The whole
// collection is persisted as one JSON array under the "all-admin-users" blob.
// Password holds the stored credential encoding ("pbkdf2:<salt>:<hash>" or
// the legacy "hashed:<hex>") and must be stripped before any response.
type AdminUser struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	Username        string          `json:"username,omitempty"`
	Password        string          `json:"password,omitempty"`
	Role            string          `json:"role"`
	Permissions     map[string]bool `json:"permissions,omitempty"`
	Status          string          `json:"status"`
	LastLogin       *time.Time      `json:"lastLogin,omitempty"`
	PasswordResetAt *time.Time      `json:"passwordResetAt,omitempty"`
	PasswordResetBy string          `json:"passwordResetBy,omitempty"`
}

// IsActive reports whether the account may log in.
func (u *AdminUser) IsActive() bool {
	return u.Status == StatusActive
}

// IsSuperAdmin reports whether the account holds the super-admin role.
func (u *AdminUser) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// Sanitized returns a copy of the user with the stored credential removed.
// Every API response carrying a user goes through this.
func (u *AdminUser) Sanitized() *AdminUser {
	out := *u
	out.Password = ""
	return &out
}

// DefaultUsername derives a display name from the email local-part, used
// when a record is saved without an explicit username.
func DefaultUsername(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// NormalizeEmail lower-cases an email for case-insensitive identity
// comparison and rate-limit keying.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CountActiveSuperAdmins returns how many users in the collection are
// active super-admins. The collection invariant requires this to stay >= 1.
func CountActiveSuperAdmins(users []AdminUser) int {
	n := 0
	for i := range users {
		if users[i].IsSuperAdmin() && users[i].IsActive() {
			n++
		}
	}
	return n
}
