package models

// UserRole scopes API access. Students trigger personal runs; staff and
// admins trigger institution-wide runs.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleStaff   UserRole = "STAFF"
	RoleAdmin   UserRole = "ADMIN"
)

// AuthClaims is the identity attached to a request by the JWT middleware.
type AuthClaims struct {
	UserID string   `json:"userId"`
	Role   UserRole `json:"role"`
}
