package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles the identity provider issues.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
)

// JWTClaims is the identity context attached to every request. Scheduling
// operations trust it for scoping and never re-derive authorization.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	SchoolID string   `json:"school_id"`
	jwt.RegisteredClaims
}
