package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the roles resolved through the identity provider.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleFaculty UserRole = "FACULTY"
	RoleAdmin   UserRole = "ADMIN"
)

// ParseRole resolves a role name, returning false for unknown roles.
func ParseRole(raw string) (UserRole, bool) {
	switch role := UserRole(strings.ToUpper(strings.TrimSpace(raw))); role {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// JWTClaims is the verified identity attached to each request.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the caller identity used by services.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Role: c.Role}
}

// Actor is the authenticated caller as seen by the workflow engine.
type Actor struct {
	ID   string
	Role UserRole
}

// Is reports whether the actor holds the given role.
func (a Actor) Is(role UserRole) bool {
	return a.Role == role
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
