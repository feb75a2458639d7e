package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates API roles.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleViewer UserRole = "VIEWER"
)

// JWTClaims is the access token payload.
type JWTClaims struct {
	Role UserRole `json:"role"`
	jwt.RegisteredClaims
}
