package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the payload of access tokens minted by the external
// identity provider. The API validates these; it never issues them.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// RequestMeta carries caller metadata recorded alongside audited mutations.
type RequestMeta struct {
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}
