package model

import "time"

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// AuthClaims is the identity carried by a session token.
type AuthClaims struct {
	Username   string     `json:"username"`
	DN         string     `json:"dn"`
	Role       string     `json:"role"`
	Attributes Attributes `json:"attributes,omitempty"`
	TokenID    string     `json:"jti,omitempty"`
	IssuedAt   time.Time  `json:"iat"`
	ExpiresAt  time.Time  `json:"exp"`
}

// AuthUser is the public view of an authenticated principal.
type AuthUser struct {
	Username   string     `json:"username"`
	DN         string     `json:"dn"`
	Role       string     `json:"role"`
	Attributes Attributes `json:"attributes,omitempty"`
}

type LoginResult struct {
	Token     string   `json:"token"`
	User      AuthUser `json:"user"`
	ExpiresIn string   `json:"expiresIn"`
}
