package core

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set of an internally issued session token.
type SessionClaims struct {
	// Name is the username of the account the token was issued for.
	Name string `json:"name"`

	// Roles contains one entry per distinct role of the account.
	Roles []string `json:"role,omitempty"`

	jwt.RegisteredClaims
}

// SessionToken is the result of a successful issuance.
type SessionToken struct {
	// Value is the compact, signed token.
	Value string `json:"value"`

	// Claims are the claims signed into Value.
	Claims SessionClaims `json:"claims"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`

	// Source tells how the credential reached the server ("native" or "bridged").
	Source string `json:"source"`

	// Token is the compact session token the principal was authenticated with.
	Token string `json:"-"`
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
