package core

import (
	"slices"
	"time"
)

const (
	// RoleUser is assigned to every account created through the public registration route.
	RoleUser = "User"
	// RoleAdmin is assigned to accounts created through the admin registration route.
	RoleAdmin = "Admin"
)

// ExternalClaims are the claims extracted from an identity token of the external IdP.
// They are only ever produced by the verifier after the signature and the issuer were checked.
type ExternalClaims struct {
	// Issuer is the `iss` claim, equal to the configured trusted issuer.
	Issuer string `json:"iss"`

	// Subject is the IdP-scoped user identifier (`sub`).
	Subject string `json:"sub"`

	// Email is used to look up the internal account.
	Email string `json:"email"`

	// ExpiresAt is the `exp` claim of the external token.
	ExpiresAt time.Time `json:"exp"`
}

// Account is an account of the internal identity store.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAccount holds the data needed to create an account.
type NewAccount struct {
	Username     string
	Email        string
	PasswordHash string
}

// Identity is an account resolved for token issuance.
type Identity struct {
	Username string
	Roles    []string
}

// NormalizeRoles returns a sorted copy of roles with duplicates and empty names removed.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
