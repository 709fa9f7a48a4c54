// Package domain contains the core business entities and interfaces.
package domain

// Principal is the caller authenticated by the remote API.
type Principal struct {
	Subject string
	// Method is "token" for static device tokens or "oidc".
	Method string
}
