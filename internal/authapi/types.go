package authapi

import "errors"

// ErrUnauthorized is returned when the auth service rejects the presented
// credential (expired or revoked token, dead session cookie).
var ErrUnauthorized = errors.New("not authenticated")

// ErrUpstream is returned when the auth service answered with an unexpected
// status. Distinct from transport failures so callers can tell "the service
// said no" from "the service was unreachable".
var ErrUpstream = errors.New("auth service error")

// Identity is the user record the auth service reports for a valid
// credential.
type Identity struct {
	AuthUserID  int64  `json:"auth_user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider"`
	IsVerified  bool   `json:"is_verified"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	AvatarURL   string `json:"avatar,omitempty"`
}

// AuthStatus is the cookie-session status payload.
type AuthStatus struct {
	IsAuthenticated bool      `json:"is_authenticated"`
	User            *Identity `json:"user,omitempty"`
}

// Credential is a provider credential to exchange for a session token.
// Exactly one field is set: AccessToken for the token-popup strategies,
// Code for the authorization-code popup.
type Credential struct {
	AccessToken string `json:"access_token,omitempty"`
	Code        string `json:"code,omitempty"`
}
