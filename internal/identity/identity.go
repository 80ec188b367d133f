// Package identity verifies callers and manages their credentials with an
// external identity provider.
package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password too weak")
)

// Identity is an authenticated subject.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Session is returned by a password sign-in.
type Session struct {
	Identity
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type Provider interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
	Register(ctx context.Context, email, password, displayName string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignOut revokes every refresh token issued to uid.
	SignOut(ctx context.Context, uid string) error
	Lookup(ctx context.Context, uid string) (*Identity, error)
	ChangePassword(ctx context.Context, uid, newPassword string) error
	DeleteUser(ctx context.Context, uid string) error
}
