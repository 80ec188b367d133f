package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// FirebaseProvider verifies ID tokens and manages users with the Firebase
// Admin SDK. Password sign-in goes through the Identity Toolkit REST API,
// which needs the project's web API key.
type FirebaseProvider struct {
	auth    *auth.Client
	toolkit *identitytoolkit.Service
	log     *slog.Logger
}

func NewFirebaseProvider(ctx context.Context, client *auth.Client, apiKey string, log *slog.Logger) (*FirebaseProvider, error) {
	p := &FirebaseProvider{auth: client, log: log.With("component", "identity")}
	if apiKey != "" {
		svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("identity toolkit: %w", err)
		}
		p.toolkit = svc
	} else {
		p.log.Warn("FIREBASE_API_KEY not set; password sign-in disabled")
	}
	return p, nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	tok, err := p.auth.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		if auth.IsIDTokenInvalid(err) || auth.IsIDTokenRevoked(err) || auth.IsUserDisabled(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	email, _ := tok.Claims["email"].(string)
	return &Identity{UID: tok.UID, Email: email}, nil
}

func (p *FirebaseProvider) Register(ctx context.Context, email, password, displayName string) (*Identity, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password).DisplayName(displayName)
	rec, err := p.auth.CreateUser(ctx, params)
	if err != nil {
		return nil, mapAuthErr(err)
	}
	return &Identity{UID: rec.UID, Email: rec.Email}, nil
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if p.toolkit == nil {
		return nil, errors.New("password sign-in is not configured")
	}
	resp, err := p.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitErr(err)
	}
	return &Session{
		Identity:     Identity{UID: resp.LocalId, Email: resp.Email},
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

func (p *FirebaseProvider) SignOut(ctx context.Context, uid string) error {
	return mapAuthErr(p.auth.RevokeRefreshTokens(ctx, uid))
}

func (p *FirebaseProvider) Lookup(ctx context.Context, uid string) (*Identity, error) {
	rec, err := p.auth.GetUser(ctx, uid)
	if err != nil {
		return nil, mapAuthErr(err)
	}
	return &Identity{UID: rec.UID, Email: rec.Email}, nil
}

func (p *FirebaseProvider) ChangePassword(ctx context.Context, uid, newPassword string) error {
	_, err := p.auth.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(newPassword))
	return mapAuthErr(err)
}

func (p *FirebaseProvider) DeleteUser(ctx context.Context, uid string) error {
	return mapAuthErr(p.auth.DeleteUser(ctx, uid))
}

func mapAuthErr(err error) error {
	switch {
	case err == nil:
		return nil
	case auth.IsEmailAlreadyExists(err):
		return ErrEmailExists
	case auth.IsUserNotFound(err):
		return ErrUserNotFound
	case strings.Contains(err.Error(), "password must be a string at least 6 characters long"):
		return ErrWeakPassword
	}
	return err
}

// mapToolkitErr translates Identity Toolkit failures. The API reports bad
// credentials as HTTP 400 with a reason such as INVALID_PASSWORD or
// EMAIL_NOT_FOUND.
func mapToolkitErr(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return err
	}
	msg := gerr.Message
	switch {
	case strings.HasPrefix(msg, "WEAK_PASSWORD"):
		return ErrWeakPassword
	case strings.HasPrefix(msg, "TOO_MANY_ATTEMPTS_TRY_LATER"):
		return err
	}
	return ErrInvalidCredentials
}
