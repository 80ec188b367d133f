package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arfaar/swapfinity/internal/identity"
	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

const (
	minPasswordLen = 6
	maxNameLen     = 60

	rollbackTimeout = 10 * time.Second
)

type ProfileView struct {
	model.UserProfile
	FavoritesCount int
}

type UserService interface {
	Register(ctx context.Context, email, password, name string) (*model.UserProfile, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, uid string) error
	Profile(ctx context.Context, uid string) (*ProfileView, error)
	UpdateName(ctx context.Context, uid, name string) error
	SetPicture(ctx context.Context, uid, pictureURL string) error
	RemovePicture(ctx context.Context, uid string) error
	// ChangePassword re-authenticates with current before setting next.
	ChangePassword(ctx context.Context, uid, current, next string) error
	Watch(ctx context.Context, uid string) (<-chan repository.DocSnapshot[model.UserProfile], error)
}

type userService struct {
	users    repository.UserRepository
	provider identity.Provider
	log      *slog.Logger
}

func NewUserService(users repository.UserRepository, provider identity.Provider, log *slog.Logger) UserService {
	return &userService{users: users, provider: provider, log: log.With("service", "user")}
}

func (s *userService) Register(ctx context.Context, email, password, name string) (*model.UserProfile, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	var v validator
	_, mailErr := mail.ParseAddress(email)
	v.check(email != "" && mailErr == nil, "email", "must be a valid email address")
	v.check(len(password) >= minPasswordLen, "password", "must be at least 6 characters")
	v.check(name != "", "name", "is required")
	v.check(utf8.RuneCountInString(name) <= maxNameLen, "name", "must be at most 60 characters")
	if err := v.err(); err != nil {
		return nil, err
	}

	id, err := s.provider.Register(ctx, email, password, name)
	if err != nil {
		return nil, identityErr(err)
	}
	u := &model.UserProfile{ID: id.UID, Name: name, Email: id.Email, Favorites: []string{}}
	if err := s.users.Create(ctx, u); err != nil {
		s.log.Error("profile create failed after registration", "uid", id.UID, "error", err)
		s.rollbackIdentity(ctx, id.UID)
		return nil, err
	}
	s.log.Info("user registered", "uid", id.UID)
	return u, nil
}

// rollbackIdentity deletes an account whose profile could not be written so
// the email can be registered again.
func (s *userService) rollbackIdentity(ctx context.Context, uid string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := s.provider.DeleteUser(ctx, uid); err != nil {
		s.log.Error("identity rollback failed", "uid", uid, "error", err)
		return
	}
	s.log.Warn("identity rolled back", "uid", uid)
}

func (s *userService) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	email = strings.TrimSpace(email)
	var v validator
	v.check(email != "", "email", "is required")
	v.check(password != "", "password", "is required")
	if err := v.err(); err != nil {
		return nil, err
	}
	sess, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, identityErr(err)
	}
	return sess, nil
}

func (s *userService) SignOut(ctx context.Context, uid string) error {
	if uid == "" {
		return errLoginRequired
	}
	return identityErr(s.provider.SignOut(ctx, uid))
}

func (s *userService) Profile(ctx context.Context, uid string) (*ProfileView, error) {
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return &ProfileView{UserProfile: *u, FavoritesCount: len(u.Favorites)}, nil
}

func (s *userService) UpdateName(ctx context.Context, uid, name string) error {
	if uid == "" {
		return errLoginRequired
	}
	name = strings.TrimSpace(name)
	var v validator
	v.check(name != "", "name", "is required")
	v.check(utf8.RuneCountInString(name) <= maxNameLen, "name", "must be at most 60 characters")
	if err := v.err(); err != nil {
		return err
	}
	return notFound(s.users.UpdateName(ctx, uid, name), "user not found")
}

func (s *userService) SetPicture(ctx context.Context, uid, pictureURL string) error {
	if uid == "" {
		return errLoginRequired
	}
	pictureURL = strings.TrimSpace(pictureURL)
	u, err := url.Parse(pictureURL)
	if pictureURL == "" || err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return NewValidationError("profilePicture", "must be an http(s) URL")
	}
	return notFound(s.users.SetProfilePicture(ctx, uid, &pictureURL), "user not found")
}

func (s *userService) RemovePicture(ctx context.Context, uid string) error {
	if uid == "" {
		return errLoginRequired
	}
	return notFound(s.users.SetProfilePicture(ctx, uid, nil), "user not found")
}

func (s *userService) ChangePassword(ctx context.Context, uid, current, next string) error {
	if uid == "" {
		return errLoginRequired
	}
	var v validator
	v.check(current != "", "currentPassword", "is required")
	v.check(len(next) >= minPasswordLen, "newPassword", "must be at least 6 characters")
	if err := v.err(); err != nil {
		return err
	}
	who, err := s.provider.Lookup(ctx, uid)
	if err != nil {
		return identityErr(err)
	}
	if _, err := s.provider.SignIn(ctx, who.Email, current); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return NewValidationError("currentPassword", "is incorrect")
		}
		return identityErr(err)
	}
	if err := s.provider.ChangePassword(ctx, uid, next); err != nil {
		return identityErr(err)
	}
	s.log.Info("password changed", "uid", uid)
	return nil
}

func (s *userService) Watch(ctx context.Context, uid string) (<-chan repository.DocSnapshot[model.UserProfile], error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	return s.users.Watch(ctx, uid)
}
