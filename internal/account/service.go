// Package account signs users in and out and registers new ones.
package account

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/validation"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

var ErrNotAuthenticated = errors.New("not authenticated")

type API interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
	Register(ctx context.Context, reg domain.Registration) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type Session interface {
	SignIn(ctx context.Context, token string, userID int64) error
	SignOut(ctx context.Context)
	Authenticated() bool
	UserID() int64
}

type Service struct {
	api     API
	session Session
}

func NewService(api API, session Session) *Service {
	return &Service{api: api, session: session}
}

// Login exchanges credentials for a token and starts the session.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	var userID int64
	if res.User != nil {
		userID = res.User.ID
	}
	if err := s.session.SignIn(ctx, res.Token, userID); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("signed in", zap.Int64("user_id", s.session.UserID()))
	return res, nil
}

// Register creates an account. It does not sign the user in.
func (s *Service) Register(ctx context.Context, reg domain.Registration) error {
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validation.Struct(reg); err != nil {
		return err
	}
	if err := s.api.Register(ctx, reg); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("registered", zap.String("email", reg.Email))
	return nil
}

func (s *Service) Logout(ctx context.Context) {
	s.session.SignOut(ctx)
}

// CurrentUser fetches the signed-in user.
func (s *Service) CurrentUser(ctx context.Context) (*domain.User, error) {
	if !s.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.api.GetUser(ctx, s.session.UserID())
}
