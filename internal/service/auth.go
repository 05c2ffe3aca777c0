package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/model"
)

// ErrInvalidCredentials is returned by Login for an unknown login or a wrong
// password. The two cases are deliberately indistinguishable to callers.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService turns credentials into session tokens.
//
//	AuthHandler (HTTP) → AuthService → UserService → UserRepository
//	                                 ↘ TokenService (JWT)
//
// It never touches cookies or requests; the handler does that with the
// returned token.
type AuthService struct {
	users  *UserService
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users *UserService, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// AuthResult bundles the signed-in user and their token so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

func (s *AuthService) issue(u *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", u.ID, err)
	}
	return &AuthResult{User: u, Token: token}, nil
}

// Signup registers a DEFAULT account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in model.NewUser) (*AuthResult, error) {
	in.Authentication = model.AuthDefault
	u, err := s.users.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login accepts an email or a username with the account's password.
func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	u, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.users.VerifyPassword(ctx, u.ID, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("failed login", slog.String("id", u.ID))
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("user logged in", slog.String("id", u.ID))
	return s.issue(u)
}

// LoginOrRegisterGoogle signs in the account holding the Google email, or
// creates a GOOGLE account for it on first sight. An existing DEFAULT
// account with the same email is not taken over.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil {
		return nil, errors.New("service/auth: Google user must not be nil")
	}

	u, err := s.users.users.GetUserByEmail(ctx, gu.Email)
	switch {
	case err == nil:
		if u.Authentication != model.AuthGoogle {
			return nil, apperror.Conflict("user", gu.Email)
		}
	case errors.Is(err, apperror.ErrNotFound):
		status := model.StatusUnverified
		if gu.EmailVerified {
			status = model.StatusVerified
		}
		u, err = s.users.Register(ctx, model.NewUser{
			Email:          gu.Email,
			GivenName:      gu.GivenName,
			FamilyName:     gu.FamilyName,
			ProfileImage:   gu.Picture,
			Authentication: model.AuthGoogle,
			Status:         &status,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.logger.Info("user authenticated via Google", slog.String("id", u.ID))
	return s.issue(u)
}

// ValidateToken returns the user id a token was issued for.
func (s *AuthService) ValidateToken(token string) (string, error) {
	return s.tokens.Validate(token)
}
