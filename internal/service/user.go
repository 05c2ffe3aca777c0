// Package service holds the business rules between the HTTP handlers and
// the store:
//
//	Handler (HTTP) → Service (rules, orchestration) → repository.Store (SQL)
//	                                                ↘ catalog.Cache (provider)
//
// Services take the store and every other collaborator through their
// constructors. None of them know about HTTP; they accept plain values and
// return apperror kinds that the handlers translate into error codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
	"github.com/sakif/piecemeal/internal/validation"
)

const (
	usernamePrefix       = "user-"
	minGeneratedDigits   = 5
	maxGeneratedDigits   = 10
	triesPerDigitCount   = 10
	DefaultUserPageLimit = 20
)

// SearchField selects what Search matches a query against.
type SearchField string

const (
	SearchUsername   SearchField = "username"
	SearchFullName   SearchField = "full_name"
	SearchGivenName  SearchField = "given_name"
	SearchFamilyName SearchField = "family_name"
)

// UserService manages accounts.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	rand      *Rand
	logger    *slog.Logger
	now       func() time.Time
}

// NewUserService wires the account rules. r may be nil, in which case a
// time-seeded source is used for username generation.
func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, r *Rand, logger *slog.Logger) *UserService {
	if r == nil {
		r = newTimeSeededRand()
	}
	return &UserService{
		users:     users,
		passwords: passwords,
		rand:      r,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account.
//
// Missing ids are generated with xid and missing usernames with
// GenerateUsername. Uniqueness is checked in the order email, username, id,
// so a caller that reuses an email always hears about the email first.
// DEFAULT accounts must carry a password; GOOGLE accounts never store one.
func (s *UserService) Register(ctx context.Context, in model.NewUser) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.GivenName = strings.TrimSpace(in.GivenName)
	in.FamilyName = strings.TrimSpace(in.FamilyName)

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !in.Authentication.Valid() {
		return nil, apperror.InvalidArgument("authentication", "unknown authentication method")
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperror.InvalidArgument("status", "unknown user status")
	}

	var hash string
	if in.Authentication == model.AuthDefault {
		var err error
		if hash, err = s.passwords.Hash(in.Password); err != nil {
			return nil, err
		}
	}

	if in.ID == "" {
		in.ID = xid.New().String()
	}
	if in.Username == "" {
		username, err := s.GenerateUsername(ctx)
		if err != nil {
			return nil, err
		}
		in.Username = username
	}

	user := in.ToUser(s.now())
	if err := s.users.CreateUser(ctx, user, hash); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
		slog.String("auth", user.Authentication.String()),
	)
	return user, nil
}

// GenerateUsername returns an unused "user-NNNNN" name. It tries ten random
// suffixes at each width from five to ten digits before giving up.
func (s *UserService) GenerateUsername(ctx context.Context) (string, error) {
	for digits := minGeneratedDigits; digits <= maxGeneratedDigits; digits++ {
		bound := pow10(digits)
		for try := 0; try < triesPerDigitCount; try++ {
			candidate := fmt.Sprintf("%s%0*d", usernamePrefix, digits, s.rand.IntN(bound))
			taken, err := s.users.UsernameExists(ctx, candidate)
			if err != nil {
				return "", fmt.Errorf("service/user: checking username: %w", err)
			}
			if !taken {
				return candidate, nil
			}
		}
	}
	return "", errors.New("service/user: failed to generate a unique username")
}

func pow10(n int) int {
	p := 1
	for range n {
		p *= 10
	}
	return p
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

// GetByLogin accepts either an email or a username.
func (s *UserService) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return s.users.GetUserByEmail(ctx, login)
	}
	return s.users.GetUserByUsername(ctx, login)
}

// Public returns what other users may see of id.
func (s *UserService) Public(ctx context.Context, id string) (*model.PublicUser, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

// Delete removes the account and, through the store's cascades, everything
// that references it.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("id", id))
	return nil
}

// Search pages through users matching query. Name searches skip users who
// hide their name.
func (s *UserService) Search(ctx context.Context, query string, by SearchField, offset, limit int) ([]model.PublicUser, int, error) {
	if err := validation.ValidPage(offset, limit); err != nil {
		return nil, 0, err
	}
	opts := repository.ListOptions{Offset: offset, Limit: limit}

	var users []model.User
	var total int
	var err error
	switch by {
	case SearchUsername:
		users, total, err = s.users.SearchUsersByUsername(ctx, query, opts)
	case SearchFullName:
		users, total, err = s.users.SearchUsersByName(ctx, query, repository.NameFull, true, opts)
	case SearchGivenName:
		users, total, err = s.users.SearchUsersByName(ctx, query, repository.NameGiven, true, opts)
	case SearchFamilyName:
		users, total, err = s.users.SearchUsersByName(ctx, query, repository.NameFamily, true, opts)
	default:
		return nil, 0, apperror.InvalidArgument("search_by",
			"search_by must be one of: username, full_name, given_name, family_name")
	}
	if err != nil {
		return nil, 0, err
	}
	return model.PublicUsers(users), total, nil
}

// AccountUpdate lists the fields UpdateAccount may change. Nil fields are
// left alone. Visibility replaces the whole mask; ShowSections and
// HideSections then toggle individual sections by name.
type AccountUpdate struct {
	Email        *string                  `json:"email"`
	Username     *string                  `json:"username"`
	GivenName    *string                  `json:"given_name"`
	FamilyName   *string                  `json:"family_name"`
	ProfileImage *string                  `json:"profile_image"`
	Status       *model.UserStatus        `json:"status"`
	Visibility   *model.ProfileVisibility `json:"profile_visibility"`
	ShowSections []string                 `json:"show"`
	HideSections []string                 `json:"hide"`
}

// UpdateAccount validates every field before writing any, then applies them
// in order. If a later write fails the email and username are restored, so a
// rejected update never leaves half of itself behind.
func (s *UserService) UpdateAccount(ctx context.Context, id string, upd AccountUpdate) (*model.User, error) {
	original, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		if err := validation.ValidEmail(strings.TrimSpace(*upd.Email)); err != nil {
			return nil, err
		}
	}
	if upd.Username != nil {
		if err := validation.ValidUsername(strings.TrimSpace(*upd.Username)); err != nil {
			return nil, err
		}
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, apperror.InvalidArgument("status", "unknown user status")
	}
	visibility := original.ProfileVisibility
	if upd.Visibility != nil {
		visibility = *upd.Visibility
	}
	for _, name := range upd.ShowSections {
		flag, ok := model.ParseVisibilityFlag(name)
		if !ok {
			return nil, apperror.InvalidArgument("show", fmt.Sprintf("unknown profile section %q", name))
		}
		visibility = visibility.Enable(flag)
	}
	for _, name := range upd.HideSections {
		flag, ok := model.ParseVisibilityFlag(name)
		if !ok {
			return nil, apperror.InvalidArgument("hide", fmt.Sprintf("unknown profile section %q", name))
		}
		visibility = visibility.Disable(flag)
	}

	apply := func() error {
		if upd.Email != nil {
			if err := s.users.SetEmail(ctx, id, strings.TrimSpace(*upd.Email)); err != nil {
				return err
			}
		}
		if upd.Username != nil {
			if err := s.users.SetUsername(ctx, id, strings.TrimSpace(*upd.Username)); err != nil {
				return err
			}
		}
		if upd.GivenName != nil {
			if err := s.users.SetGivenName(ctx, id, strings.TrimSpace(*upd.GivenName)); err != nil {
				return err
			}
		}
		if upd.FamilyName != nil {
			if err := s.users.SetFamilyName(ctx, id, strings.TrimSpace(*upd.FamilyName)); err != nil {
				return err
			}
		}
		if upd.ProfileImage != nil {
			img := strings.TrimSpace(*upd.ProfileImage)
			if img == "" {
				img = model.DefaultProfileImage
			}
			if err := s.users.SetProfileImage(ctx, id, img); err != nil {
				return err
			}
		}
		if upd.Status != nil {
			if err := s.users.SetStatus(ctx, id, *upd.Status); err != nil {
				return err
			}
		}
		if visibility != original.ProfileVisibility {
			if err := s.users.SetProfileVisibility(ctx, id, visibility); err != nil {
				return err
			}
		}
		return nil
	}

	if err := apply(); err != nil {
		s.revert(ctx, original)
		return nil, err
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) revert(ctx context.Context, u *model.User) {
	errs := errors.Join(
		s.users.SetEmail(ctx, u.ID, u.Email),
		s.users.SetUsername(ctx, u.ID, u.Username),
		s.users.SetName(ctx, u.ID, u.GivenName, u.FamilyName),
		s.users.SetProfileImage(ctx, u.ID, u.ProfileImage),
		s.users.SetStatus(ctx, u.ID, u.Status),
		s.users.SetProfileVisibility(ctx, u.ID, u.ProfileVisibility),
	)
	if errs != nil {
		s.logger.Error("failed to revert account update",
			slog.String("id", u.ID),
			slog.String("error", errs.Error()),
		)
	}
}

// VerifyPassword reports whether password is the account's password. Accounts
// without a local password never verify.
func (s *UserService) VerifyPassword(ctx context.Context, id, password string) (bool, error) {
	hash, err := s.users.GetPasswordHash(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch err := s.passwords.Verify(hash, password); {
	case err == nil:
		return true, nil
	case errors.Is(err, auth.ErrPasswordMismatch):
		return false, nil
	default:
		return false, err
	}
}

// ChangePassword replaces the password after checking the old one. A wrong
// old password is Forbidden.
func (s *UserService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Authentication != model.AuthDefault {
		return apperror.Forbidden("account has no local password")
	}
	ok, err := s.VerifyPassword(ctx, id, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Forbidden("invalid current password")
	}
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, id, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.String("id", id))
	return nil
}
