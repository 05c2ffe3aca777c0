package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/piecemeal/internal/apperror"
)

const (
	// MaxPasswordLength is bcrypt's input limit. Longer passwords would be
	// silently truncated, so they are rejected instead.
	MaxPasswordLength = 72
	MinPasswordLength = 6
)

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: password does not match")

// PasswordService hashes and checks passwords with bcrypt.
type PasswordService struct {
	cost int
}

// NewPasswordServiceWithCost hashes at the given bcrypt cost. The server
// passes auth.bcrypt_cost; tests use bcrypt.MinCost.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckLength reports an InvalidArgument for passwords bcrypt cannot take
// or that are too short to be worth hashing.
func CheckLength(plaintext string) error {
	if len(plaintext) < MinPasswordLength {
		return apperror.InvalidArgument("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(plaintext) > MaxPasswordLength {
		return apperror.InvalidArgument("password", fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordLength))
	}
	return nil
}

// Hash returns the bcrypt hash of plaintext. Hashing failures are
// apperror.ErrEncryption.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if err := CheckLength(plaintext); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", apperror.Encryption("failed to hash password", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrPasswordMismatch
// when it does not.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return apperror.Encryption("failed to compare password hash", err)
	}
}
