// Package model defines the data structures used throughout the application.
package model

import "time"

const DefaultProfileImage = "/static/assets/default_user_profile_image.png"

// AuthMethod records how an account signs in. It is fixed at creation.
type AuthMethod int

const (
	AuthDefault AuthMethod = 0 // email/username + password
	AuthGoogle  AuthMethod = 1 // Google OAuth, no local password
)

func (a AuthMethod) Valid() bool {
	return a == AuthDefault || a == AuthGoogle
}

func (a AuthMethod) String() string {
	switch a {
	case AuthDefault:
		return "default"
	case AuthGoogle:
		return "google"
	default:
		return "unknown"
	}
}

type UserStatus int

const (
	StatusUnverified  UserStatus = 0
	StatusVerified    UserStatus = 1
	StatusDeactivated UserStatus = 2
)

func (s UserStatus) Valid() bool {
	return s >= StatusUnverified && s <= StatusDeactivated
}

// User is a registered account.
//
// WHY NO PASSWORD FIELD?
// Password hashes live in their own table and are only read through
// UserRepository.GetPasswordHash. Keeping them off this struct means a User
// can be logged or serialized without leaking a credential.
type User struct {
	ID                string            `json:"id"`
	Username          string            `json:"username"`
	Email             string            `json:"email"`
	GivenName         string            `json:"given_name"`
	FamilyName        string            `json:"family_name"`
	ProfileImage      string            `json:"profile_image"`
	CreationDate      time.Time         `json:"creation_date"`
	Authentication    AuthMethod        `json:"authentication"`
	Status            UserStatus        `json:"status"`
	ProfileVisibility ProfileVisibility `json:"profile_visibility"`
}

// PublicUser is the subset of a User that other users may see.
// Email and credentials never appear. Name and creation date appear only when
// the owner's visibility bits allow them.
type PublicUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	ProfileImage string     `json:"profile_image"`
	GivenName    *string    `json:"given_name,omitempty"`
	FamilyName   *string    `json:"family_name,omitempty"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
}

// Public projects u through its own visibility rules.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
	}
	if u.ProfileVisibility.Has(VisibilityName) {
		given, family := u.GivenName, u.FamilyName
		p.GivenName = &given
		p.FamilyName = &family
	}
	if u.ProfileVisibility.Has(VisibilityCreationDate) {
		created := u.CreationDate
		p.CreationDate = &created
	}
	return p
}

// PublicUsers projects a slice of users.
func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}

// NewUser is the input for creating an account. Only Email and
// Authentication are required; everything else is generated or defaulted.
type NewUser struct {
	ID                string             `json:"id"                 validate:"omitempty,userid"`
	Username          string             `json:"username"           validate:"omitempty,username"`
	Email             string             `json:"email"              validate:"required,piecemeal_email"`
	Password          string             `json:"password"`
	GivenName         string             `json:"given_name"         validate:"max=255"`
	FamilyName        string             `json:"family_name"        validate:"max=255"`
	ProfileImage      string             `json:"profile_image"`
	Authentication    AuthMethod         `json:"authentication"`
	Status            *UserStatus        `json:"status,omitempty"`
	ProfileVisibility *ProfileVisibility `json:"profile_visibility,omitempty"`
}

// ToUser fills in the defaults for fields the caller left empty.
// ID and Username must already be set.
func (n NewUser) ToUser(now time.Time) *User {
	u := &User{
		ID:             n.ID,
		Username:       n.Username,
		Email:          n.Email,
		GivenName:      n.GivenName,
		FamilyName:     n.FamilyName,
		ProfileImage:   n.ProfileImage,
		CreationDate:   now,
		Authentication: n.Authentication,
		Status:         StatusUnverified,
	}
	if u.ProfileImage == "" {
		u.ProfileImage = DefaultProfileImage
	}
	if n.Status != nil {
		u.Status = *n.Status
	}
	if n.ProfileVisibility != nil {
		u.ProfileVisibility = *n.ProfileVisibility
	}
	return u
}
