package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestRegister(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()

	u, err := svc.Register(ctx, model.NewUser{
		Email:     "  ana@example.com ",
		Password:  "secret-pass",
		GivenName: "Ana",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Regexp(t, regexp.MustCompile(`^user-\d{5}$`), u.Username)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, model.DefaultProfileImage, u.ProfileImage)
	assert.Equal(t, model.StatusUnverified, u.Status)

	ok, err := svc.VerifyPassword(ctx, u.ID, "secret-pass")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegister_Errors(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()
	addUser(t, db, "taken")

	tests := []struct {
		name    string
		in      model.NewUser
		wantErr error
	}{
		{"bad email", model.NewUser{Email: "nope", Password: "secret-pass"}, apperror.ErrValidation},
		{"bad username", model.NewUser{Email: "a@b.co", Username: "a b", Password: "secret-pass"}, apperror.ErrValidation},
		{"short password", model.NewUser{Email: "a@b.co", Password: "123"}, apperror.ErrValidation},
		{"unknown auth", model.NewUser{Email: "a@b.co", Authentication: 7}, apperror.ErrValidation},
		{"email taken", model.NewUser{Email: "taken@example.com", Password: "secret-pass"}, apperror.ErrConflict},
		{"username taken", model.NewUser{Email: "a@b.co", Username: "user-taken", Password: "secret-pass"}, apperror.ErrConflict},
		{"id taken", model.NewUser{Email: "a@b.co", ID: "taken", Password: "secret-pass"}, apperror.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_GoogleHasNoPassword(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()

	u, err := svc.Register(ctx, model.NewUser{Email: "g@example.com", Authentication: model.AuthGoogle})
	require.NoError(t, err)

	ok, err := svc.VerifyPassword(ctx, u.ID, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateUsername_SkipsTaken(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	// Replay the seeded sequence once to learn the first candidate, then
	// take it so generation has to move on.
	first, err := newTestUserService(db).GenerateUsername(ctx)
	require.NoError(t, err)
	require.NoError(t, db.CreateUser(ctx, &model.User{ID: "x", Username: first, Email: "x@example.com"}, ""))

	second, err := newTestUserService(db).GenerateUsername(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Regexp(t, `^user-\d{5,10}$`, second)
}

func TestSearch_ObeysVisibility(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()

	addUser(t, db, "open")
	hidden := addUser(t, db, "hidden")
	require.NoError(t, db.SetProfileVisibility(ctx, hidden.ID, model.VisibilityNone()))

	got, total, err := svc.Search(ctx, "Given", SearchGivenName, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "open", got[0].ID)
	require.NotNil(t, got[0].GivenName)

	got, total, err = svc.Search(ctx, "user-", SearchUsername, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total, "username search ignores name visibility")
	assert.Len(t, got, 2)

	_, _, err = svc.Search(ctx, "x", SearchField("email"), 0, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, _, err = svc.Search(ctx, "x", SearchUsername, -1, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestPublic_HidesFields(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()
	u := addUser(t, db, "u1")
	require.NoError(t, db.SetProfileVisibility(ctx, u.ID, model.VisibilityName))

	p, err := svc.Public(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, p.GivenName)
	assert.Nil(t, p.CreationDate)

	_, err = svc.Public(ctx, "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateAccount(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()
	addUser(t, db, "u1")
	addUser(t, db, "u2")

	got, err := svc.UpdateAccount(ctx, "u1", AccountUpdate{
		Username:     ptr("ana_b"),
		GivenName:    ptr(" Ana "),
		HideSections: []string{"name", "friends"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ana_b", got.Username)
	assert.Equal(t, "Ana", got.GivenName)
	assert.False(t, got.ProfileVisibility.Has(model.VisibilityName))
	assert.False(t, got.ProfileVisibility.Has(model.VisibilityFriends))
	assert.True(t, got.ProfileVisibility.Has(model.VisibilityIntolerances))

	t.Run("duplicate username rolls back email", func(t *testing.T) {
		_, err := svc.UpdateAccount(ctx, "u1", AccountUpdate{
			Email:    ptr("new@example.com"),
			Username: ptr("user-u2"),
		})
		assert.ErrorIs(t, err, apperror.ErrConflict)

		u, err := svc.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1@example.com", u.Email)
		assert.Equal(t, "ana_b", u.Username)
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := svc.UpdateAccount(ctx, "u1", AccountUpdate{ShowSections: []string{"shoe_size"}})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("bad email", func(t *testing.T) {
		_, err := svc.UpdateAccount(ctx, "u1", AccountUpdate{Email: ptr("not-an-email")})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("status", func(t *testing.T) {
		u, err := svc.UpdateAccount(ctx, "u1", AccountUpdate{Status: ptr(model.StatusVerified)})
		require.NoError(t, err)
		assert.Equal(t, model.StatusVerified, u.Status)
	})
}

func TestChangePassword(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()

	u, err := svc.Register(ctx, model.NewUser{Email: "p@example.com", Password: "old-password"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, "wrong-password", "new-password")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "old-password", "new-password"))
	ok, err := svc.VerifyPassword(ctx, u.ID, "new-password")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	db := newTestStore(t)
	svc := newTestUserService(db)
	ctx := context.Background()
	addUser(t, db, "u1")

	require.NoError(t, svc.Delete(ctx, "u1"))
	_, err := svc.Get(ctx, "u1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u1"), apperror.ErrNotFound)
}
