// Package repository declares the storage contracts the services depend on.
//
// Every lookup by id returns an apperror.ErrNotFound kind when the row is
// missing, and every add returns apperror.ErrConflict when a uniqueness rule
// would be violated. Any other error is a storage failure.
package repository

import (
	"context"

	"github.com/sakif/piecemeal/internal/model"
)

// ListOptions paginates in insertion order. Limit 0 means "all rows".
type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User, passwordHash string) error
	CreateUsers(ctx context.Context, users []*model.User, passwordHashes []string) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUsersByID(ctx context.Context, ids []string) ([]model.User, error)
	GetUsersByUsername(ctx context.Context, usernames []string) ([]model.User, error)
	DeleteUser(ctx context.Context, id string) error
	DeleteUsers(ctx context.Context, ids []string) error
	UserExists(ctx context.Context, id string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	SearchUsersByName(ctx context.Context, query string, field NameField, obeyVisibility bool, opts ListOptions) ([]model.User, int, error)
	SearchUsersByUsername(ctx context.Context, query string, opts ListOptions) ([]model.User, int, error)

	SetUsername(ctx context.Context, id, username string) error
	SetEmail(ctx context.Context, id, email string) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	GetPasswordHash(ctx context.Context, id string) (string, error)
	SetProfileImage(ctx context.Context, id, url string) error
	SetStatus(ctx context.Context, id string, status model.UserStatus) error
	SetName(ctx context.Context, id, givenName, familyName string) error
	SetGivenName(ctx context.Context, id, givenName string) error
	SetFamilyName(ctx context.Context, id, familyName string) error
	SetProfileVisibility(ctx context.Context, id string, v model.ProfileVisibility) error
}

// NameField selects which name columns SearchUsersByName matches against.
type NameField int

const (
	NameFull   NameField = iota // given and family name, either order
	NameGiven                   // given name only
	NameFamily                  // family name only
)

type CatalogRepository interface {
	AddRecipeInfo(ctx context.Context, info model.RecipeInfo) error
	AddRecipeInfos(ctx context.Context, infos []model.RecipeInfo, ignoreDuplicates bool) error
	GetRecipeInfo(ctx context.Context, id int64) (*model.Recipe, error)
	GetRecipeInfos(ctx context.Context, ids []int64) ([]model.Recipe, error)
	DeleteRecipeInfo(ctx context.Context, id int64) error
	DeleteRecipeInfos(ctx context.Context, ids []int64) error
	RecipeInfoExists(ctx context.Context, id int64) (bool, error)
	RandomRecipeInfos(ctx context.Context, limit int) ([]model.Recipe, error)

	AddIngredientInfo(ctx context.Context, info model.IngredientInfo) error
	AddIngredientInfos(ctx context.Context, infos []model.IngredientInfo, ignoreDuplicates bool) error
	GetIngredientInfo(ctx context.Context, id int64) (*model.Ingredient, error)
	GetIngredientInfos(ctx context.Context, ids []int64) ([]model.Ingredient, error)
	DeleteIngredientInfo(ctx context.Context, id int64) error
	DeleteIngredientInfos(ctx context.Context, ids []int64) error
	IngredientInfoExists(ctx context.Context, id int64) (bool, error)
	RandomIngredientInfos(ctx context.Context, limit int) ([]model.Ingredient, error)
}

type SavedRecipeRepository interface {
	// AddRecipe creates the catalog row if needed and the association in one
	// transaction.
	AddRecipe(ctx context.Context, userID string, info model.RecipeInfo) error
	HasRecipe(ctx context.Context, userID string, recipeID int64) (bool, error)
	DeleteRecipe(ctx context.Context, userID string, recipeID int64) (bool, error)
	GetRecipes(ctx context.Context, userID string, opts ListOptions) ([]model.Recipe, int, error)
	// AddRecipes saves infos[i] for userIDs[i], all or nothing.
	AddRecipes(ctx context.Context, userIDs []string, infos []model.RecipeInfo) error
	DeleteRecipes(ctx context.Context, userIDs []string, recipeIDs []int64) error
	// RecentRecipes returns the user's newest saves, newest first.
	RecentRecipes(ctx context.Context, userID string, window int) ([]model.Recipe, error)
}

type SavedIngredientRepository interface {
	AddIngredient(ctx context.Context, userID string, info model.IngredientInfo, liked bool) error
	HasIngredient(ctx context.Context, userID string, ingredientID int64) (bool, error)
	DeleteIngredient(ctx context.Context, userID string, ingredientID int64) (bool, error)
	GetIngredients(ctx context.Context, userID string, opts ListOptions) ([]model.SavedIngredient, int, error)
	AddIngredients(ctx context.Context, userIDs []string, infos []model.IngredientInfo, liked []bool) error
	DeleteIngredients(ctx context.Context, userIDs []string, ingredientIDs []int64) error
	RecentIngredients(ctx context.Context, userID string, window int) ([]model.SavedIngredient, error)
}

type IntoleranceRepository interface {
	AddIntolerance(ctx context.Context, userID string, i model.Intolerance) (bool, error)
	HasIntolerance(ctx context.Context, userID string, i model.Intolerance) (bool, error)
	DeleteIntolerance(ctx context.Context, userID string, i model.Intolerance) (bool, error)
	GetIntolerances(ctx context.Context, userID string, opts ListOptions) ([]model.Intolerance, int, error)
}

type FriendRepository interface {
	AddRelationship(ctx context.Context, user1, user2 string) error
	HasRelationship(ctx context.Context, user1, user2 string) (bool, error)
	DeleteRelationship(ctx context.Context, user1, user2 string) error
	GetRelationships(ctx context.Context, userID string, opts ListOptions) ([]model.User, int, error)

	AddFriendRequest(ctx context.Context, src, target string) (bool, error)
	HasFriendRequest(ctx context.Context, src, target string) (bool, error)
	DeleteFriendRequest(ctx context.Context, src, target string) (bool, error)
	// AcceptFriendRequest removes the request and creates the edge atomically.
	AcceptFriendRequest(ctx context.Context, src, target string) (bool, error)
	GetFriendRequestsForSource(ctx context.Context, src string, opts ListOptions) ([]model.User, int, error)
	GetFriendRequestsForTarget(ctx context.Context, target string, opts ListOptions) ([]model.User, int, error)
}

// Store bundles every repository. *sqlite.DB satisfies it.
type Store interface {
	UserRepository
	CatalogRepository
	SavedRecipeRepository
	SavedIngredientRepository
	IntoleranceRepository
	FriendRepository
}
