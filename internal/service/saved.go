package service

import (
	"context"
	"log/slog"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
	"github.com/sakif/piecemeal/internal/validation"
)

const (
	DefaultTopLimit       = 5
	DefaultFriendLimit    = 5
	DefaultLimitPerFriend = 5
)

// savedStore is the part of the store the saved-item rules need.
type savedStore interface {
	repository.SavedRecipeRepository
	repository.SavedIngredientRepository
	GetRelationships(ctx context.Context, userID string, opts repository.ListOptions) ([]model.User, int, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// SavedItemService manages the recipes and ingredients users keep.
//
// TOP-N:
// A user's "top" items are a shuffled sample of their most recent saves:
// TopRecipes(u, 3) only ever returns items from the last three saved, in
// random order. Friend top samples friends first and then takes each
// friend's top.
type SavedItemService struct {
	store  savedStore
	rand   *Rand
	logger *slog.Logger
}

func NewSavedItemService(store savedStore, r *Rand, logger *slog.Logger) *SavedItemService {
	if r == nil {
		r = newTimeSeededRand()
	}
	return &SavedItemService{store: store, rand: r, logger: logger}
}

func (s *SavedItemService) requireUser(ctx context.Context, id string) error {
	ok, err := s.store.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("user", id)
	}
	return nil
}

// ===== RECIPES =====

// AddRecipe saves info for userID, caching the recipe first if needed. Saving
// the same recipe twice is a Duplicate error.
func (s *SavedItemService) AddRecipe(ctx context.Context, userID string, info model.RecipeInfo) error {
	if err := validation.Struct(info); err != nil {
		return err
	}
	if err := s.store.AddRecipe(ctx, userID, info); err != nil {
		return err
	}
	s.logger.Debug("recipe saved", slog.String("user", userID), slog.Int64("recipe", info.ID))
	return nil
}

func (s *SavedItemService) HasRecipe(ctx context.Context, userID string, recipeID int64) (bool, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return false, err
	}
	return s.store.HasRecipe(ctx, userID, recipeID)
}

// DeleteRecipe reports whether the recipe had been saved.
func (s *SavedItemService) DeleteRecipe(ctx context.Context, userID string, recipeID int64) (bool, error) {
	return s.store.DeleteRecipe(ctx, userID, recipeID)
}

func (s *SavedItemService) GetRecipes(ctx context.Context, userID string, offset, limit int) ([]model.Recipe, int, error) {
	if err := validation.ValidPage(offset, limit); err != nil {
		return nil, 0, err
	}
	return s.store.GetRecipes(ctx, userID, repository.ListOptions{Offset: offset, Limit: limit})
}

// AddRecipes saves infos[i] for userIDs[i]. Either every pair is saved or
// none is.
func (s *SavedItemService) AddRecipes(ctx context.Context, userIDs []string, infos []model.RecipeInfo) error {
	for _, info := range infos {
		if err := validation.Struct(info); err != nil {
			return err
		}
	}
	return s.store.AddRecipes(ctx, userIDs, infos)
}

func (s *SavedItemService) DeleteRecipes(ctx context.Context, userIDs []string, recipeIDs []int64) error {
	return s.store.DeleteRecipes(ctx, userIDs, recipeIDs)
}

// TopRecipes returns min(limit, saved) of the user's latest saves, shuffled.
func (s *SavedItemService) TopRecipes(ctx context.Context, userID string, limit int) ([]model.Recipe, error) {
	if limit < 0 {
		return nil, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	recent, err := s.store.RecentRecipes(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return Sample(s.rand, recent, len(recent)), nil
}

// FriendTopRecipes samples up to friendLimit friends and returns each one's
// TopRecipes(limitPerFriend).
func (s *SavedItemService) FriendTopRecipes(ctx context.Context, userID string, friendLimit, limitPerFriend int) ([]model.FriendTopRecipes, error) {
	friends, err := s.sampleFriends(ctx, userID, friendLimit, limitPerFriend)
	if err != nil {
		return nil, err
	}
	out := make([]model.FriendTopRecipes, 0, len(friends))
	for i := range friends {
		top, err := s.TopRecipes(ctx, friends[i].ID, limitPerFriend)
		if err != nil {
			return nil, err
		}
		out = append(out, model.FriendTopRecipes{User: friends[i].Public(), Recipes: top})
	}
	return out, nil
}

// ===== INGREDIENTS =====

func (s *SavedItemService) AddIngredient(ctx context.Context, userID string, info model.IngredientInfo, liked bool) error {
	if err := validation.Struct(info); err != nil {
		return err
	}
	if err := s.store.AddIngredient(ctx, userID, info, liked); err != nil {
		return err
	}
	s.logger.Debug("ingredient saved",
		slog.String("user", userID),
		slog.Int64("ingredient", info.ID),
		slog.Bool("liked", liked),
	)
	return nil
}

func (s *SavedItemService) HasIngredient(ctx context.Context, userID string, ingredientID int64) (bool, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return false, err
	}
	return s.store.HasIngredient(ctx, userID, ingredientID)
}

func (s *SavedItemService) DeleteIngredient(ctx context.Context, userID string, ingredientID int64) (bool, error) {
	return s.store.DeleteIngredient(ctx, userID, ingredientID)
}

func (s *SavedItemService) GetIngredients(ctx context.Context, userID string, offset, limit int) ([]model.SavedIngredient, int, error) {
	if err := validation.ValidPage(offset, limit); err != nil {
		return nil, 0, err
	}
	return s.store.GetIngredients(ctx, userID, repository.ListOptions{Offset: offset, Limit: limit})
}

// AddIngredients is all or nothing. A nil liked marks every ingredient liked.
func (s *SavedItemService) AddIngredients(ctx context.Context, userIDs []string, infos []model.IngredientInfo, liked []bool) error {
	for _, info := range infos {
		if err := validation.Struct(info); err != nil {
			return err
		}
	}
	return s.store.AddIngredients(ctx, userIDs, infos, liked)
}

func (s *SavedItemService) DeleteIngredients(ctx context.Context, userIDs []string, ingredientIDs []int64) error {
	return s.store.DeleteIngredients(ctx, userIDs, ingredientIDs)
}

func (s *SavedItemService) TopIngredients(ctx context.Context, userID string, limit int) ([]model.SavedIngredient, error) {
	if limit < 0 {
		return nil, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	recent, err := s.store.RecentIngredients(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return Sample(s.rand, recent, len(recent)), nil
}

func (s *SavedItemService) FriendTopIngredients(ctx context.Context, userID string, friendLimit, limitPerFriend int) ([]model.FriendTopIngredients, error) {
	friends, err := s.sampleFriends(ctx, userID, friendLimit, limitPerFriend)
	if err != nil {
		return nil, err
	}
	out := make([]model.FriendTopIngredients, 0, len(friends))
	for i := range friends {
		top, err := s.TopIngredients(ctx, friends[i].ID, limitPerFriend)
		if err != nil {
			return nil, err
		}
		out = append(out, model.FriendTopIngredients{User: friends[i].Public(), Ingredients: top})
	}
	return out, nil
}

func (s *SavedItemService) sampleFriends(ctx context.Context, userID string, friendLimit, limitPerFriend int) ([]model.User, error) {
	if friendLimit < 0 {
		return nil, apperror.InvalidArgument("friend_limit", "expected friend_limit >= 0")
	}
	if limitPerFriend < 0 {
		return nil, apperror.InvalidArgument("limit_per_friend", "expected limit_per_friend >= 0")
	}
	friends, _, err := s.store.GetRelationships(ctx, userID, repository.ListOptions{})
	if err != nil {
		return nil, err
	}
	return Sample(s.rand, friends, friendLimit), nil
}
