package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/metrics"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
)

// ErrNoProvider is the cause reported when a lookup needs the provider but
// the process was started without one (no API key configured).
var ErrNoProvider = errors.New("no recipe provider configured")

// RandomMode selects where RandomRecipes draws from.
type RandomMode string

const (
	ModeCache    RandomMode = "cache"    // only rows already in the store
	ModeExternal RandomMode = "external" // only fresh provider results, cached on arrival
	ModeMixed    RandomMode = "mixed"    // limit/2 from the provider, the rest from the store
)

// ParseRandomMode accepts "cache", "external" or "mixed". The empty string
// means cache.
func ParseRandomMode(s string) (RandomMode, error) {
	switch m := RandomMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeCache, nil
	case ModeCache, ModeExternal, ModeMixed:
		return m, nil
	default:
		return "", apperror.InvalidArgument("source", "invalid random source "+s)
	}
}

// Cache serves catalog reads from the store and falls back to the provider.
type Cache struct {
	store    repository.CatalogRepository
	provider Provider
	logger   *slog.Logger
}

// NewCache creates a Cache. provider may be nil, in which case every call that
// needs it fails with an ExternalProvider error wrapping ErrNoProvider.
func NewCache(store repository.CatalogRepository, provider Provider, logger *slog.Logger) *Cache {
	return &Cache{store: store, provider: provider, logger: logger}
}

// providerErr makes sure a provider failure carries the ExternalProvider
// kind. NotFound and validation errors pass through unchanged.
func providerErr(op string, err error) error {
	switch {
	case errors.Is(err, apperror.ErrExternalProvider),
		errors.Is(err, apperror.ErrNotFound),
		errors.Is(err, apperror.ErrValidation):
		return err
	default:
		return apperror.ExternalProvider(op, err)
	}
}

// listErr is providerErr for list lookups. Any provider error, NotFound
// included, is an ExternalProvider failure so callers can skip the lookup.
func listErr(op string, err error) error {
	if errors.Is(err, apperror.ErrExternalProvider) {
		return err
	}
	return apperror.ExternalProvider(op, err)
}

func (c *Cache) requireProvider(op string) error {
	if c.provider == nil {
		return apperror.ExternalProvider(op, ErrNoProvider)
	}
	return nil
}

func (c *Cache) cacheRecipes(ctx context.Context, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	infos := make([]model.RecipeInfo, len(recipes))
	for i, r := range recipes {
		infos[i] = model.RecipeInfoOf(r)
	}
	if err := c.store.AddRecipeInfos(ctx, infos, true); err != nil {
		return fmt.Errorf("catalog: caching recipes: %w", err)
	}
	return nil
}

func (c *Cache) cacheIngredients(ctx context.Context, ingredients []model.Ingredient) error {
	if len(ingredients) == 0 {
		return nil
	}
	infos := make([]model.IngredientInfo, len(ingredients))
	for i, ing := range ingredients {
		infos[i] = model.IngredientInfoOf(ing)
	}
	if err := c.store.AddIngredientInfos(ctx, infos, true); err != nil {
		return fmt.Errorf("catalog: caching ingredients: %w", err)
	}
	return nil
}

// ===== RECIPES =====

// GetRecipe returns the cached recipe, fetching and caching it on a miss.
func (c *Cache) GetRecipe(ctx context.Context, id int64) (*model.Recipe, error) {
	r, err := c.store.GetRecipeInfo(ctx, id)
	if err == nil {
		metrics.RecordCatalogLookup("recipe", true)
		return r, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	metrics.RecordCatalogLookup("recipe", false)

	if err := c.requireProvider("recipes/information"); err != nil {
		return nil, err
	}
	fetched, err := c.provider.GetRecipe(ctx, id)
	if err != nil {
		return nil, providerErr("recipes/information", err)
	}
	if err := c.cacheRecipes(ctx, []model.Recipe{*fetched}); err != nil {
		return nil, err
	}
	c.logger.Debug("cached recipe", slog.Int64("recipe_id", id))
	return fetched, nil
}

// SearchRecipes passes the query to the provider and caches every result.
func (c *Cache) SearchRecipes(ctx context.Context, q RecipeQuery) (RecipeSearchResult, error) {
	q, err := q.Normalize()
	if err != nil {
		return RecipeSearchResult{}, err
	}
	if err := c.requireProvider("recipes/complexSearch"); err != nil {
		return RecipeSearchResult{}, err
	}
	res, err := c.provider.SearchRecipes(ctx, q)
	if err != nil {
		return RecipeSearchResult{}, providerErr("recipes/complexSearch", err)
	}
	if res.Recipes == nil {
		res.Recipes = []model.Recipe{}
	}
	if err := c.cacheRecipes(ctx, res.Recipes); err != nil {
		return RecipeSearchResult{}, err
	}
	return res, nil
}

// SimilarRecipes returns up to n recipes similar to id. The reference recipe
// must already be in the catalog.
func (c *Cache) SimilarRecipes(ctx context.Context, id int64, n int) ([]model.Recipe, error) {
	if n < 1 {
		return []model.Recipe{}, nil
	}
	ok, err := c.store.RecipeInfoExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("recipe", fmt.Sprint(id))
	}
	if err := c.requireProvider("recipes/similar"); err != nil {
		return nil, err
	}
	recipes, err := c.provider.SimilarRecipes(ctx, id, n)
	if err != nil {
		return nil, listErr("recipes/similar", err)
	}
	if err := c.cacheRecipes(ctx, recipes); err != nil {
		return nil, err
	}
	return nonNil(recipes), nil
}

// RecipesByIngredients returns up to n recipes that use the named ingredients.
func (c *Cache) RecipesByIngredients(ctx context.Context, names []string, n int) ([]model.Recipe, error) {
	if n < 1 || len(names) == 0 {
		return []model.Recipe{}, nil
	}
	if err := c.requireProvider("recipes/findByIngredients"); err != nil {
		return nil, err
	}
	recipes, err := c.provider.RecipesByIngredients(ctx, names, n)
	if err != nil {
		return nil, listErr("recipes/findByIngredients", err)
	}
	if err := c.cacheRecipes(ctx, recipes); err != nil {
		return nil, err
	}
	return nonNil(recipes), nil
}

// RandomRecipes samples recipes according to mode. External results come
// first in mixed mode. A store holding fewer than the requested rows returns
// what it has.
func (c *Cache) RandomRecipes(ctx context.Context, mode RandomMode, limit int) ([]model.Recipe, error) {
	if limit < 1 {
		return []model.Recipe{}, nil
	}

	var external, cached int
	switch mode {
	case ModeCache:
		cached = limit
	case ModeExternal:
		external = limit
	case ModeMixed:
		external = limit / 2
		cached = limit - external
	default:
		return nil, apperror.InvalidArgument("source", "invalid random source "+string(mode))
	}

	out := make([]model.Recipe, 0, limit)
	if external > 0 {
		if err := c.requireProvider("recipes/random"); err != nil {
			return nil, err
		}
		recipes, err := c.provider.RandomRecipes(ctx, external)
		if err != nil {
			return nil, providerErr("recipes/random", err)
		}
		if err := c.cacheRecipes(ctx, recipes); err != nil {
			return nil, err
		}
		out = append(out, recipes...)
	}
	if cached > 0 {
		recipes, err := c.store.RandomRecipeInfos(ctx, cached)
		if err != nil {
			return nil, err
		}
		out = appendNew(out, recipes)
	}
	return out, nil
}

// appendNew appends the recipes whose ids are not already in out.
func appendNew(out, recipes []model.Recipe) []model.Recipe {
	seen := make(map[int64]bool, len(out))
	for _, r := range out {
		seen[r.ID] = true
	}
	for _, r := range recipes {
		if !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ===== INGREDIENTS =====

// GetIngredient returns the cached ingredient, fetching and caching it on a miss.
func (c *Cache) GetIngredient(ctx context.Context, id int64) (*model.Ingredient, error) {
	ing, err := c.store.GetIngredientInfo(ctx, id)
	if err == nil {
		metrics.RecordCatalogLookup("ingredient", true)
		return ing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	metrics.RecordCatalogLookup("ingredient", false)

	if err := c.requireProvider("food/ingredients/information"); err != nil {
		return nil, err
	}
	fetched, err := c.provider.GetIngredient(ctx, id)
	if err != nil {
		return nil, providerErr("food/ingredients/information", err)
	}
	if err := c.cacheIngredients(ctx, []model.Ingredient{*fetched}); err != nil {
		return nil, err
	}
	return fetched, nil
}

// SearchIngredients passes the query to the provider and caches every result.
func (c *Cache) SearchIngredients(ctx context.Context, q IngredientQuery) (IngredientSearchResult, error) {
	q, err := q.Normalize()
	if err != nil {
		return IngredientSearchResult{}, err
	}
	if err := c.requireProvider("food/ingredients/search"); err != nil {
		return IngredientSearchResult{}, err
	}
	res, err := c.provider.SearchIngredients(ctx, q)
	if err != nil {
		return IngredientSearchResult{}, providerErr("food/ingredients/search", err)
	}
	if res.Ingredients == nil {
		res.Ingredients = []model.Ingredient{}
	}
	if err := c.cacheIngredients(ctx, res.Ingredients); err != nil {
		return IngredientSearchResult{}, err
	}
	return res, nil
}

// RandomIngredients samples the ingredient catalog. The provider has no
// random-ingredient endpoint, so this never leaves the store.
func (c *Cache) RandomIngredients(ctx context.Context, limit int) ([]model.Ingredient, error) {
	if limit < 1 {
		return []model.Ingredient{}, nil
	}
	return c.store.RandomIngredientInfos(ctx, limit)
}
