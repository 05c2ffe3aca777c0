// Package catalog is the read-through cache in front of the recipe provider.
//
// Recipes and ingredients are shared by every user and keyed by the
// provider's own ids. Anything the provider returns is written to the store
// as it passes through, so later lookups and saves can be served locally.
package catalog

import (
	"context"

	"github.com/sakif/piecemeal/internal/model"
)

// Provider is the external recipe source. Implementations wrap transport and
// decoding failures as apperror.ExternalProvider and report unknown ids as
// apperror.NotFound.
type Provider interface {
	SearchRecipes(ctx context.Context, q RecipeQuery) (RecipeSearchResult, error)
	GetRecipe(ctx context.Context, id int64) (*model.Recipe, error)
	SimilarRecipes(ctx context.Context, id int64, n int) ([]model.Recipe, error)
	RandomRecipes(ctx context.Context, n int) ([]model.Recipe, error)
	RecipesByIngredients(ctx context.Context, names []string, n int) ([]model.Recipe, error)
	SearchIngredients(ctx context.Context, q IngredientQuery) (IngredientSearchResult, error)
	GetIngredient(ctx context.Context, id int64) (*model.Ingredient, error)
}

// RecipeQuery is a recipe search. Empty filters are omitted from the request.
type RecipeQuery struct {
	Query              string              `json:"query"`
	Intolerances       []model.Intolerance `json:"intolerances"`
	Cuisines           []string            `json:"cuisines"`
	Diets              []string            `json:"diets"`
	IncludeIngredients []string            `json:"ingredients"`
	MaxReadyTime       int                 `json:"max_prep_time"` // minutes, 0 for no limit
	Sort               string              `json:"sort_by"`
	Offset             int                 `json:"offset"`
	Number             int                 `json:"limit"`
}

type RecipeSearchResult struct {
	Recipes      []model.Recipe `json:"recipes"`
	TotalResults int            `json:"total_results"`
}

// IngredientQuery is an ingredient search.
type IngredientQuery struct {
	Query        string              `json:"query"`
	Intolerances []model.Intolerance `json:"intolerances"`
	Sort         string              `json:"sort_by"`
	Offset       int                 `json:"offset"`
	Number       int                 `json:"limit"`
}

type IngredientSearchResult struct {
	Ingredients  []model.Ingredient `json:"ingredients"`
	TotalResults int                `json:"total_results"`
}
