package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/handler"
	"github.com/sakif/piecemeal/internal/model"
)

// searchProvider records the last recipe search and returns one result.
// Every other call fails.
type searchProvider struct {
	last catalog.RecipeQuery
}

var errUnsupported = errors.New("unsupported")

func (p *searchProvider) SearchRecipes(_ context.Context, q catalog.RecipeQuery) (catalog.RecipeSearchResult, error) {
	p.last = q
	return catalog.RecipeSearchResult{
		Recipes:      []model.Recipe{{ID: 501, Name: "gluten-free bread"}},
		TotalResults: 40,
	}, nil
}

func (p *searchProvider) GetRecipe(context.Context, int64) (*model.Recipe, error) {
	return nil, errUnsupported
}

func (p *searchProvider) SimilarRecipes(context.Context, int64, int) ([]model.Recipe, error) {
	return nil, errUnsupported
}

func (p *searchProvider) RandomRecipes(context.Context, int) ([]model.Recipe, error) {
	return nil, errUnsupported
}

func (p *searchProvider) RecipesByIngredients(context.Context, []string, int) ([]model.Recipe, error) {
	return nil, errUnsupported
}

func (p *searchProvider) SearchIngredients(context.Context, catalog.IngredientQuery) (catalog.IngredientSearchResult, error) {
	return catalog.IngredientSearchResult{}, errUnsupported
}

func (p *searchProvider) GetIngredient(context.Context, int64) (*model.Ingredient, error) {
	return nil, errUnsupported
}

func TestCatalogHandler_Recipes(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewCatalogHandler(env.cache, env.intolerances, env.logger)
	id := env.register(t, "cook")
	require.NoError(t, env.saved.AddRecipe(context.Background(), id, model.RecipeInfo{ID: 7, Name: "ramen"}))

	tests := []struct {
		name       string
		handle     func(http.ResponseWriter, *http.Request)
		target     string
		wantStatus int
		wantCode   int
	}{
		{"get cached", h.HandleGetRecipe, "/api/recipe-info/get?id=7", http.StatusOK, 0},
		{"get uncached without provider", h.HandleGetRecipe, "/api/recipe-info/get?id=8", http.StatusBadGateway, 0},
		{"get without id", h.HandleGetRecipe, "/api/recipe-info/get", http.StatusBadRequest, 2},
		{"get with bad id", h.HandleGetRecipe, "/api/recipe-info/get?id=seven", http.StatusBadRequest, 2},
		{"similar to unknown", h.HandleSimilarRecipes, "/api/recipe-info/get-similar?id=8", http.StatusNotFound, 0},
		{"random from cache", h.HandleRandomRecipes, "/api/recipe-info/get-random?source=cache", http.StatusOK, 0},
		{"random bad source", h.HandleRandomRecipes, "/api/recipe-info/get-random?source=moon", http.StatusBadRequest, 2},
		{"search bad intolerance", h.HandleSearchRecipes, "/api/recipe-info/search?query=x&intolerances=40", http.StatusBadRequest, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := serve(t, tt.handle, request(http.MethodGet, tt.target, nil, ""))
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCode, body.code())
		})
	}

	_, body := serve(t, h.HandleRandomRecipes, request(http.MethodGet, "/api/recipe-info/get-random?limit=5", nil, ""))
	assert.Len(t, body.list("recipes"), 1)
}

func TestCatalogHandler_SearchAddsDeclaredIntolerances(t *testing.T) {
	env := newTestEnv(t)
	p := &searchProvider{}
	h := handler.NewCatalogHandler(catalog.NewCache(env.db, p, env.logger), env.intolerances, env.logger)
	id := env.register(t, "cook")
	_, err := env.intolerances.Add(context.Background(), id, model.IntoleranceGluten)
	require.NoError(t, err)

	rr, body := serve(t, h.HandleSearchRecipes,
		request(http.MethodGet, "/api/recipe-info/search?query=bread&intolerances=8,2&max_prep_time=30", nil, id))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 40, body.number("total_results"))
	assert.Len(t, body.list("recipes"), 1)
	assert.Equal(t, "bread", p.last.Query)
	assert.Equal(t, 30, p.last.MaxReadyTime)
	assert.ElementsMatch(t, []model.Intolerance{model.IntoleranceGluten, model.IntoleranceSoy}, p.last.Intolerances)

	// anonymous searches only use the parameter
	serve(t, h.HandleSearchRecipes, request(http.MethodGet, "/api/recipe-info/search?query=bread&intolerances=8", nil, ""))
	assert.Equal(t, []model.Intolerance{model.IntoleranceSoy}, p.last.Intolerances)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		db         handler.Pinger
		wantStatus int
	}{
		{"store up", env.db, http.StatusOK},
		{"store down", pinger{err: errors.New("disk I/O error")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.db, env.logger)
			rr, body := serve(t, h.HandleHealth, request(http.MethodGet, "/healthz", nil, ""))
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, body.ok())
		})
	}
}
