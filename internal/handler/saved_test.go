package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/piecemeal/internal/handler"
)

func TestSavedHandler_Recipes(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewSavedHandler(env.saved, env.engine, env.logger)
	id := env.register(t, "cook")

	add := func(recipeID int64) envelope {
		_, body := serve(t, h.HandleAddRecipe, request(http.MethodPost, "/api/user-recipes/add",
			map[string]any{"recipe": map[string]any{"id": recipeID, "name": "soup"}}, id))
		return body
	}

	t.Run("add", func(t *testing.T) {
		for _, rid := range []int64{11, 12, 13} {
			assert.True(t, add(rid).ok())
		}
	})

	t.Run("add twice", func(t *testing.T) {
		body := add(11)
		assert.False(t, body.ok())
		assert.Equal(t, 3, body.code())
	})

	t.Run("add without a name", func(t *testing.T) {
		_, body := serve(t, h.HandleAddRecipe, request(http.MethodPost, "/api/user-recipes/add",
			map[string]any{"recipe": map[string]any{"id": 99}}, id))
		assert.Equal(t, 2, body.code())
	})

	t.Run("get pages", func(t *testing.T) {
		_, body := serve(t, h.HandleGetRecipes, request(http.MethodGet, "/api/user-recipes/get?offset=1&limit=1", nil, id))
		assert.Equal(t, 3, body.number("total_recipes"))
		assert.Len(t, body.list("recipes"), 1)
	})

	t.Run("get top", func(t *testing.T) {
		_, body := serve(t, h.HandleTopRecipes, request(http.MethodGet, "/api/user-recipes/get-top?limit=2", nil, id))
		assert.Len(t, body.list("recipes"), 2)
	})

	t.Run("friend top without friends", func(t *testing.T) {
		_, body := serve(t, h.HandleFriendTopRecipes, request(http.MethodGet, "/api/user-recipes/get-friend-top", nil, id))
		assert.True(t, body.ok())
		assert.Empty(t, body.list("friends"))
	})

	t.Run("recommended from the cache", func(t *testing.T) {
		rr, body := serve(t, h.HandleRecommendRecipes,
			request(http.MethodGet, "/api/user-recipes/get-recommended?sources=random&limit=2", nil, id))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, body.list("recipes"), 2)
	})

	t.Run("recommended with bad distributions", func(t *testing.T) {
		_, body := serve(t, h.HandleRecommendRecipes,
			request(http.MethodGet, "/api/user-recipes/get-recommended?sources=random&distributions=half", nil, id))
		assert.Equal(t, 2, body.code())
	})

	t.Run("delete", func(t *testing.T) {
		_, body := serve(t, h.HandleDeleteRecipe, request(http.MethodPost, "/api/user-recipes/delete", map[string]any{"id": 12}, id))
		assert.True(t, body.ok())

		_, body = serve(t, h.HandleDeleteRecipe, request(http.MethodPost, "/api/user-recipes/delete", map[string]any{"id": 12}, id))
		assert.Equal(t, 3, body.code())
	})

	t.Run("no current user", func(t *testing.T) {
		rr, body := serve(t, h.HandleGetRecipes, request(http.MethodGet, "/api/user-recipes/get", nil, ""))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, 1, body.code())
	})
}

func TestSavedHandler_Ingredients(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewSavedHandler(env.saved, env.engine, env.logger)
	id := env.register(t, "cook")

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"liked by default", map[string]any{"ingredient": map[string]any{"id": 1, "name": "basil"}}, 0},
		{"disliked", map[string]any{"ingredient": map[string]any{"id": 2, "name": "okra"}, "liked": false}, 0},
		{"duplicate", map[string]any{"ingredient": map[string]any{"id": 1, "name": "basil"}}, 3},
		{"corrupt body", `{"ingredient": 5`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := serve(t, h.HandleAddIngredient, request(http.MethodPost, "/api/user-ingredients/add", tt.body, id))
			assert.Equal(t, tt.wantCode == 0, body.ok())
			assert.Equal(t, tt.wantCode, body.code())
		})
	}

	_, body := serve(t, h.HandleGetIngredients, request(http.MethodGet, "/api/user-ingredients/get", nil, id))
	assert.Equal(t, 2, body.number("total_ingredients"))
	liked := map[float64]bool{}
	for _, item := range body.list("ingredients") {
		m := item.(map[string]any)
		liked[m["id"].(float64)] = m["liked"].(bool)
	}
	assert.Equal(t, map[float64]bool{1: true, 2: false}, liked)

	_, body = serve(t, h.HandleRecommendIngredients,
		request(http.MethodGet, "/api/user-ingredients/get-recommended?sources=random&limit=5", nil, id))
	assert.True(t, body.ok())
	assert.Len(t, body.list("ingredients"), 2)

	_, body = serve(t, h.HandleDeleteIngredient, request(http.MethodPost, "/api/user-ingredients/delete", map[string]any{"id": 3}, id))
	assert.Equal(t, 3, body.code())
}

func TestIntoleranceHandler(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewIntoleranceHandler(env.intolerances, env.logger)
	id := env.register(t, "cook")

	tests := []struct {
		name     string
		handle   func(http.ResponseWriter, *http.Request)
		body     any
		wantCode int
	}{
		{"add gluten", h.HandleAdd, map[string]int{"id": 2}, 0},
		{"add soy", h.HandleAdd, map[string]int{"id": 8}, 0},
		{"add gluten again", h.HandleAdd, map[string]int{"id": 2}, 3},
		{"add unknown", h.HandleAdd, map[string]int{"id": 12}, 2},
		{"add without id", h.HandleAdd, map[string]int{}, 2},
		{"delete soy", h.HandleDelete, map[string]int{"id": 8}, 0},
		{"delete soy again", h.HandleDelete, map[string]int{"id": 8}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := serve(t, tt.handle, request(http.MethodPost, "/", tt.body, id))
			assert.Equal(t, tt.wantCode, body.code())
		})
	}

	_, body := serve(t, h.HandleGet, request(http.MethodGet, "/api/user-intolerances/get", nil, id))
	assert.Equal(t, 1, body.number("total_intolerances"))
	assert.Equal(t, []any{map[string]any{"id": float64(2), "name": "Gluten"}}, body.list("intolerances"))
}
