package spoonacular

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), &hits
}

func TestSearchRecipes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recipes/complexSearch", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("apiKey"))
		assert.Equal(t, "pasta", q.Get("query"))
		assert.Equal(t, "Italian,Greek", q.Get("cuisine"))
		assert.Equal(t, "peanut,tree nut", q.Get("intolerances"))
		assert.Equal(t, "30", q.Get("maxReadyTime"))
		assert.Equal(t, "5", q.Get("number"))
		assert.Empty(t, q.Get("diet"), "empty filters are omitted")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":[{"id":1,"title":"Carbonara","image":"c.jpg"},{"id":2,"title":"Plain"}],"totalResults":42}`)
	}, Config{})

	res, err := c.SearchRecipes(context.Background(), catalog.RecipeQuery{
		Query:        "pasta",
		Cuisines:     []string{"Italian", "Greek"},
		Intolerances: []model.Intolerance{model.IntolerancePeanut, model.IntoleranceTreeNut},
		MaxReadyTime: 30,
		Number:       5,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res.TotalResults)
	require.Len(t, res.Recipes, 2)
	assert.Equal(t, "Carbonara", res.Recipes[0].Name)
	assert.Equal(t, model.DefaultRecipeImage, res.Recipes[1].Image)
}

func TestGetRecipe_CleansSummary(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recipes/716429/information", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":716429,"title":"Pasta","image":"p.jpg",
			"summary":"A <b>hearty</b> dish. Serves <a href=\"x\">four</a>."}`)
	}, Config{})

	r, err := c.GetRecipe(context.Background(), 716429)
	require.NoError(t, err)
	assert.Equal(t, "A hearty dish.", r.Summary)
	assert.Equal(t, "A hearty dish. Serves four.", r.FullSummary)
}

func TestGetRecipe_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"failure"}`, http.StatusNotFound)
	}, Config{BreakerMinRequests: 1, BreakerFailureRatio: 0.1})

	for i := 0; i < 3; i++ {
		_, err := c.GetRecipe(context.Background(), 1)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	}
	assert.Equal(t, "closed", c.breaker.State().String(), "404s must not trip the breaker")
}

func TestServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}, Config{})

	_, err := c.RandomRecipes(context.Background(), 3)
	assert.ErrorIs(t, err, apperror.ErrExternalProvider)
	assert.Contains(t, err.Error(), "402")
}

func TestMalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"recipes":`)
	}, Config{})

	_, err := c.RandomRecipes(context.Background(), 3)
	assert.ErrorIs(t, err, apperror.ErrExternalProvider)
}

func TestCircuitBreakerOpens(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, Config{BreakerMinRequests: 2, BreakerFailureRatio: 0.5, BreakerTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.RandomRecipes(ctx, 1)
		require.ErrorIs(t, err, apperror.ErrExternalProvider)
	}
	require.Equal(t, int32(2), atomic.LoadInt32(hits))

	_, err := c.RandomRecipes(ctx, 1)
	assert.ErrorIs(t, err, apperror.ErrExternalProvider)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "open breaker must not reach the server")
}

func TestTimeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := c.SimilarRecipes(context.Background(), 1, 2)
	assert.ErrorIs(t, err, apperror.ErrExternalProvider)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestSimilarRecipes_ImageFromType(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("number"))
		_, _ = io.WriteString(w, `[{"id":715,"title":"Twin","imageType":"jpg"}]`)
	}, Config{})

	got, err := c.SimilarRecipes(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://spoonacular.com/recipeImages/715-556x370.jpg", got[0].Image)
}

func TestSimilarRecipes_NotFoundIsProviderFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, Config{})

	_, err := c.SimilarRecipes(context.Background(), 43, 2)
	assert.ErrorIs(t, err, apperror.ErrExternalProvider)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
}

func TestRecipesByIngredients(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recipes/findByIngredients", r.URL.Path)
		assert.Equal(t, "apples,flour", r.URL.Query().Get("ingredients"))
		_, _ = io.WriteString(w, `[{"id":9,"title":"Apple Pie","image":"pie.jpg"}]`)
	}, Config{})

	got, err := c.RecipesByIngredients(context.Background(), []string{"apples", "flour"}, 4)
	require.NoError(t, err)
	assert.Equal(t, "Apple Pie", got[0].Name)
}

func TestIngredients_ImagePrefix(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/food/ingredients/search":
			_, _ = io.WriteString(w, `{"results":[{"id":9266,"name":"pineapple","image":"pineapple.jpg"}],"totalResults":1}`)
		case "/food/ingredients/9266/information":
			_, _ = io.WriteString(w, `{"id":9266,"name":"pineapple","image":"pineapple.jpg"}`)
		default:
			http.NotFound(w, r)
		}
	}, Config{})
	ctx := context.Background()

	res, err := c.SearchIngredients(ctx, catalog.IngredientQuery{Query: "pine", Number: 1})
	require.NoError(t, err)
	require.Len(t, res.Ingredients, 1)
	assert.Equal(t, IngredientImagePrefix+"pineapple.jpg", res.Ingredients[0].Image)

	ing, err := c.GetIngredient(ctx, 9266)
	require.NoError(t, err)
	assert.Equal(t, IngredientImagePrefix+"pineapple.jpg", ing.Image)

	_, err = c.GetIngredient(ctx, 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSummaryHelpers(t *testing.T) {
	tests := []struct {
		in        string
		wantClean string
		wantFirst string
	}{
		{"<p>Plain.</p>", "Plain.", "Plain."},
		{"One. Two. Three.", "One. Two. Three.", "One."},
		{"No period here", "No period here", "No period here."},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			clean := CleanSummary(tt.in)
			assert.Equal(t, tt.wantClean, clean)
			assert.Equal(t, tt.wantFirst, FirstSentence(clean))
		})
	}
}
