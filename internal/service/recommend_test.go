package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository/sqlite"
)

func newTestEngine(db *sqlite.DB, p *fakeProvider, tweak func(*EngineOptions)) *Engine {
	opts := DefaultEngineOptions()
	opts.Rand = NewRand(2)
	if tweak != nil {
		tweak(&opts)
	}
	saved := NewSavedItemService(db, NewRand(1), testLogger())
	return NewEngine(saved, catalog.NewCache(db, p, testLogger()), opts, testLogger())
}

func TestRecommendRecipes_Validation(t *testing.T) {
	db := newTestStore(t)
	e := newTestEngine(db, newFakeProvider(), nil)
	ctx := context.Background()
	addUser(t, db, "u1")

	tests := []struct {
		name    string
		user    string
		req     RecommendRequest
		wantErr error
	}{
		{"unknown source", "u1", RecommendRequest{Sources: []string{"astrology"}, Limit: 5}, apperror.ErrValidation},
		{"negative limit", "u1", RecommendRequest{Limit: -1}, apperror.ErrValidation},
		{"distribution mismatch", "u1", RecommendRequest{Sources: []string{"random", "friends"}, Distributions: []int{100}, Limit: 5}, apperror.ErrValidation},
		{"distribution over 100", "u1", RecommendRequest{Sources: []string{"random"}, Distributions: []int{101}, Limit: 5}, apperror.ErrValidation},
		{"ingredient-only source", "u1", RecommendRequest{Sources: []string{"nope"}, Limit: 5}, apperror.ErrValidation},
		{"missing user", "ghost", RecommendRequest{Limit: 5}, apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RecommendRecipes(ctx, tt.user, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecommendRecipes_NoFriends(t *testing.T) {
	db := newTestStore(t)
	e := newTestEngine(db, newFakeProvider(), nil)
	addUser(t, db, "u1")

	got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{Sources: []string{SourceFriends}, Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecommendRecipes_ZeroLimit(t *testing.T) {
	db := newTestStore(t)
	p := newFakeProvider()
	e := newTestEngine(db, p, nil)
	addUser(t, db, "u1")
	saveRecipes(t, db, "u1", 1)

	got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, p.count("similar"))
}

func TestRecommendRecipes_RecentlyLiked(t *testing.T) {
	db := newTestStore(t)
	p := newFakeProvider()
	e := newTestEngine(db, p, nil)
	addUser(t, db, "u1")
	saveRecipes(t, db, "u1", 1, 2, 3)

	got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{
		Sources: []string{SourceRecentlyLiked},
		Limit:   6,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1000, 1001, 2000, 2001, 3000, 3001}, recipeIDs(got))
	assert.Equal(t, 3, p.count("similar"))
}

func TestRecommendRecipes_Friends(t *testing.T) {
	db := newTestStore(t)
	e := newTestEngine(db, newFakeProvider(), nil)
	ctx := context.Background()
	addUser(t, db, "me")
	addUser(t, db, "f1")
	addUser(t, db, "f2")
	require.NoError(t, db.AddRelationship(ctx, "me", "f1"))
	require.NoError(t, db.AddRelationship(ctx, "me", "f2"))
	saveRecipes(t, db, "f1", 1, 2)
	saveRecipes(t, db, "f2", 3)

	got, err := e.RecommendRecipes(ctx, "me", RecommendRequest{Sources: []string{SourceFriends}, Limit: 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, recipeIDs(got))
}

func TestRecommendRecipes_Ingredients(t *testing.T) {
	db := newTestStore(t)
	p := newFakeProvider()
	e := newTestEngine(db, p, nil)
	addUser(t, db, "u1")
	saveIngredient(t, db, "u1", 1, "leek", true)
	saveIngredient(t, db, "u1", 2, "okra", false)

	got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{
		Sources: []string{SourceIngredients},
		Limit:   4,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{900400, 900401, 900402, 900403}, recipeIDs(got), "disliked okra is not a seed")
	assert.Equal(t, 1, p.count("byIngredients"))
}

func TestRecommendRecipes_ProviderFailureDegrades(t *testing.T) {
	db := newTestStore(t)
	p := newFakeProvider()
	p.err = errors.New("connection refused")
	e := newTestEngine(db, p, nil)
	addUser(t, db, "u1")
	saveRecipes(t, db, "u1", 1, 2, 3)

	got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{
		Sources: []string{SourceRandom, SourceRecentlyLiked},
		Limit:   4,
	})
	require.NoError(t, err)
	require.Len(t, got, 2, "only the random half survives")
	assert.Subset(t, []int64{1, 2, 3}, recipeIDs(got))
}

func TestRecommendRecipes_UnknownSeedDegrades(t *testing.T) {
	db := newTestStore(t)
	p := newFakeProvider()
	p.similarErr = apperror.NotFound("recipe", "43")
	e := newTestEngine(db, p, nil)
	addUser(t, db, "u1")
	saveRecipes(t, db, "u1", 42, 43)

	got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{
		Sources: []string{SourceRecentlyLiked, SourceRandom},
		Limit:   4,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{42, 43}, recipeIDs(got))
	assert.Positive(t, p.count("similar"))
}

func TestRecommendRecipes_SourceTimeout(t *testing.T) {
	db := newTestStore(t)
	p := newFakeProvider()
	p.block = true
	e := newTestEngine(db, p, func(o *EngineOptions) { o.SourceTimeout = 20 * time.Millisecond })
	addUser(t, db, "u1")
	saveRecipes(t, db, "u1", 1, 2)

	start := time.Now()
	got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{
		Sources: []string{SourceRecentlyLiked, SourceRandom},
		Limit:   4,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ElementsMatch(t, []int64{1, 2}, recipeIDs(got))
}

func TestRecommendRecipes_Dedupe(t *testing.T) {
	tests := []struct {
		name   string
		dedupe bool
		want   int
	}{
		{"on", true, 3},
		{"off", false, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestStore(t)
			e := newTestEngine(db, newFakeProvider(), func(o *EngineOptions) { o.Dedupe = tt.dedupe })
			addUser(t, db, "u1")
			saveRecipes(t, db, "u1", 1, 2, 3)

			got, err := e.RecommendRecipes(context.Background(), "u1", RecommendRequest{
				Sources: []string{SourceRecentlyLiked, SourceRecentlyLiked},
				Limit:   6,
			})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestRecommendRecipes_StoreFailureFails(t *testing.T) {
	db := newTestStore(t)
	e := newTestEngine(db, newFakeProvider(), nil)
	addUser(t, db, "u1")
	saveRecipes(t, db, "u1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RecommendRecipes(ctx, "u1", RecommendRequest{Sources: []string{SourceRandom}, Limit: 2})
	assert.Error(t, err)
}

func TestRecommendIngredients(t *testing.T) {
	db := newTestStore(t)
	p := newFakeProvider()
	p.ingredients = []model.Ingredient{
		{ID: 50, Name: "leek greens", Image: model.DefaultRecipeImage},
		{ID: 51, Name: "baby leeks", Image: model.DefaultRecipeImage},
	}
	e := newTestEngine(db, p, nil)
	ctx := context.Background()
	addUser(t, db, "u1")
	saveIngredient(t, db, "u1", 1, "leek", true)

	got, err := e.RecommendIngredients(ctx, "u1", RecommendRequest{
		Sources: []string{SourceRecentlyLiked},
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(50), got[0].ID)
	assert.Equal(t, int64(51), got[1].ID)

	_, err = e.RecommendIngredients(ctx, "u1", RecommendRequest{Sources: []string{SourceFriendsSimilar}, Limit: 2})
	assert.ErrorIs(t, err, apperror.ErrValidation, "friends_similar is recipe-only")

	random, err := e.RecommendIngredients(ctx, "u1", RecommendRequest{Sources: []string{SourceRandom}, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, random, 3, "the two search results were cached next to the saved one")
}
