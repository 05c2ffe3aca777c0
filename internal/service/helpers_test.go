package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository/sqlite"
)

// Service tests run against the real store on an in-memory database; only
// the recipe provider is faked.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// addUser inserts a user directly through the store.
func addUser(t *testing.T, db *sqlite.DB, id string) *model.User {
	t.Helper()
	u := &model.User{
		ID:                id,
		Username:          "user-" + id,
		Email:             id + "@example.com",
		GivenName:         "Given" + id,
		FamilyName:        "Family" + id,
		ProfileImage:      model.DefaultProfileImage,
		CreationDate:      time.Now().UTC().Truncate(time.Second),
		ProfileVisibility: model.VisibilityAll(),
	}
	require.NoError(t, db.CreateUser(context.Background(), u, ""))
	return u
}

func saveRecipes(t *testing.T, db *sqlite.DB, userID string, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.AddRecipe(context.Background(), userID, model.RecipeInfo{ID: id, Name: "recipe"}))
	}
}

func saveIngredient(t *testing.T, db *sqlite.DB, userID string, id int64, name string, liked bool) {
	t.Helper()
	require.NoError(t, db.AddIngredient(context.Background(), userID, model.IngredientInfo{ID: id, Name: name}, liked))
}

func newTestUserService(db *sqlite.DB) *UserService {
	return NewUserService(db, auth.NewPasswordServiceWithCost(bcrypt.MinCost), NewRand(1), testLogger())
}

// fakeProvider answers similar and by-ingredient lookups with fresh ids
// derived from the input, so results are predictable. err fails every call.
type fakeProvider struct {
	mu          sync.Mutex
	err         error
	similarErr  error
	block       bool
	calls       map[string]int
	ingredients []model.Ingredient
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: map[string]int{}}
}

func (f *fakeProvider) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.err
}

func (f *fakeProvider) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProvider) SearchRecipes(context.Context, catalog.RecipeQuery) (catalog.RecipeSearchResult, error) {
	return catalog.RecipeSearchResult{}, f.record("search")
}

func (f *fakeProvider) GetRecipe(_ context.Context, id int64) (*model.Recipe, error) {
	if err := f.record("get"); err != nil {
		return nil, err
	}
	return nil, apperror.NotFound("recipe", "x")
}

func (f *fakeProvider) SimilarRecipes(ctx context.Context, id int64, n int) ([]model.Recipe, error) {
	if err := f.record("similar"); err != nil {
		return nil, err
	}
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make([]model.Recipe, n)
	for i := range out {
		out[i] = model.Recipe{ID: id*1000 + int64(i), Name: "similar"}
	}
	return out, nil
}

func (f *fakeProvider) RandomRecipes(context.Context, int) ([]model.Recipe, error) {
	return nil, f.record("random")
}

func (f *fakeProvider) RecipesByIngredients(_ context.Context, names []string, n int) ([]model.Recipe, error) {
	if err := f.record("byIngredients"); err != nil {
		return nil, err
	}
	out := make([]model.Recipe, n)
	for i := range out {
		out[i] = model.Recipe{ID: int64(900000 + len(names[0])*100 + i), Name: names[0] + " dish"}
	}
	return out, nil
}

func (f *fakeProvider) SearchIngredients(_ context.Context, q catalog.IngredientQuery) (catalog.IngredientSearchResult, error) {
	if err := f.record("searchIngredients"); err != nil {
		return catalog.IngredientSearchResult{}, err
	}
	return catalog.IngredientSearchResult{Ingredients: f.ingredients, TotalResults: len(f.ingredients)}, nil
}

func (f *fakeProvider) GetIngredient(context.Context, int64) (*model.Ingredient, error) {
	if err := f.record("getIngredient"); err != nil {
		return nil, err
	}
	return nil, apperror.NotFound("ingredient", "x")
}
