package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
)

func saveTestRecipes(t *testing.T, db *DB, userID string, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if err := db.AddRecipe(context.Background(), userID, model.RecipeInfo{ID: id, Name: "recipe"}); err != nil {
			t.Fatalf("AddRecipe(%d) error = %v", id, err)
		}
	}
}

// =========================================================================
// SAVED RECIPES
// =========================================================================

func TestAddRecipe_CreatesCatalogRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")

	if err := db.AddRecipe(ctx, "a", model.RecipeInfo{ID: 42, Name: "Curry"}); err != nil {
		t.Fatalf("AddRecipe() error = %v", err)
	}
	if ok, _ := db.RecipeInfoExists(ctx, 42); !ok {
		t.Error("AddRecipe() did not cache the recipe")
	}
	if ok, _ := db.HasRecipe(ctx, "a", 42); !ok {
		t.Error("HasRecipe() = false after AddRecipe()")
	}
}

func TestAddRecipe_Errors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")
	saveTestRecipes(t, db, "a", 1)

	tests := []struct {
		name    string
		userID  string
		info    model.RecipeInfo
		wantErr error
	}{
		{"duplicate save", "a", model.RecipeInfo{ID: 1, Name: "again"}, apperror.ErrConflict},
		{"missing user", "ghost", model.RecipeInfo{ID: 2, Name: "x"}, apperror.ErrNotFound},
		{"invalid id", "a", model.RecipeInfo{ID: -1, Name: "x"}, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.AddRecipe(ctx, tt.userID, tt.info)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddRecipe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// a save for a missing user must not leave the catalog row behind
	if ok, _ := db.RecipeInfoExists(ctx, 2); ok {
		t.Error("failed save left an orphan catalog row")
	}
}

func TestGetRecipes_Pagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")
	saveTestRecipes(t, db, "a", 10, 20, 30, 40, 50)

	page, total, err := db.GetRecipes(ctx, "a", repository.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("GetRecipes() error = %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Errorf("GetRecipes(limit 2) = %d items, total %d; want 2, 5", len(page), total)
	}
	if page[0].ID != 10 || page[1].ID != 20 {
		t.Errorf("first page ids = %d %d, want 10 20", page[0].ID, page[1].ID)
	}

	page, total, err = db.GetRecipes(ctx, "a", repository.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("GetRecipes() error = %v", err)
	}
	if total != 5 || len(page) != 1 || page[0].ID != 50 {
		t.Errorf("GetRecipes(offset 4) = %+v total %d, want [50] total 5", page, total)
	}

	all, _, err := db.GetRecipes(ctx, "a", repository.ListOptions{})
	if err != nil {
		t.Fatalf("GetRecipes() error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("GetRecipes(no limit) = %d items, want 5", len(all))
	}

	if _, _, err := db.GetRecipes(ctx, "a", repository.ListOptions{Offset: -1}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("GetRecipes(offset -1) error = %v, want ErrValidation", err)
	}
	if _, _, err := db.GetRecipes(ctx, "ghost", repository.ListOptions{}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetRecipes(missing user) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRecipe(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")
	saveTestRecipes(t, db, "a", 1)

	removed, err := db.DeleteRecipe(ctx, "a", 1)
	if err != nil || !removed {
		t.Fatalf("DeleteRecipe() = %v, %v; want true, nil", removed, err)
	}
	removed, err = db.DeleteRecipe(ctx, "a", 1)
	if err != nil || removed {
		t.Errorf("second DeleteRecipe() = %v, %v; want false, nil", removed, err)
	}
	if _, err := db.DeleteRecipe(ctx, "ghost", 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteRecipe(missing user) error = %v, want ErrNotFound", err)
	}
}

func TestRecentRecipes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")
	saveTestRecipes(t, db, "a", 1, 2, 3, 4)

	recent, err := db.RecentRecipes(ctx, "a", 2)
	if err != nil {
		t.Fatalf("RecentRecipes() error = %v", err)
	}
	if len(recent) != 2 || recent[0].ID != 4 || recent[1].ID != 3 {
		t.Errorf("RecentRecipes(2) = %+v, want ids [4 3]", recent)
	}

	recent, err = db.RecentRecipes(ctx, "a", 0)
	if err != nil {
		t.Fatalf("RecentRecipes(0) error = %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("RecentRecipes(0) = %d items, want 0", len(recent))
	}
}

func TestAddRecipes_AllOrNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")
	createTestUser(t, db, "b")
	saveTestRecipes(t, db, "b", 2)

	err := db.AddRecipes(ctx,
		[]string{"a", "b"},
		[]model.RecipeInfo{{ID: 1, Name: "one"}, {ID: 2, Name: "two"}})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("AddRecipes() error = %v, want ErrConflict", err)
	}
	if ok, _ := db.HasRecipe(ctx, "a", 1); ok {
		t.Error("AddRecipes() kept a save from a failed batch")
	}

	if err := db.AddRecipes(ctx, []string{"a"}, nil); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("AddRecipes(mismatched) error = %v, want ErrValidation", err)
	}

	if err := db.DeleteRecipes(ctx, []string{"b", "a"}, []int64{2, 99}); err != nil {
		t.Fatalf("DeleteRecipes() error = %v", err)
	}
	if ok, _ := db.HasRecipe(ctx, "b", 2); ok {
		t.Error("DeleteRecipes() left recipe 2 saved for b")
	}
}

// =========================================================================
// SAVED INGREDIENTS
// =========================================================================

func TestSavedIngredients(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")

	if err := db.AddIngredient(ctx, "a", model.IngredientInfo{ID: 1, Name: "basil"}, true); err != nil {
		t.Fatalf("AddIngredient() error = %v", err)
	}
	if err := db.AddIngredient(ctx, "a", model.IngredientInfo{ID: 2, Name: "cilantro"}, false); err != nil {
		t.Fatalf("AddIngredient() error = %v", err)
	}
	if err := db.AddIngredient(ctx, "a", model.IngredientInfo{ID: 1, Name: "basil"}, true); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("AddIngredient(duplicate) error = %v, want ErrConflict", err)
	}

	items, total, err := db.GetIngredients(ctx, "a", repository.ListOptions{})
	if err != nil {
		t.Fatalf("GetIngredients() error = %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("GetIngredients() = %d items, total %d; want 2, 2", len(items), total)
	}
	if !items[0].Liked || items[1].Liked {
		t.Errorf("liked flags = %v %v, want true false", items[0].Liked, items[1].Liked)
	}

	recent, err := db.RecentIngredients(ctx, "a", 1)
	if err != nil {
		t.Fatalf("RecentIngredients() error = %v", err)
	}
	if len(recent) != 1 || recent[0].Name != "cilantro" {
		t.Errorf("RecentIngredients(1) = %+v, want cilantro", recent)
	}

	removed, err := db.DeleteIngredient(ctx, "a", 2)
	if err != nil || !removed {
		t.Errorf("DeleteIngredient() = %v, %v; want true, nil", removed, err)
	}
	if ok, _ := db.IngredientInfoExists(ctx, 2); !ok {
		t.Error("unsaving removed the shared catalog ingredient")
	}
}

func TestAddIngredients_DefaultsToLiked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a")
	createTestUser(t, db, "b")

	err := db.AddIngredients(ctx,
		[]string{"a", "b"},
		[]model.IngredientInfo{{ID: 1, Name: "salt"}, {ID: 1, Name: "salt"}},
		nil)
	if err != nil {
		t.Fatalf("AddIngredients() error = %v", err)
	}
	items, _, _ := db.GetIngredients(ctx, "b", repository.ListOptions{})
	if len(items) != 1 || !items[0].Liked {
		t.Errorf("GetIngredients(b) = %+v, want one liked item", items)
	}

	if err := db.DeleteIngredients(ctx, []string{"a", "ghost"}, []int64{1, 1}); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("DeleteIngredients() error = %v, want ErrNotFound", err)
	}
	if ok, _ := db.HasIngredient(ctx, "a", 1); !ok {
		t.Error("DeleteIngredients() removed a row from a failed batch")
	}
}
