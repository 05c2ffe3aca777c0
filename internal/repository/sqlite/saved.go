package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
)

// Saved items are association rows between a user and a catalog record.
// The AUTOINCREMENT id orders them by when they were saved.

// ===== SAVED RECIPES =====

// saveRecipe is the body shared by AddRecipe and AddRecipes. The catalog row
// (if missing) and the association are written by the same transaction, so a
// failed save leaves no orphan catalog row behind.
func saveRecipe(ctx context.Context, tx *sql.Tx, userID string, info model.RecipeInfo) error {
	if info.ID <= 0 {
		return apperror.InvalidArgument("id", "expected id")
	}
	if err := requireUser(ctx, tx, userID); err != nil {
		return err
	}

	saved, err := exists(ctx, tx,
		`SELECT 1 FROM saved_recipes WHERE user_id = ? AND recipe_id = ?`, userID, info.ID)
	if err != nil {
		return fmt.Errorf("sqlite: checking saved recipe: %w", err)
	}
	if saved {
		return apperror.Duplicate("saved recipe", idString(info.ID))
	}

	cached, err := exists(ctx, tx, `SELECT 1 FROM recipes WHERE id = ?`, info.ID)
	if err != nil {
		return fmt.Errorf("sqlite: checking recipe %d: %w", info.ID, err)
	}
	if !cached {
		if err := insertRecipe(ctx, tx, info); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO saved_recipes (user_id, recipe_id) VALUES (?, ?)`, userID, info.ID,
	); err != nil {
		return fmt.Errorf("sqlite: saving recipe %d for %s: %w", info.ID, userID, err)
	}
	return nil
}

// AddRecipe saves a recipe for the user. Saving the same recipe twice is a
// Duplicate error.
func (db *DB) AddRecipe(ctx context.Context, userID string, info model.RecipeInfo) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return saveRecipe(ctx, tx, userID, info)
	})
}

func (db *DB) HasRecipe(ctx context.Context, userID string, recipeID int64) (bool, error) {
	ok, err := exists(ctx, db.conn,
		`SELECT 1 FROM saved_recipes WHERE user_id = ? AND recipe_id = ?`, userID, recipeID)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking saved recipe: %w", err)
	}
	return ok, nil
}

// DeleteRecipe reports whether a row was removed. Removing a recipe that was
// never saved is not an error.
func (db *DB) DeleteRecipe(ctx context.Context, userID string, recipeID int64) (bool, error) {
	var removed bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM saved_recipes WHERE user_id = ? AND recipe_id = ?`, userID, recipeID)
		if err != nil {
			return fmt.Errorf("sqlite: deleting saved recipe: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

// GetRecipes pages through the user's saved recipes, oldest first, and
// returns the total independent of the page.
func (db *DB) GetRecipes(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Recipe, int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, 0, apperror.InvalidArgument("offset", "expected offset and limit >= 0")
	}

	var recipes []model.Recipe
	var total int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		total, err = count(ctx, tx, `SELECT COUNT(*) FROM saved_recipes WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("sqlite: counting saved recipes: %w", err)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT r.id, r.name, r.image, r.summary, r.full_summary
			 FROM saved_recipes s JOIN recipes r ON r.id = s.recipe_id
			 WHERE s.user_id = ?
			 ORDER BY s.id LIMIT ? OFFSET ?`,
			userID, sqlLimit(opts.Limit), opts.Offset)
		if err != nil {
			return fmt.Errorf("sqlite: listing saved recipes: %w", err)
		}
		recipes, err = scanRecipes(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning saved recipes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

// AddRecipes saves infos[i] for userIDs[i]. Every pair is saved or none is.
func (db *DB) AddRecipes(ctx context.Context, userIDs []string, infos []model.RecipeInfo) error {
	if len(userIDs) != len(infos) {
		return apperror.InvalidArgument("recipes", "expected one recipe per user")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range userIDs {
			if err := saveRecipe(ctx, tx, userIDs[i], infos[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRecipes removes recipeIDs[i] from userIDs[i]. Pairs that were not
// saved are skipped; an unknown user fails the whole call.
func (db *DB) DeleteRecipes(ctx context.Context, userIDs []string, recipeIDs []int64) error {
	if len(userIDs) != len(recipeIDs) {
		return apperror.InvalidArgument("recipes", "expected one recipe per user")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range userIDs {
			if err := requireUser(ctx, tx, userIDs[i]); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM saved_recipes WHERE user_id = ? AND recipe_id = ?`,
				userIDs[i], recipeIDs[i]); err != nil {
				return fmt.Errorf("sqlite: deleting saved recipe: %w", err)
			}
		}
		return nil
	})
}

// RecentRecipes returns the user's last window saves, newest first.
func (db *DB) RecentRecipes(ctx context.Context, userID string, window int) ([]model.Recipe, error) {
	if window < 0 {
		return nil, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	var recipes []model.Recipe
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT r.id, r.name, r.image, r.summary, r.full_summary
			 FROM saved_recipes s JOIN recipes r ON r.id = s.recipe_id
			 WHERE s.user_id = ?
			 ORDER BY s.id DESC LIMIT ?`,
			userID, window)
		if err != nil {
			return fmt.Errorf("sqlite: listing recent recipes: %w", err)
		}
		recipes, err = scanRecipes(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning recent recipes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// ===== SAVED INGREDIENTS =====

func saveIngredient(ctx context.Context, tx *sql.Tx, userID string, info model.IngredientInfo, liked bool) error {
	if info.ID <= 0 {
		return apperror.InvalidArgument("id", "expected id")
	}
	if err := requireUser(ctx, tx, userID); err != nil {
		return err
	}

	saved, err := exists(ctx, tx,
		`SELECT 1 FROM saved_ingredients WHERE user_id = ? AND ingredient_id = ?`, userID, info.ID)
	if err != nil {
		return fmt.Errorf("sqlite: checking saved ingredient: %w", err)
	}
	if saved {
		return apperror.Duplicate("saved ingredient", idString(info.ID))
	}

	cached, err := exists(ctx, tx, `SELECT 1 FROM ingredients WHERE id = ?`, info.ID)
	if err != nil {
		return fmt.Errorf("sqlite: checking ingredient %d: %w", info.ID, err)
	}
	if !cached {
		if err := insertIngredient(ctx, tx, info); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO saved_ingredients (user_id, ingredient_id, liked) VALUES (?, ?, ?)`,
		userID, info.ID, liked,
	); err != nil {
		return fmt.Errorf("sqlite: saving ingredient %d for %s: %w", info.ID, userID, err)
	}
	return nil
}

func (db *DB) AddIngredient(ctx context.Context, userID string, info model.IngredientInfo, liked bool) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return saveIngredient(ctx, tx, userID, info, liked)
	})
}

func (db *DB) HasIngredient(ctx context.Context, userID string, ingredientID int64) (bool, error) {
	ok, err := exists(ctx, db.conn,
		`SELECT 1 FROM saved_ingredients WHERE user_id = ? AND ingredient_id = ?`, userID, ingredientID)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking saved ingredient: %w", err)
	}
	return ok, nil
}

func (db *DB) DeleteIngredient(ctx context.Context, userID string, ingredientID int64) (bool, error) {
	var removed bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM saved_ingredients WHERE user_id = ? AND ingredient_id = ?`, userID, ingredientID)
		if err != nil {
			return fmt.Errorf("sqlite: deleting saved ingredient: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

func scanSavedIngredients(rows *sql.Rows) ([]model.SavedIngredient, error) {
	defer rows.Close()
	out := []model.SavedIngredient{}
	for rows.Next() {
		var s model.SavedIngredient
		if err := rows.Scan(&s.ID, &s.Name, &s.Image, &s.Liked); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) GetIngredients(ctx context.Context, userID string, opts repository.ListOptions) ([]model.SavedIngredient, int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, 0, apperror.InvalidArgument("offset", "expected offset and limit >= 0")
	}

	var out []model.SavedIngredient
	var total int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		total, err = count(ctx, tx, `SELECT COUNT(*) FROM saved_ingredients WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("sqlite: counting saved ingredients: %w", err)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT i.id, i.name, i.image, s.liked
			 FROM saved_ingredients s JOIN ingredients i ON i.id = s.ingredient_id
			 WHERE s.user_id = ?
			 ORDER BY s.id LIMIT ? OFFSET ?`,
			userID, sqlLimit(opts.Limit), opts.Offset)
		if err != nil {
			return fmt.Errorf("sqlite: listing saved ingredients: %w", err)
		}
		out, err = scanSavedIngredients(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning saved ingredients: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// AddIngredients saves infos[i] for userIDs[i], all or nothing. liked may be
// nil, meaning every ingredient is liked.
func (db *DB) AddIngredients(ctx context.Context, userIDs []string, infos []model.IngredientInfo, liked []bool) error {
	if len(userIDs) != len(infos) || (liked != nil && len(liked) != len(infos)) {
		return apperror.InvalidArgument("ingredients", "expected one ingredient per user")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range userIDs {
			l := true
			if liked != nil {
				l = liked[i]
			}
			if err := saveIngredient(ctx, tx, userIDs[i], infos[i], l); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) DeleteIngredients(ctx context.Context, userIDs []string, ingredientIDs []int64) error {
	if len(userIDs) != len(ingredientIDs) {
		return apperror.InvalidArgument("ingredients", "expected one ingredient per user")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range userIDs {
			if err := requireUser(ctx, tx, userIDs[i]); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM saved_ingredients WHERE user_id = ? AND ingredient_id = ?`,
				userIDs[i], ingredientIDs[i]); err != nil {
				return fmt.Errorf("sqlite: deleting saved ingredient: %w", err)
			}
		}
		return nil
	})
}

func (db *DB) RecentIngredients(ctx context.Context, userID string, window int) ([]model.SavedIngredient, error) {
	if window < 0 {
		return nil, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	var out []model.SavedIngredient
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT i.id, i.name, i.image, s.liked
			 FROM saved_ingredients s JOIN ingredients i ON i.id = s.ingredient_id
			 WHERE s.user_id = ?
			 ORDER BY s.id DESC LIMIT ?`,
			userID, window)
		if err != nil {
			return fmt.Errorf("sqlite: listing recent ingredients: %w", err)
		}
		out, err = scanSavedIngredients(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning recent ingredients: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
