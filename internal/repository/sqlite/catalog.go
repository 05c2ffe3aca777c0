package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
)

// The catalog tables hold provider records shared by every user. Rows are
// added lazily the first time a search result or a save references them.

func idString(id int64) string { return strconv.FormatInt(id, 10) }

// ===== RECIPES =====

func insertRecipe(ctx context.Context, q querier, info model.RecipeInfo) error {
	r := info.ToRecipe()
	_, err := q.ExecContext(ctx,
		`INSERT INTO recipes (id, name, image, summary, full_summary) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Image, r.Summary, r.FullSummary,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting recipe %d: %w", r.ID, err)
	}
	return nil
}

// AddRecipeInfo caches one recipe. It fails with a Duplicate error if the id
// is already present.
func (db *DB) AddRecipeInfo(ctx context.Context, info model.RecipeInfo) error {
	return db.AddRecipeInfos(ctx, []model.RecipeInfo{info}, false)
}

// AddRecipeInfos caches every recipe or none. With ignoreDuplicates, ids
// already cached (or repeated within infos) are skipped instead of failing.
func (db *DB) AddRecipeInfos(ctx context.Context, infos []model.RecipeInfo, ignoreDuplicates bool) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, info := range infos {
			if info.ID <= 0 {
				return apperror.InvalidArgument("id", "expected id")
			}
			ok, err := exists(ctx, tx, `SELECT 1 FROM recipes WHERE id = ?`, info.ID)
			if err != nil {
				return fmt.Errorf("sqlite: checking recipe %d: %w", info.ID, err)
			}
			if ok {
				if ignoreDuplicates {
					continue
				}
				return apperror.Duplicate("recipe", idString(info.ID))
			}
			if err := insertRecipe(ctx, tx, info); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanRecipe(row rowScanner) (*model.Recipe, error) {
	var r model.Recipe
	if err := row.Scan(&r.ID, &r.Name, &r.Image, &r.Summary, &r.FullSummary); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRecipes(rows *sql.Rows) ([]model.Recipe, error) {
	defer rows.Close()
	recipes := []model.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	return recipes, rows.Err()
}

func (db *DB) GetRecipeInfo(ctx context.Context, id int64) (*model.Recipe, error) {
	r, err := scanRecipe(db.conn.QueryRowContext(ctx,
		`SELECT id, name, image, summary, full_summary FROM recipes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("recipe", idString(id))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}
	return r, nil
}

// GetRecipeInfos returns the recipes in the order of ids, failing with
// NotFound if any id is missing.
func (db *DB) GetRecipeInfos(ctx context.Context, ids []int64) ([]model.Recipe, error) {
	out := make([]model.Recipe, 0, len(ids))
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			r, err := scanRecipe(tx.QueryRowContext(ctx,
				`SELECT id, name, image, summary, full_summary FROM recipes WHERE id = ?`, id))
			if err == sql.ErrNoRows {
				return apperror.NotFound("recipe", idString(id))
			}
			if err != nil {
				return fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
			}
			out = append(out, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRecipeInfo removes a cached recipe. Saved-recipe rows that reference
// it are removed by cascade.
func (db *DB) DeleteRecipeInfo(ctx context.Context, id int64) error {
	return db.DeleteRecipeInfos(ctx, []int64{id})
}

func (db *DB) DeleteRecipeInfos(ctx context.Context, ids []int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return apperror.NotFound("recipe", idString(id))
			}
		}
		return nil
	})
}

func (db *DB) RecipeInfoExists(ctx context.Context, id int64) (bool, error) {
	ok, err := exists(ctx, db.conn, `SELECT 1 FROM recipes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking recipe %d: %w", id, err)
	}
	return ok, nil
}

// RandomRecipeInfos samples up to limit cached recipes. A catalog smaller
// than limit returns every row.
func (db *DB) RandomRecipeInfos(ctx context.Context, limit int) ([]model.Recipe, error) {
	if limit < 1 {
		return nil, apperror.InvalidArgument("limit", "expected limit >= 1")
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, image, summary, full_summary FROM recipes ORDER BY random() LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: sampling recipes: %w", err)
	}
	recipes, err := scanRecipes(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scanning recipes: %w", err)
	}
	return recipes, nil
}

// ===== INGREDIENTS =====

func insertIngredient(ctx context.Context, q querier, info model.IngredientInfo) error {
	i := info.ToIngredient()
	_, err := q.ExecContext(ctx,
		`INSERT INTO ingredients (id, name, image) VALUES (?, ?, ?)`,
		i.ID, i.Name, i.Image,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting ingredient %d: %w", i.ID, err)
	}
	return nil
}

func (db *DB) AddIngredientInfo(ctx context.Context, info model.IngredientInfo) error {
	return db.AddIngredientInfos(ctx, []model.IngredientInfo{info}, false)
}

func (db *DB) AddIngredientInfos(ctx context.Context, infos []model.IngredientInfo, ignoreDuplicates bool) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, info := range infos {
			if info.ID <= 0 {
				return apperror.InvalidArgument("id", "expected id")
			}
			ok, err := exists(ctx, tx, `SELECT 1 FROM ingredients WHERE id = ?`, info.ID)
			if err != nil {
				return fmt.Errorf("sqlite: checking ingredient %d: %w", info.ID, err)
			}
			if ok {
				if ignoreDuplicates {
					continue
				}
				return apperror.Duplicate("ingredient", idString(info.ID))
			}
			if err := insertIngredient(ctx, tx, info); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanIngredient(row rowScanner) (*model.Ingredient, error) {
	var i model.Ingredient
	if err := row.Scan(&i.ID, &i.Name, &i.Image); err != nil {
		return nil, err
	}
	return &i, nil
}

func (db *DB) GetIngredientInfo(ctx context.Context, id int64) (*model.Ingredient, error) {
	i, err := scanIngredient(db.conn.QueryRowContext(ctx,
		`SELECT id, name, image FROM ingredients WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("ingredient", idString(id))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting ingredient %d: %w", id, err)
	}
	return i, nil
}

func (db *DB) GetIngredientInfos(ctx context.Context, ids []int64) ([]model.Ingredient, error) {
	out := make([]model.Ingredient, 0, len(ids))
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			i, err := scanIngredient(tx.QueryRowContext(ctx,
				`SELECT id, name, image FROM ingredients WHERE id = ?`, id))
			if err == sql.ErrNoRows {
				return apperror.NotFound("ingredient", idString(id))
			}
			if err != nil {
				return fmt.Errorf("sqlite: getting ingredient %d: %w", id, err)
			}
			out = append(out, *i)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) DeleteIngredientInfo(ctx context.Context, id int64) error {
	return db.DeleteIngredientInfos(ctx, []int64{id})
}

func (db *DB) DeleteIngredientInfos(ctx context.Context, ids []int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM ingredients WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("sqlite: deleting ingredient %d: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return apperror.NotFound("ingredient", idString(id))
			}
		}
		return nil
	})
}

func (db *DB) IngredientInfoExists(ctx context.Context, id int64) (bool, error) {
	ok, err := exists(ctx, db.conn, `SELECT 1 FROM ingredients WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking ingredient %d: %w", id, err)
	}
	return ok, nil
}

func (db *DB) RandomIngredientInfos(ctx context.Context, limit int) ([]model.Ingredient, error) {
	if limit < 1 {
		return nil, apperror.InvalidArgument("limit", "expected limit >= 1")
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, image FROM ingredients ORDER BY random() LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: sampling ingredients: %w", err)
	}
	defer rows.Close()

	out := []model.Ingredient{}
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
