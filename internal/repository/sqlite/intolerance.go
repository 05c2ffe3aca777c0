package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
)

func checkIntolerance(i model.Intolerance) error {
	if !i.Valid() {
		return apperror.InvalidArgument("intolerance", "invalid intolerance "+strconv.Itoa(int(i)))
	}
	return nil
}

// AddIntolerance reports false if the user already had it.
func (db *DB) AddIntolerance(ctx context.Context, userID string, i model.Intolerance) (bool, error) {
	if err := checkIntolerance(i); err != nil {
		return false, err
	}
	var added bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO intolerances (user_id, intolerance) VALUES (?, ?)
			 ON CONFLICT (user_id, intolerance) DO NOTHING`,
			userID, int(i))
		if err != nil {
			return fmt.Errorf("sqlite: adding intolerance: %w", err)
		}
		n, _ := res.RowsAffected()
		added = n > 0
		return nil
	})
	return added, err
}

func (db *DB) HasIntolerance(ctx context.Context, userID string, i model.Intolerance) (bool, error) {
	if err := checkIntolerance(i); err != nil {
		return false, err
	}
	ok, err := exists(ctx, db.conn,
		`SELECT 1 FROM intolerances WHERE user_id = ? AND intolerance = ?`, userID, int(i))
	if err != nil {
		return false, fmt.Errorf("sqlite: checking intolerance: %w", err)
	}
	return ok, nil
}

func (db *DB) DeleteIntolerance(ctx context.Context, userID string, i model.Intolerance) (bool, error) {
	if err := checkIntolerance(i); err != nil {
		return false, err
	}
	var removed bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM intolerances WHERE user_id = ? AND intolerance = ?`, userID, int(i))
		if err != nil {
			return fmt.Errorf("sqlite: deleting intolerance: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

func (db *DB) GetIntolerances(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Intolerance, int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, 0, apperror.InvalidArgument("offset", "expected offset and limit >= 0")
	}

	out := []model.Intolerance{}
	var total int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		total, err = count(ctx, tx, `SELECT COUNT(*) FROM intolerances WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("sqlite: counting intolerances: %w", err)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT intolerance FROM intolerances WHERE user_id = ?
			 ORDER BY id LIMIT ? OFFSET ?`,
			userID, sqlLimit(opts.Limit), opts.Offset)
		if err != nil {
			return fmt.Errorf("sqlite: listing intolerances: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				return fmt.Errorf("sqlite: scanning intolerance: %w", err)
			}
			out = append(out, model.Intolerance(v))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
