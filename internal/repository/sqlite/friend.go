package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
)

// ===== RELATIONSHIPS =====
//
// A friendship is one row regardless of direction. Lookups match either
// column; idx_friends_pair rejects the mirrored insert.

func requirePair(ctx context.Context, q querier, user1, user2 string) error {
	if user1 == user2 {
		return apperror.InvalidArgument("user", "a user cannot befriend themselves")
	}
	if err := requireUser(ctx, q, user1); err != nil {
		return err
	}
	return requireUser(ctx, q, user2)
}

func insertRelationship(ctx context.Context, tx *sql.Tx, user1, user2 string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO friends (user1, user2) VALUES (?, ?)`, user1, user2,
	); err != nil {
		return fmt.Errorf("sqlite: adding relationship: %w", err)
	}
	return nil
}

// AddRelationship links two users. Linking an existing pair, in either
// order, changes nothing.
func (db *DB) AddRelationship(ctx context.Context, user1, user2 string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requirePair(ctx, tx, user1, user2); err != nil {
			return err
		}
		return insertRelationship(ctx, tx, user1, user2)
	})
}

func (db *DB) HasRelationship(ctx context.Context, user1, user2 string) (bool, error) {
	ok, err := exists(ctx, db.conn,
		`SELECT 1 FROM friends
		 WHERE (user1 = ? AND user2 = ?) OR (user1 = ? AND user2 = ?)`,
		user1, user2, user2, user1)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking relationship: %w", err)
	}
	return ok, nil
}

func (db *DB) DeleteRelationship(ctx context.Context, user1, user2 string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requirePair(ctx, tx, user1, user2); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM friends
			 WHERE (user1 = ? AND user2 = ?) OR (user1 = ? AND user2 = ?)`,
			user1, user2, user2, user1); err != nil {
			return fmt.Errorf("sqlite: deleting relationship: %w", err)
		}
		return nil
	})
}

// GetRelationships lists the other side of every edge touching userID: edges
// where userID is user1 first, then the rest, each group in creation order.
func (db *DB) GetRelationships(ctx context.Context, userID string, opts repository.ListOptions) ([]model.User, int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, 0, apperror.InvalidArgument("offset", "expected offset and limit >= 0")
	}

	var users []model.User
	var total int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		total, err = count(ctx, tx,
			`SELECT COUNT(*) FROM friends WHERE user1 = ? OR user2 = ?`, userID, userID)
		if err != nil {
			return fmt.Errorf("sqlite: counting relationships: %w", err)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT `+userColumnsAs+`
			 FROM friends f
			 JOIN users u ON u.id = CASE WHEN f.user1 = ? THEN f.user2 ELSE f.user1 END
			 WHERE f.user1 = ? OR f.user2 = ?
			 ORDER BY (f.user1 = ?) DESC, f.id LIMIT ? OFFSET ?`,
			userID, userID, userID, userID, sqlLimit(opts.Limit), opts.Offset)
		if err != nil {
			return fmt.Errorf("sqlite: listing relationships: %w", err)
		}
		users, err = scanUsers(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning relationships: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ===== FRIEND REQUESTS =====

// AddFriendRequest records a pending request from src to target. It reports
// false if the same request was already pending.
func (db *DB) AddFriendRequest(ctx context.Context, src, target string) (bool, error) {
	var added bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requirePair(ctx, tx, src, target); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO friend_requests (src, target) VALUES (?, ?)`, src, target)
		if err != nil {
			return fmt.Errorf("sqlite: adding friend request: %w", err)
		}
		n, _ := res.RowsAffected()
		added = n > 0
		return nil
	})
	return added, err
}

func (db *DB) HasFriendRequest(ctx context.Context, src, target string) (bool, error) {
	ok, err := exists(ctx, db.conn,
		`SELECT 1 FROM friend_requests WHERE src = ? AND target = ?`, src, target)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking friend request: %w", err)
	}
	return ok, nil
}

func (db *DB) DeleteFriendRequest(ctx context.Context, src, target string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE src = ? AND target = ?`, src, target)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting friend request: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AcceptFriendRequest turns a pending request into a friendship. It reports
// false, and changes nothing, when no such request is pending.
func (db *DB) AcceptFriendRequest(ctx context.Context, src, target string) (bool, error) {
	var accepted bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requirePair(ctx, tx, src, target); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM friend_requests WHERE src = ? AND target = ?`, src, target)
		if err != nil {
			return fmt.Errorf("sqlite: consuming friend request: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		// a crossed request from target to src is settled by the same edge
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM friend_requests WHERE src = ? AND target = ?`, target, src); err != nil {
			return fmt.Errorf("sqlite: consuming friend request: %w", err)
		}
		if err := insertRelationship(ctx, tx, src, target); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	return accepted, err
}

// GetFriendRequestsForSource lists the users src has sent requests to.
func (db *DB) GetFriendRequestsForSource(ctx context.Context, src string, opts repository.ListOptions) ([]model.User, int, error) {
	return db.listRequests(ctx, "src", "target", src, opts)
}

// GetFriendRequestsForTarget lists the users who sent target a request.
func (db *DB) GetFriendRequestsForTarget(ctx context.Context, target string, opts repository.ListOptions) ([]model.User, int, error) {
	return db.listRequests(ctx, "target", "src", target, opts)
}

// listRequests pages over friend_requests where column = userID, joining the
// user on the other column. Column names come from the two callers, never from input.
func (db *DB) listRequests(ctx context.Context, column, other, userID string, opts repository.ListOptions) ([]model.User, int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, 0, apperror.InvalidArgument("offset", "expected offset and limit >= 0")
	}

	var users []model.User
	var total int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		total, err = count(ctx, tx,
			`SELECT COUNT(*) FROM friend_requests WHERE `+column+` = ?`, userID)
		if err != nil {
			return fmt.Errorf("sqlite: counting friend requests: %w", err)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT `+userColumnsAs+`
			 FROM friend_requests r JOIN users u ON u.id = r.`+other+`
			 WHERE r.`+column+` = ?
			 ORDER BY r.id LIMIT ? OFFSET ?`,
			userID, sqlLimit(opts.Limit), opts.Offset)
		if err != nil {
			return fmt.Errorf("sqlite: listing friend requests: %w", err)
		}
		users, err = scanUsers(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning friend requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
