package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
)

// compile-time check that *DB implements every repository
var _ repository.Store = (*DB)(nil)

const userColumns = `id, username, email, given_name, family_name, profile_image,
	creation_date, authentication, status, profile_visibility`

// userColumnsAs is userColumns qualified with the alias u, for joins.
const userColumnsAs = `u.id, u.username, u.email, u.given_name, u.family_name, u.profile_image,
	u.creation_date, u.authentication, u.status, u.profile_visibility`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.GivenName,
		&u.FamilyName,
		&u.ProfileImage,
		&u.CreationDate,
		&u.Authentication,
		&u.Status,
		&u.ProfileVisibility,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]model.User, error) {
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// requireUser returns NotFound("user") unless id exists. It is the first
// statement of most transactions in this package.
func requireUser(ctx context.Context, q querier, id string) error {
	ok, err := exists(ctx, q, `SELECT 1 FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: checking user %s: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("user", id)
	}
	return nil
}

// insertUser checks email, username and id uniqueness in that order, then inserts.
func insertUser(ctx context.Context, tx *sql.Tx, user *model.User, passwordHash string) error {
	if ok, err := exists(ctx, tx, `SELECT 1 FROM users WHERE email = ?`, user.Email); err != nil {
		return fmt.Errorf("sqlite: checking email: %w", err)
	} else if ok {
		return apperror.Duplicate("user", user.Email)
	}
	if ok, err := exists(ctx, tx, `SELECT 1 FROM users WHERE username = ?`, user.Username); err != nil {
		return fmt.Errorf("sqlite: checking username: %w", err)
	} else if ok {
		return apperror.Duplicate("user", user.Username)
	}
	if ok, err := exists(ctx, tx, `SELECT 1 FROM users WHERE id = ?`, user.ID); err != nil {
		return fmt.Errorf("sqlite: checking user id: %w", err)
	} else if ok {
		return apperror.Duplicate("user", user.ID)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.GivenName,
		user.FamilyName,
		user.ProfileImage,
		user.CreationDate,
		int(user.Authentication),
		int(user.Status),
		int(user.ProfileVisibility),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %s: %w", user.ID, err)
	}

	if passwordHash != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO passwords (user_id, phrase) VALUES (?, ?)`,
			user.ID, passwordHash,
		); err != nil {
			return fmt.Errorf("sqlite: inserting password for %s: %w", user.ID, err)
		}
	}
	return nil
}

// CreateUser inserts the user and, when passwordHash is non-empty, its
// credential in one transaction.
func (db *DB) CreateUser(ctx context.Context, user *model.User, passwordHash string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertUser(ctx, tx, user, passwordHash)
	})
}

// CreateUsers inserts all users or none. passwordHashes may be nil; otherwise
// it must be parallel to users.
func (db *DB) CreateUsers(ctx context.Context, users []*model.User, passwordHashes []string) error {
	if passwordHashes != nil && len(passwordHashes) != len(users) {
		return apperror.InvalidArgument("passwords", "expected one password per user")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for i, u := range users {
			hash := ""
			if passwordHashes != nil {
				hash = passwordHashes[i]
			}
			if err := insertUser(ctx, tx, u, hash); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) getUserBy(ctx context.Context, column, value string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %s: %w", column, value, err)
	}
	return u, nil
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserBy(ctx, "id", id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserBy(ctx, "username", username)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserBy(ctx, "email", email)
}

// getUsersBy looks up every value and fails with NotFound on the first
// missing one. Results follow the order of values.
func (db *DB) getUsersBy(ctx context.Context, column string, values []string) ([]model.User, error) {
	users := make([]model.User, 0, len(values))
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for _, v := range values {
			u, err := scanUser(tx.QueryRowContext(ctx,
				`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, v,
			))
			if err == sql.ErrNoRows {
				return apperror.NotFound("user", v)
			}
			if err != nil {
				return fmt.Errorf("sqlite: getting user by %s %s: %w", column, v, err)
			}
			users = append(users, *u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (db *DB) GetUsersByID(ctx context.Context, ids []string) ([]model.User, error) {
	return db.getUsersBy(ctx, "id", ids)
}

func (db *DB) GetUsersByUsername(ctx context.Context, usernames []string) ([]model.User, error) {
	return db.getUsersBy(ctx, "username", usernames)
}

// DeleteUser removes the user. Saved items, intolerances, friend edges,
// friend requests and the password row go with it through ON DELETE CASCADE.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	return db.DeleteUsers(ctx, []string{id})
}

// DeleteUsers removes every listed user or none of them.
func (db *DB) DeleteUsers(ctx context.Context, ids []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return apperror.NotFound("user", id)
			}
		}
		return nil
	})
}

func (db *DB) UserExists(ctx context.Context, id string) (bool, error) {
	ok, err := exists(ctx, db.conn, `SELECT 1 FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking user %s: %w", id, err)
	}
	return ok, nil
}

func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	ok, err := exists(ctx, db.conn, `SELECT 1 FROM users WHERE username = ?`, username)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %s: %w", username, err)
	}
	return ok, nil
}

func (db *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	ok, err := exists(ctx, db.conn, `SELECT 1 FROM users WHERE email = ?`, email)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking email: %w", err)
	}
	return ok, nil
}

// likePattern escapes LIKE wildcards in s and wraps it in %...%.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// SearchUsersByName matches users whose names contain the query,
// case-insensitively. For NameFull a two-word query matches given/family in
// either order. When obeyVisibility is set, users hiding their name are skipped.
func (db *DB) SearchUsersByName(ctx context.Context, query string, field repository.NameField, obeyVisibility bool, opts repository.ListOptions) ([]model.User, int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, 0, apperror.InvalidArgument("offset", "expected offset and limit >= 0")
	}

	parts := strings.Fields(query)
	name1, name2 := strings.TrimSpace(query), ""
	if len(parts) > 0 {
		name1 = parts[0]
	}
	if len(parts) > 1 {
		name2 = parts[1]
	}

	var where string
	var args []any
	switch {
	case field == repository.NameGiven:
		where = `given_name LIKE ? ESCAPE '\'`
		args = []any{likePattern(strings.TrimSpace(query))}
	case field == repository.NameFamily:
		where = `family_name LIKE ? ESCAPE '\'`
		args = []any{likePattern(strings.TrimSpace(query))}
	case name2 == "":
		where = `(given_name LIKE ? ESCAPE '\' OR family_name LIKE ? ESCAPE '\')`
		args = []any{likePattern(name1), likePattern(name1)}
	default:
		where = `((given_name LIKE ? ESCAPE '\' AND family_name LIKE ? ESCAPE '\')
			OR (given_name LIKE ? ESCAPE '\' AND family_name LIKE ? ESCAPE '\'))`
		args = []any{likePattern(name1), likePattern(name2), likePattern(name2), likePattern(name1)}
	}
	if obeyVisibility {
		where += ` AND (profile_visibility & ?) = ?`
		args = append(args, int(model.VisibilityName), int(model.VisibilityName))
	}

	return db.searchUsers(ctx, where, args, opts)
}

// SearchUsersByUsername matches users whose username contains the query.
func (db *DB) SearchUsersByUsername(ctx context.Context, query string, opts repository.ListOptions) ([]model.User, int, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, 0, apperror.InvalidArgument("offset", "expected offset and limit >= 0")
	}
	return db.searchUsers(ctx, `username LIKE ? ESCAPE '\'`, []any{likePattern(strings.TrimSpace(query))}, opts)
}

func (db *DB) searchUsers(ctx context.Context, where string, args []any, opts repository.ListOptions) ([]model.User, int, error) {
	total, err := count(ctx, db.conn, `SELECT COUNT(*) FROM users WHERE `+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting user search: %w", err)
	}

	pageArgs := append(append([]any{}, args...), sqlLimit(opts.Limit), opts.Offset)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+`
		 ORDER BY rowid LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: searching users: %w", err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: scanning user search: %w", err)
	}
	return users, total, nil
}

// updateUser runs a single-column UPDATE and maps "no row" to NotFound.
func (db *DB) updateUser(ctx context.Context, id, set string, args ...any) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+set+` WHERE id = ?`, append(args, id)...)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// SetUsername fails with a Duplicate error if another user holds username.
func (db *DB) SetUsername(ctx context.Context, id, username string) error {
	return db.setUnique(ctx, id, "username", username)
}

// SetEmail fails with a Duplicate error if another user holds email.
func (db *DB) SetEmail(ctx context.Context, id, email string) error {
	return db.setUnique(ctx, id, "email", email)
}

func (db *DB) setUnique(ctx context.Context, id, column, value string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, id); err != nil {
			return err
		}
		taken, err := exists(ctx, tx,
			`SELECT 1 FROM users WHERE `+column+` = ? AND id <> ?`, value, id)
		if err != nil {
			return fmt.Errorf("sqlite: checking %s: %w", column, err)
		}
		if taken {
			return apperror.Duplicate("user", value)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET `+column+` = ? WHERE id = ?`, value, id); err != nil {
			return fmt.Errorf("sqlite: setting %s for %s: %w", column, id, err)
		}
		return nil
	})
}

// SetPasswordHash stores or replaces the user's credential.
func (db *DB) SetPasswordHash(ctx context.Context, id, hash string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO passwords (user_id, phrase) VALUES (?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET phrase = excluded.phrase`,
			id, hash)
		if err != nil {
			return fmt.Errorf("sqlite: setting password for %s: %w", id, err)
		}
		return nil
	})
}

// GetPasswordHash returns NotFound("password") for accounts without one,
// e.g. Google sign-ins.
func (db *DB) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := db.conn.QueryRowContext(ctx,
		`SELECT phrase FROM passwords WHERE user_id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", apperror.NotFound("password", id)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: getting password for %s: %w", id, err)
	}
	return hash, nil
}

func (db *DB) SetProfileImage(ctx context.Context, id, url string) error {
	return db.updateUser(ctx, id, `profile_image = ?`, url)
}

func (db *DB) SetStatus(ctx context.Context, id string, status model.UserStatus) error {
	return db.updateUser(ctx, id, `status = ?`, int(status))
}

func (db *DB) SetName(ctx context.Context, id, givenName, familyName string) error {
	return db.updateUser(ctx, id, `given_name = ?, family_name = ?`, givenName, familyName)
}

func (db *DB) SetGivenName(ctx context.Context, id, givenName string) error {
	return db.updateUser(ctx, id, `given_name = ?`, givenName)
}

func (db *DB) SetFamilyName(ctx context.Context, id, familyName string) error {
	return db.updateUser(ctx, id, `family_name = ?`, familyName)
}

func (db *DB) SetProfileVisibility(ctx context.Context, id string, v model.ProfileVisibility) error {
	return db.updateUser(ctx, id, `profile_visibility = ?`, int(v))
}
