package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kfchess/identity/pkg/pg"
)

// Unique constraint names from the users migration.
const (
	constraintEmail    = "users_email_key"
	constraintUsername = "users_username_key"
)

const userColumns = `id, email, username, picture_url, user_metadata, join_time`

// PostgresDirectory stores users in the users table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

var _ Directory = (*PostgresDirectory)(nil)

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) CreateUser(ctx context.Context, email, username string, pictureURL *string, metadata map[string]any) (*User, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	row := d.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, picture_url, user_metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		email, username, pictureURL, metadata,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapWriteError(err, "create user")
	}
	return u, nil
}

func (d *PostgresDirectory) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return d.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (d *PostgresDirectory) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return d.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (d *PostgresDirectory) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return d.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (d *PostgresDirectory) GetUsersByID(ctx context.Context, ids []int64) (map[int64]*User, error) {
	out := make(map[int64]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := d.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get users by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get users by id: %w", err)
	}
	return out, nil
}

func (d *PostgresDirectory) UpdateUser(ctx context.Context, id int64, username string, pictureURL *string) (*User, error) {
	row := d.pool.QueryRow(ctx,
		`UPDATE users SET username = $2, picture_url = $3
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, username, pictureURL,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapWriteError(err, "update user")
	}
	return u, nil
}

func (d *PostgresDirectory) getOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := scanUser(d.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PictureURL, &u.Metadata, &u.CreatedAt); err != nil {
		return nil, err
	}
	if u.Metadata == nil {
		u.Metadata = map[string]any{}
	}
	return &u, nil
}

// mapWriteError turns unique violations into the directory sentinels.
func mapWriteError(err error, op string) error {
	switch {
	case pg.IsNotFoundError(err):
		return ErrUserNotFound
	case pg.IsDuplicateKeyError(err):
		switch pg.ConstraintName(err) {
		case constraintEmail:
			return errors.Join(ErrEmailTaken, err)
		case constraintUsername:
			return errors.Join(ErrUsernameTaken, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
