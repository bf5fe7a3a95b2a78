package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
)

const userColumns = "id, email, hashed_password, full_name, is_active, is_admin, created_at, updated_at"

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.FullName,
		&user.IsActive,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
	IsActive       bool
	IsAdmin        bool
}

func CreateUser(ctx context.Context, q Querier, params CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, hashed_password, full_name, is_active, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRowContext(ctx, query,
		uuid.NewString(),
		strings.ToLower(strings.TrimSpace(params.Email)),
		params.HashedPassword,
		params.FullName,
		params.IsActive,
		params.IsAdmin,
	))
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q Querier, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, q Querier, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(q.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, q Querier, page Page) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// UserUpdate lists the fields to change; nil pointers are left untouched.
type UserUpdate struct {
	Email          *string
	HashedPassword *string
	FullName       *string
	IsActive       *bool
	IsAdmin        *bool
}

func UpdateUser(ctx context.Context, q Querier, id string, upd UserUpdate) (*models.User, error) {
	b := psql.Update("users").Set("updated_at", time.Now().UTC()).Where("id = ?", id)
	if upd.Email != nil {
		b = b.Set("email", strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.HashedPassword != nil {
		b = b.Set("hashed_password", *upd.HashedPassword)
	}
	if upd.FullName != nil {
		b = b.Set("full_name", *upd.FullName)
	}
	if upd.IsActive != nil {
		b = b.Set("is_active", *upd.IsActive)
	}
	if upd.IsAdmin != nil {
		b = b.Set("is_admin", *upd.IsAdmin)
	}

	query, args, err := b.Suffix("RETURNING " + userColumns).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user update: %w", err)
	}

	user, err := scanUser(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// DeleteUser removes the user together with everything it owns. Foreign keys
// restrict deletes, so dependents go first, all in one transaction.
func DeleteUser(ctx context.Context, db *sql.DB, id string) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		steps := []struct {
			what  string
			query string
		}{
			{"order items", `DELETE FROM order_items WHERE order_id IN (SELECT id FROM orders WHERE user_id = $1)`},
			{"orders", `DELETE FROM orders WHERE user_id = $1`},
			{"wishlist", `DELETE FROM wishlist_items WHERE user_id = $1`},
			{"shipping address", `DELETE FROM shipping_addresses WHERE user_id = $1`},
			{"user", `DELETE FROM users WHERE id = $1`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("delete %s: %w", step.what, err)
			}
		}

		return nil
	})
}
