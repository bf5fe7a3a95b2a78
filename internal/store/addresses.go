package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/safar/go-bookshop/internal/database"
	"github.com/safar/go-bookshop/internal/models"
)

type AddressParams struct {
	StreetAddress string
	City          string
	State         string
	PostalCode    string
	Country       string
}

const addressColumns = "id, user_id, street_address, city, state, postal_code, country"

func scanAddress(row scanner) (*models.ShippingAddress, error) {
	addr := &models.ShippingAddress{}
	err := row.Scan(
		&addr.ID,
		&addr.UserID,
		&addr.StreetAddress,
		&addr.City,
		&addr.State,
		&addr.PostalCode,
		&addr.Country,
	)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func GetAddress(ctx context.Context, q Querier, userID string) (*models.ShippingAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM shipping_addresses WHERE user_id = $1`

	addr, err := scanAddress(q.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get shipping address: %w", err)
	}

	return addr, nil
}

// CreateAddress fails with ErrAddressExists when the user already has one.
func CreateAddress(ctx context.Context, q Querier, userID string, params AddressParams) (*models.ShippingAddress, error) {
	query := `
		INSERT INTO shipping_addresses (id, user_id, street_address, city, state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + addressColumns

	addr, err := scanAddress(q.QueryRowContext(ctx, query,
		uuid.NewString(), userID,
		params.StreetAddress, params.City, params.State, params.PostalCode, params.Country))
	if err != nil {
		if database.IsUniqueViolation(err, "shipping_addresses_user_id_key") {
			return nil, database.ErrAddressExists
		}
		if database.IsForeignKeyViolation(err, "shipping_addresses_user_id_fkey") {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("create shipping address: %w", err)
	}

	return addr, nil
}

// UpsertAddress replaces the user's address, creating it if missing.
func UpsertAddress(ctx context.Context, q Querier, userID string, params AddressParams) (*models.ShippingAddress, error) {
	query := `
		INSERT INTO shipping_addresses (id, user_id, street_address, city, state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT shipping_addresses_user_id_key DO UPDATE
		SET street_address = EXCLUDED.street_address,
		    city = EXCLUDED.city,
		    state = EXCLUDED.state,
		    postal_code = EXCLUDED.postal_code,
		    country = EXCLUDED.country
		RETURNING ` + addressColumns

	addr, err := scanAddress(q.QueryRowContext(ctx, query,
		uuid.NewString(), userID,
		params.StreetAddress, params.City, params.State, params.PostalCode, params.Country))
	if err != nil {
		if database.IsForeignKeyViolation(err, "shipping_addresses_user_id_fkey") {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("upsert shipping address: %w", err)
	}

	return addr, nil
}

func DeleteAddress(ctx context.Context, q Querier, userID string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM shipping_addresses WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete shipping address: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrAddressNotFound
	}

	return nil
}
