package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Coupon) error {
	const q = `
	INSERT INTO coupons
		(coupon_id, code, discount_type, discount_value, min_purchase, max_discount, expiry_date, usage_limit, usage_count, created_at, updated_at)
	VALUES
		(:coupon_id, :code, :discount_type, :discount_value, :min_purchase, :max_discount, :expiry_date, :usage_limit, :usage_count, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting coupon[%s]: %w", c.Code, err)
	}
	return nil
}

func Fetch(ctx context.Context, db *sqlx.DB, id string) (Coupon, error) {
	const q = `SELECT * FROM coupons WHERE coupon_id = $1`

	var c Coupon
	if err := db.GetContext(ctx, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("fetching coupon[%s]: %w", id, err)
	}
	return c, nil
}

func FetchByCode(ctx context.Context, db *sqlx.DB, code string) (Coupon, error) {
	const q = `SELECT * FROM coupons WHERE code = $1`

	var c Coupon
	if err := db.GetContext(ctx, &c, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("fetching coupon by code[%s]: %w", code, err)
	}
	return c, nil
}

func List(ctx context.Context, db *sqlx.DB) ([]Coupon, error) {
	const q = `SELECT * FROM coupons ORDER BY created_at DESC`

	cs := []Coupon{}
	if err := db.SelectContext(ctx, &cs, q); err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return cs, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Coupon) error {
	const q = `
	UPDATE coupons SET
		code = :code,
		discount_type = :discount_type,
		discount_value = :discount_value,
		min_purchase = :min_purchase,
		max_discount = :max_discount,
		expiry_date = :expiry_date,
		usage_limit = :usage_limit,
		updated_at = :updated_at
	WHERE coupon_id = :coupon_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating coupon[%s]: %w", c.ID, err)
	}
	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `DELETE FROM coupons WHERE coupon_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting coupon[%s]: %w", id, err)
	}
	return nil
}

// commitUsage increments the usage counter, refusing the increment when the
// limit is already reached. The WHERE clause makes the check-and-increment a
// single atomic statement.
func commitUsage(ctx context.Context, db sqlx.ExtContext, code string) error {
	const q = `
	UPDATE coupons SET
		usage_count = usage_count + 1,
		updated_at = now()
	WHERE code = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`

	res, err := db.ExecContext(ctx, q, code)
	if err != nil {
		return fmt.Errorf("incrementing usage of coupon[%s]: %w", code, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking usage increment of coupon[%s]: %w", code, err)
	}
	if n == 0 {
		return ErrExhausted
	}
	return nil
}
