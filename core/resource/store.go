package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("resource not found")

func Create(ctx context.Context, db sqlx.ExtContext, res Resource) error {
	const q = `
	INSERT INTO resources
		(resource_id, title, kind, thumbnail, file_url, price, discount, created_at, updated_at)
	VALUES
		(:resource_id, :title, :kind, :thumbnail, :file_url, :price, :discount, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, res); err != nil {
		return fmt.Errorf("inserting resource[%s]: %w", res.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db *sqlx.DB, id string) (Resource, error) {
	const q = `SELECT * FROM resources WHERE resource_id = $1`

	var res Resource
	if err := db.GetContext(ctx, &res, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resource{}, ErrNotFound
		}
		return Resource{}, fmt.Errorf("fetching resource[%s]: %w", id, err)
	}
	return res, nil
}

func List(ctx context.Context, db *sqlx.DB) ([]Resource, error) {
	const q = `SELECT * FROM resources ORDER BY created_at DESC`

	rs := []Resource{}
	if err := db.SelectContext(ctx, &rs, q); err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	return rs, nil
}

func ListOwned(ctx context.Context, db *sqlx.DB, userID string) ([]Resource, error) {
	const q = `
	SELECT r.* FROM resources AS r
	JOIN enrollments AS e ON e.item_id = r.resource_id
	WHERE e.user_id = $1 AND e.item_kind = 'resource'
	ORDER BY e.created_at DESC`

	rs := []Resource{}
	if err := db.SelectContext(ctx, &rs, q, userID); err != nil {
		return nil, fmt.Errorf("listing resources owned by user[%s]: %w", userID, err)
	}
	return rs, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, res Resource) error {
	const q = `
	UPDATE resources SET
		title = :title,
		kind = :kind,
		thumbnail = :thumbnail,
		file_url = :file_url,
		price = :price,
		discount = :discount,
		updated_at = :updated_at,
		version = version + 1
	WHERE resource_id = :resource_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, res); err != nil {
		return fmt.Errorf("updating resource[%s]: %w", res.ID, err)
	}
	return nil
}
