package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("course not found")

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, title, subtitle, description, thumbnail, price, discount, created_at, updated_at)
	VALUES
		(:course_id, :title, :subtitle, :description, :thumbnail, :price, :discount, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course[%s]: %w", c.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db *sqlx.DB, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := db.GetContext(ctx, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("fetching course[%s]: %w", id, err)
	}
	return c, nil
}

func List(ctx context.Context, db *sqlx.DB) ([]Course, error) {
	const q = `SELECT * FROM courses ORDER BY created_at DESC`

	cs := []Course{}
	if err := db.SelectContext(ctx, &cs, q); err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return cs, nil
}

func ListOwned(ctx context.Context, db *sqlx.DB, userID string) ([]Course, error) {
	const q = `
	SELECT c.* FROM courses AS c
	JOIN enrollments AS e ON e.item_id = c.course_id
	WHERE e.user_id = $1 AND e.item_kind = 'course'
	ORDER BY e.created_at DESC`

	cs := []Course{}
	if err := db.SelectContext(ctx, &cs, q, userID); err != nil {
		return nil, fmt.Errorf("listing courses owned by user[%s]: %w", userID, err)
	}
	return cs, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		title = :title,
		subtitle = :subtitle,
		description = :description,
		thumbnail = :thumbnail,
		price = :price,
		discount = :discount,
		updated_at = :updated_at,
		version = version + 1
	WHERE course_id = :course_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	return nil
}
