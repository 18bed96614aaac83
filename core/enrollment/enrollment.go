// Package enrollment records which items a user has bought. A row is written
// exactly once per completed checkout, whatever path the payment took.
package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Kind string

const (
	KindCourse   Kind = "course"
	KindResource Kind = "resource"
)

var ErrAlreadyEnrolled = errors.New("user is already enrolled")

type Enrollment struct {
	UserID    string    `json:"userId" db:"user_id"`
	ItemKind  Kind      `json:"itemKind" db:"item_kind"`
	ItemID    string    `json:"itemId" db:"item_id"`
	Amount    float64   `json:"amount" db:"amount"`
	OrderRef  string    `json:"orderRef" db:"order_ref"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func Create(ctx context.Context, db sqlx.ExtContext, e Enrollment) error {
	const q = `
	INSERT INTO enrollments
		(user_id, item_kind, item_id, amount, order_ref, created_at)
	VALUES
		(:user_id, :item_kind, :item_id, :amount, :order_ref, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, e); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrAlreadyEnrolled
		}
		return fmt.Errorf("inserting enrollment of user[%s] in %s[%s]: %w", e.UserID, e.ItemKind, e.ItemID, err)
	}
	return nil
}

// Owned reports whether the user has an enrollment for the item.
func Owned(ctx context.Context, db *sqlx.DB, userID string, kind Kind, itemID string) (bool, error) {
	const q = `SELECT 1 FROM enrollments WHERE user_id = $1 AND item_kind = $2 AND item_id = $3`

	var one int
	if err := db.GetContext(ctx, &one, q, userID, kind, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking enrollment of user[%s] in %s[%s]: %w", userID, kind, itemID, err)
	}
	return true, nil
}
