package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("subscription not found")
	ErrExists   = errors.New("email is already subscribed")
)

type Subscription struct {
	ID        string    `json:"id" db:"subscription_id"`
	Email     string    `json:"email" db:"email"`
	Token     string    `json:"-" db:"token"`
	Agreed    bool      `json:"agreed" db:"agreed"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func Create(ctx context.Context, db sqlx.ExtContext, s Subscription) error {
	const q = `
	INSERT INTO subscriptions
		(subscription_id, email, token, agreed, created_at, updated_at)
	VALUES
		(:subscription_id, :email, :token, :agreed, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, s); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrExists
		}
		return fmt.Errorf("inserting subscription[%s]: %w", s.ID, err)
	}
	return nil
}

func FetchByToken(ctx context.Context, db *sqlx.DB, token string) (Subscription, error) {
	const q = `SELECT * FROM subscriptions WHERE token = $1`

	var s Subscription
	if err := db.GetContext(ctx, &s, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, fmt.Errorf("fetching subscription by token: %w", err)
	}
	return s, nil
}

func List(ctx context.Context, db *sqlx.DB) ([]Subscription, error) {
	const q = `SELECT * FROM subscriptions ORDER BY created_at DESC`

	subs := []Subscription{}
	if err := db.SelectContext(ctx, &subs, q); err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

func SetAgreed(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `UPDATE subscriptions SET agreed = TRUE, updated_at = $2 WHERE subscription_id = $1`

	if _, err := db.ExecContext(ctx, q, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("confirming subscription[%s]: %w", id, err)
	}
	return nil
}
