package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hk-academy/storefront/core/course"
	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/hk-academy/storefront/core/resource"
	"github.com/jmoiron/sqlx"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// Store is the postgres-backed Storage used outside of tests.
type Store struct {
	DB *sqlx.DB
}

func (s Store) Item(ctx context.Context, kind enrollment.Kind, id string) (Item, error) {
	switch kind {
	case enrollment.KindCourse:
		c, err := course.Fetch(ctx, s.DB, id)
		if err != nil {
			return Item{}, err
		}
		return Item{
			ID:          c.ID,
			Kind:        kind,
			Title:       c.Title,
			Description: c.Subtitle,
			Price:       c.Price,
			Discount:    c.Discount,
		}, nil

	case enrollment.KindResource:
		r, err := resource.Fetch(ctx, s.DB, id)
		if err != nil {
			return Item{}, err
		}
		return Item{
			ID:          r.ID,
			Kind:        kind,
			Title:       r.Title,
			Description: r.Kind,
			Price:       r.Price,
			Discount:    r.Discount,
		}, nil
	}

	return Item{}, fmt.Errorf("unknown item kind[%s]", kind)
}

func (s Store) CreateSession(ctx context.Context, sess Session) error {
	const q = `
	INSERT INTO checkout_sessions
		(provider_order_id, user_id, item_kind, item_id, amount, coupon_code, status, created_at, updated_at)
	VALUES
		(:provider_order_id, :user_id, :item_kind, :item_id, :amount, :coupon_code, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, s.DB, q, sess); err != nil {
		return fmt.Errorf("inserting checkout session[%s]: %w", sess.ProviderOrderID, err)
	}
	return nil
}

func (s Store) Session(ctx context.Context, providerOrderID string) (Session, error) {
	const q = `SELECT * FROM checkout_sessions WHERE provider_order_id = $1`

	var sess Session
	if err := s.DB.GetContext(ctx, &sess, q, providerOrderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("fetching checkout session[%s]: %w", providerOrderID, err)
	}
	return sess, nil
}

func (s Store) LatestPending(ctx context.Context, userID string) (Session, error) {
	const q = `
	SELECT * FROM checkout_sessions
	WHERE user_id = $1 AND status = 'pending'
	ORDER BY created_at DESC
	LIMIT 1`

	var sess Session
	if err := s.DB.GetContext(ctx, &sess, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("fetching pending checkout session of user[%s]: %w", userID, err)
	}
	return sess, nil
}

func (s Store) SetSessionStatus(ctx context.Context, providerOrderID string, status Status) error {
	const q = `UPDATE checkout_sessions SET status = $2, updated_at = $3 WHERE provider_order_id = $1`

	if _, err := s.DB.ExecContext(ctx, q, providerOrderID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating checkout session[%s] to status[%s]: %w", providerOrderID, status, err)
	}
	return nil
}

func (s Store) Enroll(ctx context.Context, e enrollment.Enrollment) error {
	return enrollment.Create(ctx, s.DB, e)
}
