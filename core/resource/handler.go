package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/api/weberr"
	"github.com/hk-academy/storefront/core/claims"
	"github.com/hk-academy/storefront/validate"
	"github.com/jmoiron/sqlx"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		res, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching resource[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, res, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		rs, err := List(ctx, db)
		if err != nil {
			return fmt.Errorf("listing resources: %w", err)
		}

		return web.Respond(ctx, w, rs, http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		rs, err := ListOwned(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing resources owned by user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, rs, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var rn ResourceNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding resource: %w", err))
		}

		if err := validate.Check(rn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		res := Resource{
			ID:        validate.GenerateID(),
			Title:     rn.Title,
			Kind:      rn.Kind,
			Thumbnail: rn.Thumbnail,
			FileURL:   rn.FileURL,
			Price:     rn.Price,
			Discount:  rn.Discount,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, res); err != nil {
			return fmt.Errorf("creating resource: %w", err)
		}

		return web.Respond(ctx, w, res, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		var ru ResourceUp
		if err := web.Decode(w, r, &ru); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding resource update: %w", err))
		}

		if err := validate.Check(ru); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		res, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching resource[%s]: %w", id, err)
		}

		if ru.Title != nil {
			res.Title = *ru.Title
		}
		if ru.Kind != nil {
			res.Kind = *ru.Kind
		}
		if ru.Thumbnail != nil {
			res.Thumbnail = *ru.Thumbnail
		}
		if ru.FileURL != nil {
			res.FileURL = *ru.FileURL
		}
		if ru.Price != nil {
			res.Price = *ru.Price
		}
		if ru.Discount != nil {
			res.Discount = *ru.Discount
		}
		res.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, res); err != nil {
			return fmt.Errorf("updating resource[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, res, http.StatusOK)
	}
}
