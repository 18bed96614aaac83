package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/api/weberr"
	"github.com/hk-academy/storefront/core/claims"
	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/hk-academy/storefront/core/resource"
	"github.com/hk-academy/storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// HandleDownload streams a purchased resource file as an attachment. When
// the upstream fetch fails the buyer is redirected to the raw URL instead,
// so the purchase is still usable.
func HandleDownload(db *sqlx.DB, d *Dispatcher, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		res, err := resource.Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, resource.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching resource[%s]: %w", id, err)
		}

		owned, err := enrollment.Owned(ctx, db, clm.UserID, enrollment.KindResource, id)
		if err != nil {
			return fmt.Errorf("checking ownership of resource[%s]: %w", id, err)
		}
		if !owned {
			return weberr.NotAuthorized(fmt.Errorf("user[%s] does not own resource[%s]", clm.UserID, id))
		}

		f, err := d.Fetch(ctx, res.ID, res.FileURL, FallbackName(res.Title, res.Kind))
		if err != nil {
			log.Errorf("fetching file of resource[%s]: %v", id, err)
			http.Redirect(w, r, res.FileURL, http.StatusFound)
			return nil
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, f.Name))
		if f.ContentType != "" {
			w.Header().Set("Content-Type", f.ContentType)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(f.Data)))
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write(f.Data); err != nil {
			return fmt.Errorf("writing file of resource[%s] to response: %w", id, err)
		}
		return nil
	}
}
