package catalog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/query"
)

// Cache key prefixes; also used by other packages to invalidate after mutations.
const (
	KeyBooks     = "books"
	KeyBook      = "book:"
	KeyBookUnits = "book-units:"
	KeyUnit      = "unit:"
)

var ErrUnknownAssetType = errors.New("unknown asset type")

type API struct {
	c     *client.Client
	cache *query.Cache
}

func New(c *client.Client, cache *query.Cache) *API {
	return &API{c: c, cache: cache}
}

// GET /catalog/books/?search=&ordering=&page=
func (a *API) Books(ctx context.Context, f BookFilter) ([]Book, error) {
	return query.Fetch(ctx, a.cache, query.Key(KeyBooks, nil, f), func(ctx context.Context) ([]Book, error) {
		q := url.Values{}
		if f.Search != "" {
			q.Set("search", f.Search)
		}
		if f.Ordering != "" {
			q.Set("ordering", f.Ordering)
		}
		if f.Page > 0 {
			q.Set("page", strconv.Itoa(f.Page))
		}
		var out client.List[Book]
		if err := a.c.Get(ctx, "/catalog/books/", q, &out); err != nil {
			return nil, errors.Wrap(err, "list books")
		}
		return out.Results, nil
	})
}

// GET /catalog/books/{slug}/
func (a *API) Book(ctx context.Context, slug string) (*Book, error) {
	if slug == "" {
		return nil, errors.New("book slug required")
	}
	return query.Fetch(ctx, a.cache, KeyBook+slug, func(ctx context.Context) (*Book, error) {
		var b Book
		if err := a.c.Get(ctx, "/catalog/books/"+url.PathEscape(slug)+"/", nil, &b); err != nil {
			return nil, errors.Wrapf(err, "get book %s", slug)
		}
		return &b, nil
	})
}

// GET /catalog/books/{slug}/units/
func (a *API) BookUnits(ctx context.Context, slug string) ([]Unit, error) {
	if slug == "" {
		return nil, errors.New("book slug required")
	}
	return query.Fetch(ctx, a.cache, KeyBookUnits+slug, func(ctx context.Context) ([]Unit, error) {
		var out client.List[Unit]
		if err := a.c.Get(ctx, "/catalog/books/"+url.PathEscape(slug)+"/units/", nil, &out); err != nil {
			return nil, errors.Wrapf(err, "list units of %s", slug)
		}
		return out.Results, nil
	})
}

// GET /catalog/units/{id}/
func (a *API) Unit(ctx context.Context, id int64) (*Unit, error) {
	return query.Fetch(ctx, a.cache, query.Key("unit", id, nil), func(ctx context.Context) (*Unit, error) {
		var u Unit
		if err := a.c.Get(ctx, "/catalog/units/"+strconv.FormatInt(id, 10)+"/", nil, &u); err != nil {
			return nil, errors.Wrapf(err, "get unit %d", id)
		}
		return &u, nil
	})
}

// AssetURL asks for a short-lived signed URL; never cached.
// POST /catalog/units/{id}/asset_url/
func (a *API) AssetURL(ctx context.Context, unitID int64, assetType string) (SignedURL, error) {
	switch assetType {
	case "":
		assetType = AssetAudio
	case AssetAudio, AssetPDF, AssetSubtitle:
	default:
		return SignedURL{}, errors.Wrapf(ErrUnknownAssetType, "%q", assetType)
	}
	var out SignedURL
	err := a.c.Post(ctx, "/catalog/units/"+strconv.FormatInt(unitID, 10)+"/asset_url/",
		map[string]string{"asset_type": assetType}, &out)
	return out, errors.Wrapf(err, "asset url for unit %d", unitID)
}

// InvalidateOwnership drops everything that renders is_owned, after a purchase.
func (a *API) InvalidateOwnership(ctx context.Context) error {
	return a.cache.Invalidate(ctx, KeyBooks, KeyBook, KeyBookUnits)
}
