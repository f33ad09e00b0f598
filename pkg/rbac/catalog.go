package rbac

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/doodlesbykumbi/membership-gateway/pkg/server/store"
)

// Catalog resolves permission names to catalog ids. Hits are cached for ttl;
// unknown names are not cached so a newly provisioned permission becomes
// visible on the next lookup.
type Catalog struct {
	store store.CatalogStore
	cache *lru.LRU[string, string]
}

// NewCatalog creates a Catalog backed by s with an LRU of the given size.
func NewCatalog(s store.CatalogStore, size int, ttl time.Duration) *Catalog {
	if size < 1 {
		size = 1
	}
	return &Catalog{
		store: s,
		cache: lru.NewLRU[string, string](size, nil, ttl),
	}
}

// PermissionID returns the catalog id of name. ok is false when the name is
// not in the catalog.
func (c *Catalog) PermissionID(ctx context.Context, name string) (id string, ok bool, err error) {
	if id, ok := c.cache.Get(name); ok {
		return id, true, nil
	}

	p, err := c.store.PermissionByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrPermissionNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	c.cache.Add(name, p.ID)
	return p.ID, true, nil
}

// Purge drops every cached entry.
func (c *Catalog) Purge() {
	c.cache.Purge()
}
