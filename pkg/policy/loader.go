package policy

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// Result summarizes a load.
type Result struct {
	Roles  int  `json:"roles"`
	Grants int  `json:"grants"`
	DryRun bool `json:"dry_run"`
}

// Loader writes policy documents through a Store.
type Loader struct {
	store  Store
	dryRun bool
	now    func() time.Time
	logger log.FieldLogger
}

// NewLoader creates a new policy loader.
func NewLoader(store Store) *Loader {
	return &Loader{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.StandardLogger(),
	}
}

// WithDryRun sets whether to validate only without applying changes.
func (l *Loader) WithDryRun(dryRun bool) *Loader {
	l.dryRun = dryRun
	return l
}

func (l *Loader) WithLogger(logger log.FieldLogger) *Loader {
	l.logger = logger
	return l
}

// LoadFromReader parses and loads a policy document.
func (l *Loader) LoadFromReader(ctx context.Context, r io.Reader) (*Result, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, doc)
}

// Load resolves permission names against the catalog and, unless this is a
// dry run, writes every role and grant in one transaction.
func (l *Loader) Load(ctx context.Context, doc *Document) (*Result, error) {
	catalog, err := l.store.ListPermissions(ctx)
	if err != nil {
		return nil, errs.Upstream(err, "failed to load permission catalog")
	}
	ids := make(map[string]string, len(catalog))
	for _, p := range catalog {
		ids[p.Name] = p.ID
	}

	var unknown *multierror.Error
	for _, name := range doc.names() {
		if _, ok := ids[name]; !ok {
			unknown = multierror.Append(unknown, fmt.Errorf("unknown permission %q", name))
		}
	}
	if err := unknown.ErrorOrNil(); err != nil {
		return nil, errs.Validation("invalid policy: %v", err)
	}

	result := &Result{Roles: len(doc.Roles), Grants: len(doc.Grants), DryRun: l.dryRun}
	if l.dryRun {
		return result, nil
	}

	// Rows are stamped in document order; role resolution prefers the
	// earliest row of a level.
	start := l.now()
	seq := 0
	stamp := func() time.Time {
		seq++
		return start.Add(time.Duration(seq) * time.Millisecond)
	}

	err = l.store.Transaction(ctx, func(tx Store) error {
		for _, r := range doc.Roles {
			name := r.Name
			if name == "" {
				name = r.ID
			}
			created := stamp()
			if err := tx.UpsertRole(ctx, &model.Role{ID: r.ID, Name: name, Level: r.Level, CreatedAt: created}); err != nil {
				return fmt.Errorf("role %s: %w", r.ID, err)
			}
			if err := tx.UpsertRolePermission(ctx, &model.RolePermission{
				ID:          globalRowID(r.ID),
				RoleID:      r.ID,
				Permissions: resolve(ids, r.Permissions),
				CreatedAt:   created,
			}); err != nil {
				return fmt.Errorf("role %s: %w", r.ID, err)
			}
		}
		for _, g := range doc.Grants {
			resourceType := string(g.Resource.Type)
			resourceID := g.Resource.ID
			if err := tx.UpsertRolePermission(ctx, &model.RolePermission{
				ID:           grantRowID(g),
				RoleID:       g.Role,
				ResourceType: &resourceType,
				ResourceID:   &resourceID,
				Permissions:  resolve(ids, g.Permissions),
				CreatedAt:    stamp(),
			}); err != nil {
				return fmt.Errorf("grant %s: %w", grantRowID(g), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Upstream(err, "failed to load policy")
	}

	l.logger.WithFields(log.Fields{"roles": result.Roles, "grants": result.Grants}).Info("policy loaded")
	return result, nil
}

func resolve(ids map[string]string, names []string) pq.StringArray {
	out := pq.StringArray{}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		id := ids[name]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
