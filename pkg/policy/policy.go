package policy

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// Document is a parsed policy file.
type Document struct {
	Roles  []Role  `yaml:"roles"`
	Grants []Grant `yaml:"grants"`
}

// Role declares a role and its global permissions.
type Role struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Level       model.RoleLevel `yaml:"level"`
	Permissions []string        `yaml:"permissions"`
}

// Grant adds permissions to a role on one resource.
type Grant struct {
	Role        string      `yaml:"role"`
	Resource    ResourceRef `yaml:"resource"`
	Permissions []string    `yaml:"permissions"`
}

type ResourceRef struct {
	Type model.ResourceType `yaml:"type"`
	ID   string             `yaml:"id"`
}

// Parse decodes and validates a policy document. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.Validation("policy document is empty")
		}
		return nil, errs.Validation("malformed policy: %v", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document on its own, without the permission catalog.
// Every problem is reported, not just the first.
func (d *Document) Validate() error {
	var result *multierror.Error

	declared := make(map[string]struct{}, len(d.Roles))
	for i, r := range d.Roles {
		switch {
		case r.ID == "":
			result = multierror.Append(result, fmt.Errorf("roles[%d]: id is required", i))
		case hasKey(declared, r.ID):
			result = multierror.Append(result, fmt.Errorf("roles[%d]: duplicate role %q", i, r.ID))
		}
		declared[r.ID] = struct{}{}
		if !r.Level.Valid() {
			result = multierror.Append(result, fmt.Errorf("roles[%d]: unknown level %q", i, r.Level))
		}
	}

	for i, g := range d.Grants {
		if !hasKey(declared, g.Role) {
			result = multierror.Append(result, fmt.Errorf("grants[%d]: role %q is not declared", i, g.Role))
		}
		if !g.Resource.Type.Valid() {
			result = multierror.Append(result, fmt.Errorf("grants[%d]: unknown resource type %q", i, g.Resource.Type))
		}
		if g.Resource.ID == "" {
			result = multierror.Append(result, fmt.Errorf("grants[%d]: resource id is required", i))
		}
		if len(g.Permissions) == 0 {
			result = multierror.Append(result, fmt.Errorf("grants[%d]: at least one permission is required", i))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return errs.Validation("invalid policy: %v", err)
	}
	return nil
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}

// names returns every permission name the document mentions.
func (d *Document) names() []string {
	var out []string
	for _, r := range d.Roles {
		out = append(out, r.Permissions...)
	}
	for _, g := range d.Grants {
		out = append(out, g.Permissions...)
	}
	return out
}

func globalRowID(roleID string) string {
	return "global:" + roleID
}

func grantRowID(g Grant) string {
	return fmt.Sprintf("%s:%s:%s", g.Role, g.Resource.Type, g.Resource.ID)
}
