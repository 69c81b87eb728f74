package rbac

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

//go:embed catalog.yaml
var catalogYAML []byte

// RoleSpec is one catalog entry.
type RoleSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Catalog is the canonical set of roles plus the roles granted to every
// new project member.
type Catalog struct {
	Roles              []RoleSpec `json:"roles"`
	DefaultMemberRoles []string   `json:"defaultMemberRoles"`
}

// ParseCatalog decodes a YAML catalog and validates it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("decoding role catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultCatalog returns the embedded canonical catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// Validate checks that names are unique and non-empty, that every permission
// is well formed, and that the default member roles are all in the catalog.
func (c *Catalog) Validate() error {
	var errs []error

	seen := make(map[string]bool, len(c.Roles))
	for _, r := range c.Roles {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			errs = append(errs, errors.New("role with empty name"))
			continue
		}
		if name != r.Name {
			errs = append(errs, fmt.Errorf("role %q has surrounding whitespace", r.Name))
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate role %q", name))
		}
		seen[name] = true

		for _, p := range r.Permissions {
			if _, err := ParseCapability(p); err != nil {
				errs = append(errs, fmt.Errorf("role %q: %w", name, err))
			}
		}
	}

	for _, name := range c.DefaultMemberRoles {
		if !seen[name] {
			errs = append(errs, fmt.Errorf("default member role %q is not in the catalog", name))
		}
	}

	return errors.Join(errs...)
}

// Has reports whether name is a catalog role.
func (c *Catalog) Has(name string) bool {
	for _, r := range c.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Unknown returns the names not present in the catalog, in input order.
func (c *Catalog) Unknown(names []string) []string {
	var unknown []string
	for _, n := range names {
		if !c.Has(n) {
			unknown = append(unknown, n)
		}
	}
	return unknown
}

// DefaultRoles returns a copy of the default member role list.
func (c *Catalog) DefaultRoles() []string {
	out := make([]string, len(c.DefaultMemberRoles))
	copy(out, c.DefaultMemberRoles)
	return out
}

// Permissions returns the parsed permissions of the named role, or nil when
// the role is not in the catalog.
func (c *Catalog) Permissions(name string) []Capability {
	for _, r := range c.Roles {
		if r.Name != name {
			continue
		}
		caps := make([]Capability, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			if pc, err := ParseCapability(p); err == nil {
				caps = append(caps, pc)
			}
		}
		return caps
	}
	return nil
}

// NotGrantable returns the roles among names that the holder of g may not
// hand out. A role is grantable only when g covers every permission it
// carries. Names missing from the catalog are always returned.
func (c *Catalog) NotGrantable(g *Grants, names []string) []string {
	var out []string
	for _, name := range names {
		if !c.Has(name) || !g.CanAll(c.Permissions(name)) {
			out = append(out, name)
		}
	}
	return out
}

// Covers reports whether a catalog permission other than the full wildcard
// covers want. Route capabilities that only *:* could satisfy are
// misdeclarations.
func (c *Catalog) Covers(want Capability) bool {
	for _, r := range c.Roles {
		for _, p := range c.Permissions(r.Name) {
			if p.Entity == Wildcard && p.Action == Wildcard {
				continue
			}
			if p.Covers(want) {
				return true
			}
		}
	}
	return false
}
