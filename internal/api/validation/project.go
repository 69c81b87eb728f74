package validation

import (
	"strings"

	"github.com/trackwise/trackwise/internal/rbac"
)

// CreateProjectRequest mirrors the fields needed for create project validation.
type CreateProjectRequest struct {
	Name string
}

// ValidateCreateProjectRequest validates a create project request.
func ValidateCreateProjectRequest(req CreateProjectRequest) []FieldError {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return []FieldError{{Field: "name", Message: "name is required"}}
	case len(name) > 255:
		return []FieldError{{Field: "name", Message: "name must be at most 255 characters"}}
	}
	return nil
}

// AddMemberRequest mirrors the add member body. Roles may be empty, in which
// case the default member roles apply.
type AddMemberRequest struct {
	UserID int64
	Roles  []string
}

// ValidateAddMemberRequest validates an add member request against the catalog.
func ValidateAddMemberRequest(req AddMemberRequest, catalog *rbac.Catalog) []FieldError {
	var errs []FieldError

	if req.UserID <= 0 {
		errs = append(errs, FieldError{Field: "userId", Message: "userId must be a positive integer"})
	}
	errs = append(errs, validateRoles(req.Roles, catalog)...)

	return errs
}

// ValidateRoles checks a replacement role set. An empty set is allowed.
func ValidateRoles(roles []string, catalog *rbac.Catalog) []FieldError {
	return validateRoles(roles, catalog)
}

func validateRoles(roles []string, catalog *rbac.Catalog) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		if seen[r] {
			errs = append(errs, FieldError{Field: "roles", Message: "role " + r + " is listed twice"})
		}
		seen[r] = true
	}
	for _, r := range catalog.Unknown(roles) {
		errs = append(errs, FieldError{Field: "roles", Message: "unknown role " + r})
	}

	return errs
}
