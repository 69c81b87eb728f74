package rbac

import (
	"context"
	"fmt"
	"log/slog"
)

// Seed inserts every catalog role that is missing by exact name, each in one
// unit with its permissions. Existing roles are never updated, so descriptions
// edited at runtime survive restarts. A failed role leaves nothing behind and
// is retried by the next run. Running Seed on an already seeded store changes
// nothing.
func Seed(ctx context.Context, store Store, catalog *Catalog) ([]string, error) {
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid role catalog: %w", err)
	}

	var created []string
	for _, def := range catalog.Roles {
		_, inserted, err := store.SeedRole(ctx, def.Name, def.Description, catalog.Permissions(def.Name))
		if err != nil {
			return created, fmt.Errorf("seeding role %q: %w", def.Name, err)
		}
		if inserted {
			created = append(created, def.Name)
		}
	}

	slog.Info("role catalog seeded", "created", len(created), "total", len(catalog.Roles))
	return created, nil
}
