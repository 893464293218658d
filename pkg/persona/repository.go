package persona

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by repositories for unknown persona or template ids.
var ErrNotFound = errors.New("persona not found")

// Repository persists saved personas and serves the template catalogue.
// An empty ownerID scopes to personas saved without an owner.
type Repository interface {
	SavePersona(ctx context.Context, ownerID string, p Profile) (string, error)
	GetPersona(ctx context.Context, id string) (*Record, error)
	ListPersonas(ctx context.Context, ownerID string) ([]Record, error)
	UpdatePersona(ctx context.Context, id string, p Profile) error
	DeletePersona(ctx context.Context, id string) error
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
}
