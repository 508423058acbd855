package token

import (
	"fmt"

	"authserver/internal/oauth/models"
)

// Registry maps token types to their builder. Registration order is kept so
// issuance order is deterministic.
type Registry struct {
	builders map[models.TokenType]Builder
	order    []models.TokenType
}

func NewRegistry(builders ...Builder) (*Registry, error) {
	r := &Registry{builders: make(map[models.TokenType]Builder, len(builders))}
	for _, b := range builders {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds b under b.Name(). Registering the same type twice is an error.
func (r *Registry) Register(b Builder) error {
	if b == nil {
		return fmt.Errorf("builder is required")
	}
	name := b.Name()
	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("builder for %s already registered", name)
	}
	r.builders[name] = b
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(tokenType models.TokenType) (Builder, bool) {
	b, ok := r.builders[tokenType]
	return b, ok
}

// Types returns registered token types in registration order.
func (r *Registry) Types() []models.TokenType {
	return append([]models.TokenType(nil), r.order...)
}
