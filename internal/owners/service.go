package owners

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/warrantyvault/backend/pkg/db/models"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
)

type ownersRepository interface {
	Ensure(ctx context.Context, row *models.User) error
}

// Service guarantees an owner row exists for an authenticated identity.
// Tokens are minted by an external identity provider, so the first request
// a user makes is the first time this service hears about them; warranty
// rows reference users(id) and would otherwise fail their foreign key.
type Service interface {
	Provision(ctx context.Context, id uuid.UUID, email string) error
}

type service struct {
	repo ownersRepository

	// seen caches ids already ensured this process, so steady-state
	// requests skip the database round trip.
	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

// NewService builds an owner provisioning service.
func NewService(repo ownersRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("owner repository required")
	}
	return &service{
		repo: repo,
		seen: make(map[uuid.UUID]struct{}),
	}, nil
}

func (s *service) Provision(ctx context.Context, id uuid.UUID, email string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	s.mu.Lock()
	_, ok := s.seen[id]
	s.mu.Unlock()
	if ok {
		return nil
	}

	row := &models.User{ID: id, IsActive: true}
	if trimmed := strings.TrimSpace(email); trimmed != "" {
		row.Email = &trimmed
	}
	if err := s.repo.Ensure(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision owner")
	}

	s.mu.Lock()
	s.seen[id] = struct{}{}
	s.mu.Unlock()
	return nil
}
