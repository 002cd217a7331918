package owners

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/warrantyvault/backend/pkg/db/models"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
)

type stubOwnerRepo struct {
	calls int
	last  *models.User
	err   error
}

func (s *stubOwnerRepo) Ensure(_ context.Context, row *models.User) error {
	s.calls++
	s.last = row
	return s.err
}

func TestProvisionEnsuresRowOnce(t *testing.T) {
	repo := &stubOwnerRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	id := uuid.New()
	if err := svc.Provision(context.Background(), id, "owner@example.com"); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one repo call, got %d", repo.calls)
	}
	if repo.last.ID != id {
		t.Fatalf("expected row for %s, got %s", id, repo.last.ID)
	}
	if repo.last.Email == nil || *repo.last.Email != "owner@example.com" {
		t.Fatalf("email not carried, got %v", repo.last.Email)
	}

	if err := svc.Provision(context.Background(), id, "owner@example.com"); err != nil {
		t.Fatalf("Provision replay: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("known owner must not hit the database again, got %d calls", repo.calls)
	}
}

func TestProvisionEmptyEmailStaysNull(t *testing.T) {
	repo := &stubOwnerRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.Provision(context.Background(), uuid.New(), "  "); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if repo.last.Email != nil {
		t.Fatalf("blank email must stay null, got %q", *repo.last.Email)
	}
}

func TestProvisionFailureIsNotCached(t *testing.T) {
	repo := &stubOwnerRepo{err: errors.New("connection refused")}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	id := uuid.New()
	provisionErr := svc.Provision(context.Background(), id, "")
	typed := pkgerrors.As(provisionErr)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", provisionErr)
	}

	repo.err = nil
	if err := svc.Provision(context.Background(), id, ""); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("failed provision must be retried, got %d calls", repo.calls)
	}
}

func TestProvisionRejectsMissingIdentity(t *testing.T) {
	svc, err := NewService(&stubOwnerRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	typed := pkgerrors.As(svc.Provision(context.Background(), uuid.Nil, ""))
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", typed)
	}
}
