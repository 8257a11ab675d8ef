package staff

import (
	"context"

	"github.com/google/uuid"
)

type StaffRepository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	GetByUsername(ctx context.Context, username string) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Staff, int, error)
	// Manager assignment
	ManagedPoints(ctx context.Context, staffID uuid.UUID) ([]uuid.UUID, error)
	SetManagedPoints(ctx context.Context, staffID uuid.UUID, pointIDs []uuid.UUID) error
	// Alert recipients, active accounts only
	ListManagersOfPoint(ctx context.Context, pointID uuid.UUID) ([]*Staff, error)
	ListAdmins(ctx context.Context) ([]*Staff, error)
}
