package servicepoint

import (
	"context"

	"github.com/google/uuid"
)

type GroupRepository interface {
	Create(ctx context.Context, g *ServiceGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceGroup, error)
	Update(ctx context.Context, g *ServiceGroup) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*ServiceGroup, error)
}

type PointRepository interface {
	Create(ctx context.Context, p *ServicePoint) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServicePoint, error)
	Update(ctx context.Context, p *ServicePoint) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f PointFilter, limit, offset int) ([]*ServicePoint, int, error)
}
