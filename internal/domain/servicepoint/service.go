package servicepoint

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,20}$`)

type Service struct {
	groups GroupRepository
	points PointRepository
}

func NewService(groups GroupRepository, points PointRepository) *Service {
	return &Service{groups: groups, points: points}
}

// -- Service Group --

func (s *Service) CreateGroup(ctx context.Context, g *ServiceGroup) error {
	g.Name = strings.TrimSpace(g.Name)
	if err := validateGroup(g); err != nil {
		return err
	}
	return s.groups.Create(ctx, g)
}

func (s *Service) GetGroup(ctx context.Context, id uuid.UUID) (*ServiceGroup, error) {
	return s.groups.GetByID(ctx, id)
}

func (s *Service) UpdateGroup(ctx context.Context, g *ServiceGroup) error {
	g.Name = strings.TrimSpace(g.Name)
	if err := validateGroup(g); err != nil {
		return err
	}
	return s.groups.Update(ctx, g)
}

func (s *Service) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if _, err := s.groups.GetByID(ctx, id); err != nil {
		return err
	}
	return s.groups.Delete(ctx, id)
}

func (s *Service) ListGroups(ctx context.Context) ([]*ServiceGroup, error) {
	return s.groups.List(ctx)
}

func validateGroup(g *ServiceGroup) error {
	if g.Name == "" {
		return apperr.Invalid("name", "is required")
	}
	if utf8.RuneCountInString(g.Name) > 100 {
		return apperr.Invalid("name", "must be at most 100 characters")
	}
	return nil
}

// -- Service Point --

func (s *Service) CreatePoint(ctx context.Context, p *ServicePoint) error {
	normalizePoint(p)
	if err := validatePoint(p); err != nil {
		return err
	}
	return s.points.Create(ctx, p)
}

// GetPoint loads a point without permission checks. Used by the kiosk and the
// alert pipeline.
func (s *Service) GetPoint(ctx context.Context, id uuid.UUID) (*ServicePoint, error) {
	return s.points.GetByID(ctx, id)
}

// PointFor loads a point on behalf of actor. Points outside the actor's scope
// are reported as not found.
func (s *Service) PointFor(ctx context.Context, actor *staff.Actor, id uuid.UUID) (*ServicePoint, error) {
	if !actor.CanAccessPoint(&id) {
		return nil, apperr.NotFound("service point", id.String())
	}
	return s.points.GetByID(ctx, id)
}

func (s *Service) UpdatePoint(ctx context.Context, p *ServicePoint) error {
	normalizePoint(p)
	if err := validatePoint(p); err != nil {
		return err
	}
	return s.points.Update(ctx, p)
}

// DeletePoint removes a point. Surveys and responses bound to it keep their
// history with a null point reference.
func (s *Service) DeletePoint(ctx context.Context, id uuid.UUID) error {
	if _, err := s.points.GetByID(ctx, id); err != nil {
		return err
	}
	return s.points.Delete(ctx, id)
}

func (s *Service) ListPoints(ctx context.Context, actor *staff.Actor, f PointFilter, limit, offset int) ([]*ServicePoint, int, error) {
	f.Scope = actor.PointScope()
	return s.points.List(ctx, f, limit, offset)
}

func normalizePoint(p *ServicePoint) {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	p.Name = strings.TrimSpace(p.Name)
}

func validatePoint(p *ServicePoint) error {
	fields := map[string]string{}
	if !codePattern.MatchString(p.Code) {
		fields["code"] = "must be 1-20 letters, digits, _ or -"
	}
	if p.Name == "" {
		fields["name"] = "is required"
	} else if utf8.RuneCountInString(p.Name) > 200 {
		fields["name"] = "must be at most 200 characters"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}
