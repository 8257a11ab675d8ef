package staff

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/auth"
	"github.com/surveyhos/surveyhos/internal/platform/db"
)

var (
	validate        = validator.New()
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9.@+_-]{1,150}$`)
)

type Service struct {
	staff StaffRepository
	tx    db.TxRunner
}

func NewService(repo StaffRepository, tx db.TxRunner) *Service {
	return &Service{staff: repo, tx: tx}
}

func validateStaff(s *Staff) error {
	fields := map[string]string{}
	if !usernamePattern.MatchString(s.Username) {
		fields["username"] = "must be 1-150 letters, digits or . @ + _ -"
	}
	if utf8.RuneCountInString(s.FullName) > 200 {
		fields["full_name"] = "must be at most 200 characters"
	}
	if s.Email != nil {
		if err := validate.Var(*s.Email, "email"); err != nil {
			fields["email"] = "must be a valid email address"
		}
	}
	if s.LineUserID != nil && utf8.RuneCountInString(*s.LineUserID) > 100 {
		fields["line_user_id"] = "must be at most 100 characters"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func normalize(s *Staff) {
	s.Username = strings.TrimSpace(s.Username)
	s.FullName = strings.TrimSpace(s.FullName)
	if s.Email != nil && strings.TrimSpace(*s.Email) == "" {
		s.Email = nil
	}
	if s.LineUserID != nil && strings.TrimSpace(*s.LineUserID) == "" {
		s.LineUserID = nil
	}
}

func (s *Service) CreateStaff(ctx context.Context, st *Staff) error {
	normalize(st)
	if err := validateStaff(st); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.staff.Create(ctx, st); err != nil {
			return err
		}
		if len(st.ManagedPointIDs) > 0 {
			return s.staff.SetManagedPoints(ctx, st.ID, st.ManagedPointIDs)
		}
		return nil
	})
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	st, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.ManagedPointIDs, err = s.staff.ManagedPoints(ctx, id); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) UpdateStaff(ctx context.Context, st *Staff) error {
	existing, err := s.staff.GetByID(ctx, st.ID)
	if err != nil {
		return err
	}
	st.Username = existing.Username
	normalize(st)
	if err := validateStaff(st); err != nil {
		return err
	}
	return s.staff.Update(ctx, st)
}

func (s *Service) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	if _, err := s.staff.GetByID(ctx, id); err != nil {
		return err
	}
	return s.staff.Delete(ctx, id)
}

func (s *Service) ListStaff(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	return s.staff.List(ctx, limit, offset)
}

// AssignPoints replaces the set of service points a staff member manages.
func (s *Service) AssignPoints(ctx context.Context, staffID uuid.UUID, pointIDs []uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.staff.GetByID(ctx, staffID); err != nil {
			return err
		}
		return s.staff.SetManagedPoints(ctx, staffID, dedupe(pointIDs))
	})
}

// ResolveActor maps an authenticated username onto its staff row. A token
// carrying the admin role is honoured even without a staff row so a fresh
// installation can be bootstrapped; such an actor has no inbox.
func (s *Service) ResolveActor(ctx context.Context, username string, roles []string) (*Actor, error) {
	tokenAdmin := auth.HasRole(roles, auth.RoleAdmin)

	st, err := s.staff.GetByUsername(ctx, username)
	if apperr.IsNotFound(err) {
		if tokenAdmin {
			return &Actor{Username: username, IsAdmin: true}, nil
		}
		return nil, &apperr.ForbiddenError{Reason: "unknown staff account"}
	}
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, &apperr.ForbiddenError{Reason: "staff account is disabled"}
	}

	actor := &Actor{UserID: st.ID, Username: st.Username, IsAdmin: st.IsAdmin || tokenAdmin}
	if !actor.IsAdmin {
		if actor.ManagedPointIDs, err = s.staff.ManagedPoints(ctx, st.ID); err != nil {
			return nil, err
		}
	}
	return actor, nil
}

func (s *Service) ManagersOfPoint(ctx context.Context, pointID uuid.UUID) ([]*Staff, error) {
	return s.staff.ListManagersOfPoint(ctx, pointID)
}

func (s *Service) Admins(ctx context.Context) ([]*Staff, error) {
	return s.staff.ListAdmins(ctx)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
