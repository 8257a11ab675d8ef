package staff

import (
	"time"

	"github.com/google/uuid"
)

// Staff is a back-office user: an administrator, or a manager of one or more
// service points.
type Staff struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	Username        string      `db:"username" json:"username"`
	FullName        string      `db:"full_name" json:"full_name"`
	Email           *string     `db:"email" json:"email,omitempty"`
	IsAdmin         bool        `db:"is_admin" json:"is_admin"`
	LineUserID      *string     `db:"line_user_id" json:"line_user_id,omitempty"`
	IsActive        bool        `db:"is_active" json:"is_active"`
	ManagedPointIDs []uuid.UUID `json:"managed_point_ids,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// DisplayName falls back to the username when no full name is set.
func (s *Staff) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.Username
}

// Actor is the authenticated caller of a back-office operation.
type Actor struct {
	UserID          uuid.UUID   `json:"user_id"`
	Username        string      `json:"username"`
	IsAdmin         bool        `json:"is_admin"`
	ManagedPointIDs []uuid.UUID `json:"managed_point_ids"`
}

// CanAccessPoint reports whether the actor may see data of pointID. Data not
// bound to any point is visible to admins only.
func (a *Actor) CanAccessPoint(pointID *uuid.UUID) bool {
	if a.IsAdmin {
		return true
	}
	if pointID == nil {
		return false
	}
	for _, id := range a.ManagedPointIDs {
		if id == *pointID {
			return true
		}
	}
	return false
}

// PointScope returns the service points the actor is restricted to, or nil
// when unrestricted. A manager without points gets an empty, non-nil scope.
func (a *Actor) PointScope() []uuid.UUID {
	if a.IsAdmin {
		return nil
	}
	out := make([]uuid.UUID, len(a.ManagedPointIDs))
	copy(out, a.ManagedPointIDs)
	return out
}

// UserRef is the actor's staff id for created_by columns, nil when the caller
// has no staff row.
func (a *Actor) UserRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
