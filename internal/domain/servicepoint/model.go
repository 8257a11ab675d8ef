package servicepoint

import (
	"time"

	"github.com/google/uuid"
)

type ServiceGroup struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ServicePoint is a physical location where surveys are collected.
type ServicePoint struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	Name      string     `db:"name" json:"name"`
	GroupID   *uuid.UUID `db:"group_id" json:"group_id,omitempty"`
	GroupName *string    `db:"group_name" json:"group_name,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Label is "CODE - Name", used in alert texts and exports.
func (p *ServicePoint) Label() string {
	return p.Code + " - " + p.Name
}

// PointFilter narrows a point listing. Scope nil means unrestricted.
type PointFilter struct {
	GroupID *uuid.UUID
	Query   string
	Scope   []uuid.UUID
}
