package alert

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app alert addressed to one staff member. Only the
// read flag changes after creation.
type Notification struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RecipientID uuid.UUID  `db:"recipient_id" json:"recipient_id"`
	ResponseID  *uuid.UUID `db:"response_id" json:"response_id,omitempty"`
	Title       string     `db:"title" json:"title"`
	Message     string     `db:"message" json:"message"`
	Link        string     `db:"link" json:"link,omitempty"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Unread is the badge summary shown in the back-office header.
type Unread struct {
	Count int             `json:"count"`
	Items []*Notification `json:"items"`
}

// UnreadPreview is how many unread notifications the summary lists.
const UnreadPreview = 5
