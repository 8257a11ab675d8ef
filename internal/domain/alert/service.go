package alert

import (
	"context"

	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
)

// Inbox is the recipient's view of their notifications.
type Inbox struct {
	notifications NotificationRepository
}

func NewInbox(repo NotificationRepository) *Inbox {
	return &Inbox{notifications: repo}
}

func recipientOf(actor *staff.Actor) (uuid.UUID, error) {
	if actor.UserID == uuid.Nil {
		return uuid.Nil, &apperr.ForbiddenError{Reason: "caller has no staff account"}
	}
	return actor.UserID, nil
}

// Unread returns the unread count and the most recent unread notifications.
func (s *Inbox) Unread(ctx context.Context, actor *staff.Actor) (*Unread, error) {
	id, err := recipientOf(actor)
	if err != nil {
		return nil, err
	}
	items, count, err := s.notifications.ListUnread(ctx, id, UnreadPreview)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Notification{}
	}
	return &Unread{Count: count, Items: items}, nil
}

func (s *Inbox) List(ctx context.Context, actor *staff.Actor, limit, offset int) ([]*Notification, int, error) {
	id, err := recipientOf(actor)
	if err != nil {
		return nil, 0, err
	}
	return s.notifications.ListByRecipient(ctx, id, limit, offset)
}

// MarkRead flips the read flag. Another recipient's notification looks
// missing.
func (s *Inbox) MarkRead(ctx context.Context, actor *staff.Actor, id uuid.UUID) (*Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != actor.UserID {
		return nil, apperr.NotFound("notification", id.String())
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.notifications.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}
