package alert

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/db"
	"github.com/surveyhos/surveyhos/internal/platform/websocket"
)

// EventNotificationCreated is the live feed event carrying a new Notification.
const EventNotificationCreated = "notification.created"

// StreamTopic is the live feed topic of one recipient. Tenants share the hub,
// so the tenant is part of the topic.
func StreamTopic(tenantID string, recipientID uuid.UUID) string {
	if tenantID == "" {
		tenantID = "default"
	}
	return tenantID + "/" + recipientID.String()
}

// StreamTopicOf resolves the caller's own topic. Callers without a staff
// account have no inbox and cannot connect.
func StreamTopicOf(c echo.Context) (string, error) {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return "", err
	}
	id, err := recipientOf(actor)
	if err != nil {
		return "", apperr.HTTPError(err)
	}
	return StreamTopic(db.TenantFromContext(c.Request().Context()), id), nil
}

// RegisterStream mounts the live notification feed.
func (h *Handler) RegisterStream(api *echo.Group, stream *websocket.Handler) {
	api.GET("/notifications/stream", stream.Connect)
}
