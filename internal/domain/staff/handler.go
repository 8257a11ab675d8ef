package staff

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/auth"
	"github.com/surveyhos/surveyhos/pkg/pagination"
)

const actorKey = "actor"

// ActorMiddleware resolves the authenticated username into an Actor and
// stores it on the echo context for the domain handlers.
func ActorMiddleware(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			username := auth.UserIDFromContext(ctx)
			if username == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			actor, err := svc.ResolveActor(ctx, username, auth.RolesFromContext(ctx))
			if err != nil {
				return apperr.HTTPError(err)
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// WithActor stores actor on c. Used by tests and by ActorMiddleware.
func WithActor(c echo.Context, actor *Actor) {
	c.Set(actorKey, actor)
}

// ActorFrom returns the resolved caller or a 401 when the request bypassed
// ActorMiddleware.
func ActorFrom(c echo.Context) (*Actor, error) {
	actor, ok := c.Get(actorKey).(*Actor)
	if !ok || actor == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return actor, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/staff", h.ListStaff)
	admin.POST("/staff", h.CreateStaff)
	admin.GET("/staff/:id", h.GetStaff)
	admin.PUT("/staff/:id", h.UpdateStaff)
	admin.DELETE("/staff/:id", h.DeleteStaff)
	admin.PUT("/staff/:id/service-points", h.AssignPoints)
}

type staffRequest struct {
	Username        string      `json:"username" validate:"required,max=150"`
	FullName        string      `json:"full_name" validate:"max=200"`
	Email           *string     `json:"email" validate:"omitempty,email"`
	IsAdmin         bool        `json:"is_admin"`
	LineUserID      *string     `json:"line_user_id" validate:"omitempty,max=100"`
	IsActive        *bool       `json:"is_active"`
	ManagedPointIDs []uuid.UUID `json:"managed_point_ids"`
}

func (r *staffRequest) toStaff() *Staff {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &Staff{
		Username:        r.Username,
		FullName:        r.FullName,
		Email:           r.Email,
		IsAdmin:         r.IsAdmin,
		LineUserID:      r.LineUserID,
		IsActive:        active,
		ManagedPointIDs: r.ManagedPointIDs,
	}
}

func (h *Handler) Me(c echo.Context) error {
	actor, err := ActorFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, actor)
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var req staffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	st := req.toStaff()
	if err := h.svc.CreateStaff(c.Request().Context(), st); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetStaff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.GetStaff(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListStaff(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListStaff(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req staffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st := req.toStaff()
	st.ID = id
	if err := h.svc.UpdateStaff(c.Request().Context(), st); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStaff(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteStaff(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AssignPoints(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		ServicePointIDs []uuid.UUID `json:"service_point_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AssignPoints(c.Request().Context(), id, req.ServicePointIDs); err != nil {
		return apperr.HTTPError(err)
	}
	st, err := h.svc.GetStaff(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}
