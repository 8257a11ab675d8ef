package servicepoint

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/auth"
	"github.com/surveyhos/surveyhos/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/service-groups", h.ListGroups)
	api.GET("/service-points", h.ListPoints)
	api.GET("/service-points/:id", h.GetPoint)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/service-groups", h.CreateGroup)
	admin.PUT("/service-groups/:id", h.UpdateGroup)
	admin.DELETE("/service-groups/:id", h.DeleteGroup)
	admin.POST("/service-points", h.CreatePoint)
	admin.PUT("/service-points/:id", h.UpdatePoint)
	admin.DELETE("/service-points/:id", h.DeletePoint)
}

type groupRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type pointRequest struct {
	Code    string     `json:"code" validate:"required,max=20"`
	Name    string     `json:"name" validate:"required,max=200"`
	GroupID *uuid.UUID `json:"group_id"`
}

func (r *pointRequest) toPoint() *ServicePoint {
	return &ServicePoint{Code: r.Code, Name: r.Name, GroupID: r.GroupID}
}

// -- Service Group --

func (h *Handler) CreateGroup(c echo.Context) error {
	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	g := &ServiceGroup{Name: req.Name}
	if err := h.svc.CreateGroup(c.Request().Context(), g); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) ListGroups(c echo.Context) error {
	items, err := h.svc.ListGroups(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateGroup(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	g := &ServiceGroup{ID: id, Name: req.Name}
	if err := h.svc.UpdateGroup(c.Request().Context(), g); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteGroup(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteGroup(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Service Point --

func (h *Handler) CreatePoint(c echo.Context) error {
	var req pointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	p := req.toPoint()
	if err := h.svc.CreatePoint(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPoint(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.PointFor(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPoints(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	f := PointFilter{Query: c.QueryParam("q")}
	if v := c.QueryParam("group_id"); v != "" {
		gid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid group_id")
		}
		f.GroupID = &gid
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPoints(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePoint(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req pointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	p := req.toPoint()
	p.ID = id
	if err := h.svc.UpdatePoint(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePoint(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeletePoint(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
