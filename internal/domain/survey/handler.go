package survey

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

// RegisterRoutes mounts the back-office routes on api and the display route
// on the public kiosk group.
func (h *Handler) RegisterRoutes(api *echo.Group, kiosk *echo.Group) {
	api.GET("/surveys", h.ListSurveys)
	api.POST("/surveys", h.CreateSurvey)
	api.GET("/surveys/:id", h.GetSurvey)
	api.PUT("/surveys/:id", h.UpdateSurvey)
	api.PATCH("/surveys/:id/status", h.SetStatus)
	api.GET("/surveys/:id/questions", h.ListQuestions)
	api.POST("/surveys/:id/questions", h.AddQuestion)
	api.PUT("/questions/:id", h.UpdateQuestion)
	api.DELETE("/questions/:id", h.DeleteQuestion)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/surveys/:id", h.DeleteSurvey)

	kiosk.GET("/:pointID/survey", h.KioskSurvey)
}

type surveyRequest struct {
	TitleTH        string     `json:"title_th" validate:"required,max=255"`
	TitleEN        string     `json:"title_en" validate:"max=255"`
	DescriptionTH  string     `json:"description_th"`
	DescriptionEN  string     `json:"description_en"`
	ServicePointID *uuid.UUID `json:"service_point_id"`
	Status         *Status    `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE"`
}

func (r *surveyRequest) toEdit() SurveyEdit {
	return SurveyEdit{
		TitleTH:        r.TitleTH,
		TitleEN:        r.TitleEN,
		DescriptionTH:  r.DescriptionTH,
		DescriptionEN:  r.DescriptionEN,
		ServicePointID: r.ServicePointID,
		Status:         r.Status,
	}
}

type questionRequest struct {
	TextTH   string       `json:"text_th" validate:"required"`
	TextEN   string       `json:"text_en"`
	Type     QuestionType `json:"question_type" validate:"required,oneof=RATING_5 TEXTAREA TEXT_SHORT"`
	Order    int          `json:"order" validate:"min=0"`
	Required *bool        `json:"required"`
}

func (r *questionRequest) toQuestion() *Question {
	required := true
	if r.Required != nil {
		required = *r.Required
	}
	return &Question{TextTH: r.TextTH, TextEN: r.TextEN, Type: r.Type, Order: r.Order, Required: required}
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parseUUIDQuery(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// -- Surveys --

func (h *Handler) CreateSurvey(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	var req surveyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	sv, err := h.svc.CreateSurvey(c.Request().Context(), actor, req.toEdit())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, sv)
}

func (h *Handler) GetSurvey(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	sv, err := h.svc.SurveyFor(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sv)
}

func (h *Handler) ListSurveys(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	f := SurveyFilter{Query: c.QueryParam("q"), Status: Status(c.QueryParam("status"))}
	if f.Status != "" && !f.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if f.GroupID, err = parseUUIDQuery(c, "group_id"); err != nil {
		return err
	}
	if f.ServicePointID, err = parseUUIDQuery(c, "service_point_id"); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSurveys(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// UpdateSurvey takes the full form. A content change answers 201 with the new
// version; a status-only change answers 200 with the same survey.
func (h *Handler) UpdateSurvey(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req surveyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	sv, err := h.svc.UpdateSurvey(c.Request().Context(), actor, id, req.toEdit())
	if err != nil {
		return apperr.HTTPError(err)
	}
	if sv.ID != id {
		return c.JSON(http.StatusCreated, sv)
	}
	return c.JSON(http.StatusOK, sv)
}

func (h *Handler) SetStatus(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Status Status `json:"status" validate:"required,oneof=DRAFT ACTIVE"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	sv, err := h.svc.SetStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sv)
}

func (h *Handler) DeleteSurvey(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSurvey(c.Request().Context(), actor, id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Questions --

func (h *Handler) ListQuestions(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListQuestions(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddQuestion(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	q := req.toQuestion()
	if err := h.svc.AddQuestion(c.Request().Context(), actor, id, q); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) UpdateQuestion(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	q := req.toQuestion()
	q.ID = id
	if err := h.svc.UpdateQuestion(c.Request().Context(), actor, q); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) DeleteQuestion(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteQuestion(c.Request().Context(), actor, id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Kiosk --

// KioskSurvey returns the ACTIVE survey of a service point with its questions.
func (h *Handler) KioskSurvey(c echo.Context) error {
	pointID, err := parseUUIDParam(c, "pointID")
	if err != nil {
		return err
	}
	sv, err := h.svc.ActiveForPoint(c.Request().Context(), pointID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sv)
}
