package response

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/export"
	"github.com/surveyhos/surveyhos/pkg/pagination"
)

// SubmitHook runs after a response is durably recorded. It must not fail the
// submission.
type SubmitHook interface {
	AfterSubmit(ctx context.Context, r *Response)
}

// Archiver stores a rendered export file and returns its location.
type Archiver interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type Handler struct {
	rec      *Recorder
	svc      *Service
	hook     SubmitHook
	archiver Archiver
}

// NewHandler wires the kiosk and back-office response routes. hook and
// archiver may be nil.
func NewHandler(rec *Recorder, svc *Service, hook SubmitHook, archiver Archiver) *Handler {
	return &Handler{rec: rec, svc: svc, hook: hook, archiver: archiver}
}

func (h *Handler) RegisterRoutes(api *echo.Group, kiosk *echo.Group, submitMW ...echo.MiddlewareFunc) {
	kiosk.POST("/submit", h.Submit, submitMW...)

	api.GET("/responses", h.Results)
	api.GET("/responses/:id", h.GetResponse)
	api.GET("/suggestions", h.Suggestions)
	api.GET("/dashboard", h.Dashboard)
	api.GET("/export", h.Export)
	api.POST("/export/archive", h.Archive)
}

type submitRequest struct {
	SurveyID         uuid.UUID         `json:"survey_id" validate:"required"`
	ServicePointID   uuid.UUID         `json:"service_point_id" validate:"required"`
	PatientType      PatientType       `json:"patient_type" validate:"omitempty,oneof=NEW EXISTING"`
	RespondentRole   RespondentRole    `json:"respondent_role" validate:"omitempty,oneof=PATIENT RELATIVE"`
	BenefitPlan      BenefitPlan       `json:"benefit_plan" validate:"omitempty,oneof=UC SOCIAL_SECURITY GOVERNMENT SELF_PAY OTHER"`
	BenefitPlanOther string            `json:"benefit_plan_other" validate:"max=255"`
	AgeRange         AgeRange          `json:"age_range" validate:"omitempty,oneof=UNDER_15 15_25 26_40 41_60 OVER_60"`
	Gender           Gender            `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER NOT_SPECIFIED"`
	PDPAAccepted     bool              `json:"pdpa_accepted"`
	StartedAt        *time.Time        `json:"started_at"`
	Answers          map[string]string `json:"answers"`
}

// Submit records a kiosk submission. Once the response is stored the request
// succeeds whatever happens in the alert pipeline.
func (h *Handler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTPError(err)
	}
	ctx := c.Request().Context()
	resp, err := h.rec.Submit(ctx, Submission{
		SurveyID:       req.SurveyID,
		ServicePointID: req.ServicePointID,
		Demographics: Demographics{
			PatientType:      req.PatientType,
			RespondentRole:   req.RespondentRole,
			BenefitPlan:      req.BenefitPlan,
			BenefitPlanOther: req.BenefitPlanOther,
			AgeRange:         req.AgeRange,
			Gender:           req.Gender,
			PDPAAccepted:     req.PDPAAccepted,
		},
		Answers:   req.Answers,
		StartedAt: req.StartedAt,
		ClientIP:  c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	if h.hook != nil {
		h.hook.AfterSubmit(context.WithoutCancel(ctx), resp)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":           resp.ID,
		"submitted_at": resp.SubmittedAt,
	})
}

func (h *Handler) GetResponse(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rs, err := h.svc.ResponseFor(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rs)
}

func (h *Handler) Results(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	f, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	rf := ResultFilter{Filter: f}
	if v := c.QueryParam("score"); v != "" {
		if rf.Score, err = ParseScoreRange(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Results(c.Request().Context(), actor, rf, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Suggestions(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	f, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Suggestions(c.Request().Context(), actor,
		SuggestionFilter{Filter: f, Query: c.QueryParam("q")}, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Dashboard(c echo.Context) error {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return err
	}
	f, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), actor, f)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// Export streams the answers of a date range as CSV or XLSX.
func (h *Handler) Export(c echo.Context) error {
	name, format, data, err := h.render(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, format.ContentType(), data)
}

// Archive renders the same file as Export and stores it in the archive.
func (h *Handler) Archive(c echo.Context) error {
	if h.archiver == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "export archive is not configured")
	}
	name, format, data, err := h.render(c)
	if err != nil {
		return err
	}
	loc, err := h.archiver.Put(c.Request().Context(), name, format.ContentType(), data)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"location": loc, "file": name})
}

func (h *Handler) render(c echo.Context) (string, export.Format, []byte, error) {
	actor, err := staff.ActorFrom(c)
	if err != nil {
		return "", "", nil, err
	}
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.parseFilter(c)
	if err != nil {
		return "", "", nil, err
	}
	from, to := h.svc.CurrentWeek()
	if f.From != nil && f.To != nil {
		from, to = *f.From, *f.To
	}
	table, err := h.svc.ExportTable(c.Request().Context(), actor, from, to)
	if err != nil {
		return "", "", nil, apperr.HTTPError(err)
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, table); err != nil {
		return "", "", nil, apperr.HTTPError(err)
	}
	return format.FileName(from, to.AddDate(0, 0, -1)), format, buf.Bytes(), nil
}

// parseFilter reads group_id, point_id, survey_id and the inclusive from/to
// days (YYYY-MM-DD).
func (h *Handler) parseFilter(c echo.Context) (Filter, error) {
	var f Filter
	for name, dst := range map[string]**uuid.UUID{
		"group_id":  &f.GroupID,
		"point_id":  &f.ServicePointID,
		"survey_id": &f.SurveyID,
	} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
		}
		*dst = &id
	}

	loc := h.svc.Location()
	if v := c.QueryParam("from"); v != "" {
		from, err := ParseDay(v, loc)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		f.From = &from
	}
	if v := c.QueryParam("to"); v != "" {
		to, err := ParseDay(v, loc)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		to = to.AddDate(0, 0, 1)
		f.To = &to
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, echo.NewHTTPError(http.StatusBadRequest, "from must not be after to")
	}
	return f, nil
}
