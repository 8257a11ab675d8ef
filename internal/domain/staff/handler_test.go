package staff

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surveyhos/surveyhos/internal/platform/auth"
	"github.com/surveyhos/surveyhos/internal/platform/middleware"
)

func newTestHandler() (*Handler, *echo.Echo, *mockStaffRepo) {
	svc, repo := newTestService()
	e := echo.New()
	e.Validator = middleware.NewRequestValidator()
	return NewHandler(svc), e, repo
}

func TestCreateStaffHandler(t *testing.T) {
	h, e, _ := newTestHandler()
	body := `{"username":"mgr.opd","full_name":"OPD Manager","email":"opd@hospital.example","line_user_id":"U42"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateStaff(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Staff
	json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.IsActive {
		t.Error("expected new staff to default to active")
	}
}

func TestCreateStaffHandler_InvalidEmail(t *testing.T) {
	h, e, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"x","email":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateStaff(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestGetStaffHandler_NotFound(t *testing.T) {
	h, e, _ := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetStaff(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestAssignPointsHandler(t *testing.T) {
	h, e, repo := newTestHandler()
	st := &Staff{Username: "mgr", IsActive: true}
	h.svc.CreateStaff(context.Background(), st)
	p := uuid.New()
	repo.knownPts[p] = true

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"service_point_ids":["`+p.String()+`"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(st.ID.String())

	if err := h.AssignPoints(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Staff
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got.ManagedPointIDs) != 1 || got.ManagedPointIDs[0] != p {
		t.Errorf("unexpected managed points: %v", got.ManagedPointIDs)
	}
}

func TestActorMiddleware(t *testing.T) {
	h, e, _ := newTestHandler()
	h.svc.CreateStaff(context.Background(), &Staff{Username: "mgr", IsActive: true})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(auth.WithUser(context.Background(), "mgr", []string{auth.RoleManager}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := ActorMiddleware(h.svc)(h.Me)(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var actor Actor
	json.Unmarshal(rec.Body.Bytes(), &actor)
	if actor.Username != "mgr" || actor.IsAdmin {
		t.Errorf("unexpected actor: %+v", actor)
	}
}

func TestActorMiddleware_Unauthenticated(t *testing.T) {
	h, e, _ := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/me", nil), httptest.NewRecorder())

	err := ActorMiddleware(h.svc)(h.Me)(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestActorFrom_Missing(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, err := ActorFrom(c); err == nil {
		t.Error("expected error without actor")
	}
	WithActor(c, &Actor{Username: "x"})
	if a, err := ActorFrom(c); err != nil || a.Username != "x" {
		t.Errorf("expected actor x, got %v %v", a, err)
	}
}
