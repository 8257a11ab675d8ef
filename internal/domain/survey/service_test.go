package survey

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
)

// -- Mock Store --

// mockStore backs both repositories so that mockTx can roll them back
// together.
type mockStore struct {
	surveys    map[uuid.UUID]Survey
	questions  map[uuid.UUID]Question
	answered   map[uuid.UUID]bool
	pointNames map[uuid.UUID]string

	failQuestionCreate bool
	skipPrecheck       bool
}

func newMockStore() *mockStore {
	return &mockStore{
		surveys:    make(map[uuid.UUID]Survey),
		questions:  make(map[uuid.UUID]Question),
		answered:   make(map[uuid.UUID]bool),
		pointNames: make(map[uuid.UUID]string),
	}
}

func (m *mockStore) addPoint(name string) uuid.UUID {
	id := uuid.New()
	m.pointNames[id] = name
	return id
}

func (m *mockStore) activeCount(pointID uuid.UUID) int {
	n := 0
	for _, s := range m.surveys {
		if s.Status == StatusActive && s.ServicePointID != nil && *s.ServicePointID == pointID {
			n++
		}
	}
	return n
}

func (m *mockStore) violatesActive(id uuid.UUID, status Status, pointID *uuid.UUID) bool {
	if status != StatusActive || pointID == nil {
		return false
	}
	for sid, s := range m.surveys {
		if sid != id && s.Status == StatusActive && s.ServicePointID != nil && *s.ServicePointID == *pointID {
			return true
		}
	}
	return false
}

type mockTx struct{ store *mockStore }

func (t mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	surveys := make(map[uuid.UUID]Survey, len(t.store.surveys))
	for k, v := range t.store.surveys {
		surveys[k] = v
	}
	questions := make(map[uuid.UUID]Question, len(t.store.questions))
	for k, v := range t.store.questions {
		questions[k] = v
	}
	if err := fn(ctx); err != nil {
		t.store.surveys = surveys
		t.store.questions = questions
		return err
	}
	return nil
}

type mockSurveyRepo struct{ *mockStore }

func (m mockSurveyRepo) Create(_ context.Context, s *Survey) error {
	if s.ServicePointID != nil {
		if _, ok := m.pointNames[*s.ServicePointID]; !ok {
			return apperr.Invalid("service_point_id", "unknown service point")
		}
	}
	s.ID = uuid.New()
	if m.violatesActive(s.ID, s.Status, s.ServicePointID) {
		return &apperr.ConflictError{}
	}
	m.surveys[s.ID] = *s
	return nil
}

func (m mockSurveyRepo) GetByID(_ context.Context, id uuid.UUID) (*Survey, error) {
	s, ok := m.surveys[id]
	if !ok {
		return nil, apperr.NotFound("survey", id.String())
	}
	if s.ServicePointID != nil {
		name := m.pointNames[*s.ServicePointID]
		s.ServicePointName = &name
	}
	return &s, nil
}

func (m mockSurveyRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	s, ok := m.surveys[id]
	if !ok {
		return apperr.NotFound("survey", id.String())
	}
	if m.violatesActive(id, status, s.ServicePointID) {
		return &apperr.ConflictError{}
	}
	s.Status = status
	m.surveys[id] = s
	return nil
}

func (m mockSurveyRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.surveys, id)
	for qid, q := range m.questions {
		if q.SurveyID == id {
			delete(m.questions, qid)
		}
	}
	return nil
}

func (m mockSurveyRepo) List(_ context.Context, f SurveyFilter, limit, offset int) ([]*Survey, int, error) {
	var r []*Survey
	for _, s := range m.surveys {
		s := s
		if f.Scope != nil {
			in := false
			for _, p := range f.Scope {
				if s.ServicePointID != nil && *s.ServicePointID == p {
					in = true
				}
			}
			if !in {
				continue
			}
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		r = append(r, &s)
	}
	return r, len(r), nil
}

func (m mockSurveyRepo) FindActiveByServicePoint(ctx context.Context, pointID uuid.UUID, excludeID *uuid.UUID) (*Survey, error) {
	if m.skipPrecheck {
		return nil, nil
	}
	for id, s := range m.surveys {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if s.Status == StatusActive && s.ServicePointID != nil && *s.ServicePointID == pointID {
			return m.GetByID(ctx, id)
		}
	}
	return nil, nil
}

func (m mockSurveyRepo) LockServicePoint(_ context.Context, pointID uuid.UUID) (string, error) {
	name, ok := m.pointNames[pointID]
	if !ok {
		return "", apperr.Invalid("service_point_id", "unknown service point")
	}
	return name, nil
}

type mockQuestionRepo struct{ *mockStore }

func (m mockQuestionRepo) Create(_ context.Context, q *Question) error {
	if m.failQuestionCreate {
		return errors.New("connection reset")
	}
	if _, ok := m.surveys[q.SurveyID]; !ok {
		return apperr.NotFound("survey", q.SurveyID.String())
	}
	q.ID = uuid.New()
	m.questions[q.ID] = *q
	return nil
}

func (m mockQuestionRepo) GetByID(_ context.Context, id uuid.UUID) (*Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, apperr.NotFound("question", id.String())
	}
	return &q, nil
}

func (m mockQuestionRepo) Update(_ context.Context, q *Question) error {
	if _, ok := m.questions[q.ID]; !ok {
		return apperr.NotFound("question", q.ID.String())
	}
	m.questions[q.ID] = *q
	return nil
}

func (m mockQuestionRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.questions, id)
	return nil
}

func (m mockQuestionRepo) ListBySurvey(_ context.Context, surveyID uuid.UUID) ([]*Question, error) {
	var r []*Question
	for _, q := range m.questions {
		q := q
		if q.SurveyID == surveyID {
			r = append(r, &q)
		}
	}
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j].Order < r[j-1].Order; j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
	return r, nil
}

func (m mockQuestionRepo) CountBySurvey(ctx context.Context, surveyID uuid.UUID) (int, error) {
	qs, _ := m.ListBySurvey(ctx, surveyID)
	return len(qs), nil
}

func (m mockQuestionRepo) HasAnswers(_ context.Context, questionID uuid.UUID) (bool, error) {
	return m.answered[questionID], nil
}

func newTestService() (*Service, *mockStore) {
	store := newMockStore()
	return NewService(mockSurveyRepo{store}, mockQuestionRepo{store}, mockTx{store}), store
}

var admin = &staff.Actor{UserID: uuid.New(), Username: "admin", IsAdmin: true}

func statusPtr(s Status) *Status { return &s }

func seedSurvey(t *testing.T, svc *Service, point uuid.UUID, status Status) *Survey {
	t.Helper()
	p := point
	sv, err := svc.CreateSurvey(context.Background(), admin, SurveyEdit{
		TitleTH:        "แบบประเมิน",
		TitleEN:        "Satisfaction",
		ServicePointID: &p,
		Status:         statusPtr(status),
	})
	if err != nil {
		t.Fatalf("seed survey: %v", err)
	}
	return sv
}

func seedQuestions(t *testing.T, svc *Service, surveyID uuid.UUID) {
	t.Helper()
	for _, q := range []*Question{
		{TextTH: "ความพึงพอใจ", Type: TypeRating, Required: true},
		{TextTH: "ข้อเสนอแนะ", Type: TypeTextarea},
	} {
		if err := svc.AddQuestion(context.Background(), admin, surveyID, q); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
}

// -- Tests --

func TestNextVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1.0", "2.0"},
		{"2.5", "3.0"},
		{"9", "10.0"},
		{" 3.0 ", "4.0"},
		{"v1", "1.0"},
		{"", "1.0"},
		{"NaN", "1.0"},
		{"-2", "1.0"},
		{"1e19", "1.0"},
		{"9223372036854775807", "1.0"},
		{"1e15", "1000000000000001.0"},
	}
	for _, tt := range tests {
		if got := NextVersion(tt.in); got != tt.want {
			t.Errorf("NextVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuestionType_Kind(t *testing.T) {
	if TypeRating.Kind() != KindRating {
		t.Error("RATING_5 must be a rating")
	}
	if TypeTextarea.Kind() != KindText || TypeTextShort.Kind() != KindText {
		t.Error("text types must be text")
	}
	if QuestionType("CHECKBOX").Kind() != KindInvalid {
		t.Error("unknown type must be invalid")
	}
}

func TestCreateSurvey_Defaults(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	sv, err := svc.CreateSurvey(context.Background(), admin, SurveyEdit{TitleTH: "  แบบสอบถาม ", ServicePointID: &p})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sv.Status != StatusDraft || sv.Version != "1.0" {
		t.Errorf("expected DRAFT 1.0, got %s %s", sv.Status, sv.Version)
	}
	if sv.TitleTH != "แบบสอบถาม" {
		t.Errorf("expected trimmed title, got %q", sv.TitleTH)
	}
	if sv.CreatedBy == nil || *sv.CreatedBy != admin.UserID {
		t.Error("expected created_by to be the actor")
	}
}

func TestCreateSurvey_Validation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateSurvey(context.Background(), admin, SurveyEdit{TitleTH: " ", Status: statusPtr("LIVE")})
	ve, ok := err.(*apperr.ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields["title_th"] == "" || ve.Fields["status"] == "" {
		t.Errorf("expected title_th and status messages, got %v", ve.Fields)
	}
}

func TestCreateSurvey_TitleLengthCountsCharacters(t *testing.T) {
	svc, _ := newTestService()
	title := strings.Repeat("ก", 255)
	sv, err := svc.CreateSurvey(context.Background(), admin, SurveyEdit{TitleTH: title, TitleEN: strings.Repeat("a", 255)})
	if err != nil {
		t.Fatalf("255 Thai characters must be accepted: %v", err)
	}
	if sv.TitleTH != title {
		t.Error("title must be stored unchanged")
	}

	_, err = svc.CreateSurvey(context.Background(), admin, SurveyEdit{TitleTH: title + "ข"})
	ve, ok := err.(*apperr.ValidationError)
	if !ok || ve.Fields["title_th"] == "" {
		t.Fatalf("expected title_th length error, got %v", err)
	}
}

func TestCreateSurvey_ActiveConflict(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	seedSurvey(t, svc, p, StatusActive)

	_, err := svc.CreateSurvey(context.Background(), admin, SurveyEdit{TitleTH: "B", ServicePointID: &p, Status: statusPtr(StatusActive)})
	var ce *apperr.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.ServicePointName != "LAB-01" {
		t.Errorf("expected conflict to name LAB-01, got %q", ce.ServicePointName)
	}
	if len(store.surveys) != 1 {
		t.Errorf("expected no new row, got %d surveys", len(store.surveys))
	}
}

func TestCreateSurvey_ManagerOutsideScope(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	mgr := &staff.Actor{UserID: uuid.New(), ManagedPointIDs: []uuid.UUID{uuid.New()}}

	_, err := svc.CreateSurvey(context.Background(), mgr, SurveyEdit{TitleTH: "A", ServicePointID: &p})
	if apperr.HTTPStatus(err) != 403 {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

// Activate a draft: status-only, same row, version unchanged.
func TestSetStatus_Activate(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusDraft)

	got, err := svc.SetStatus(context.Background(), admin, a.ID, StatusActive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != a.ID || got.Status != StatusActive || got.Version != "1.0" {
		t.Errorf("expected A active at 1.0, got %+v", got)
	}
	if len(store.surveys) != 1 {
		t.Errorf("status change must not fork, got %d surveys", len(store.surveys))
	}
}

// A second survey on the same point cannot become active.
func TestSetStatus_Conflict(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusActive)
	b := seedSurvey(t, svc, p, StatusDraft)

	_, err := svc.SetStatus(context.Background(), admin, b.ID, StatusActive)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.surveys[a.ID].Status != StatusActive || store.surveys[b.ID].Status != StatusDraft {
		t.Error("expected A to stay ACTIVE and B to stay DRAFT")
	}
}

// The unique index catches a writer that passed the pre-check concurrently.
func TestSetStatus_IndexConflictNamesPoint(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	seedSurvey(t, svc, p, StatusActive)
	b := seedSurvey(t, svc, p, StatusDraft)
	store.skipPrecheck = true

	_, err := svc.SetStatus(context.Background(), admin, b.ID, StatusActive)
	var ce *apperr.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.ServicePointID != p.String() || ce.ServicePointName != "LAB-01" {
		t.Errorf("expected conflict enriched with point, got %+v", ce)
	}
	if store.activeCount(p) != 1 {
		t.Errorf("expected exactly one active survey, got %d", store.activeCount(p))
	}
}

func TestSaveSurvey_NoChangeIsNoop(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusActive)

	edit := EditOf(a)
	got, err := svc.SaveSurvey(context.Background(), admin, a, edit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != a.ID || len(store.surveys) != 1 {
		t.Error("unchanged form must not write")
	}

	edit.Status = statusPtr(StatusActive)
	if _, err := svc.SaveSurvey(context.Background(), admin, a, edit); err != nil || len(store.surveys) != 1 {
		t.Errorf("same status must not write, err=%v", err)
	}
}

// Title edit without a status change forks a DRAFT "2.0" and leaves A active.
func TestSaveSurvey_ContentEditForksDraft(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusActive)
	seedQuestions(t, svc, a.ID)
	before, _ := mockQuestionRepo{store}.ListBySurvey(context.Background(), a.ID)

	edit := EditOf(a)
	edit.TitleEN = "Satisfaction (revised)"
	next, err := svc.SaveSurvey(context.Background(), admin, a, edit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.ID == a.ID {
		t.Fatal("content edit must create a new row")
	}
	if next.Version != "2.0" || next.Status != StatusDraft {
		t.Errorf("expected DRAFT 2.0, got %s %s", next.Status, next.Version)
	}
	if store.surveys[a.ID].Status != StatusActive || store.surveys[a.ID].TitleEN != "Satisfaction" {
		t.Error("original must be untouched")
	}

	copies, _ := mockQuestionRepo{store}.ListBySurvey(context.Background(), next.ID)
	if len(copies) != 2 || next.QuestionCount != 2 {
		t.Fatalf("expected 2 copied questions, got %d", len(copies))
	}
	for i, q := range copies {
		if q.ID == before[i].ID || q.TextTH != before[i].TextTH || q.Type != before[i].Type ||
			q.Order != before[i].Order || q.Required != before[i].Required {
			t.Errorf("question %d not deep-copied: %+v vs %+v", i, q, before[i])
		}
	}
	after, _ := mockQuestionRepo{store}.ListBySurvey(context.Background(), a.ID)
	for i := range before {
		if *after[i] != *before[i] {
			t.Errorf("original question %d changed", i)
		}
	}
}

// Title edit that also sets ACTIVE retires A and activates "2.0".
func TestSaveSurvey_ContentEditActivates(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusActive)

	edit := EditOf(a)
	edit.TitleTH = "แบบประเมินใหม่"
	edit.Status = statusPtr(StatusActive)
	next, err := svc.SaveSurvey(context.Background(), admin, a, edit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Status != StatusActive || next.Version != "2.0" {
		t.Errorf("expected ACTIVE 2.0, got %s %s", next.Status, next.Version)
	}
	if store.surveys[a.ID].Status != StatusDraft {
		t.Error("expected original to be retired")
	}
	if store.activeCount(p) != 1 {
		t.Errorf("expected one active survey, got %d", store.activeCount(p))
	}
}

func TestSaveSurvey_ContentEditConflictWritesNothing(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	seedSurvey(t, svc, p, StatusActive)
	b := seedSurvey(t, svc, p, StatusDraft)

	edit := EditOf(b)
	edit.TitleTH = "B2"
	edit.Status = statusPtr(StatusActive)
	_, err := svc.SaveSurvey(context.Background(), admin, b, edit)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(store.surveys) != 2 {
		t.Errorf("expected no version to be written, got %d surveys", len(store.surveys))
	}
}

// A failure while copying questions leaves neither a new version nor a
// retired original behind.
func TestSaveSurvey_RollsBackOnFailure(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusActive)
	seedQuestions(t, svc, a.ID)
	store.failQuestionCreate = true

	edit := EditOf(a)
	edit.TitleTH = "changed"
	edit.Status = statusPtr(StatusActive)
	_, err := svc.SaveSurvey(context.Background(), admin, a, edit)
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.HTTPStatus(err) != 500 {
		t.Errorf("expected an internal failure, got %v", err)
	}
	if len(store.surveys) != 1 || store.surveys[a.ID].Status != StatusActive {
		t.Error("expected the original to remain the only, active version")
	}
	if len(store.questions) != 2 {
		t.Errorf("expected no copied questions, got %d", len(store.questions))
	}
}

func TestSaveSurvey_MovePointForks(t *testing.T) {
	svc, store := newTestService()
	lab := store.addPoint("LAB-01")
	xray := store.addPoint("XRAY-01")
	a := seedSurvey(t, svc, lab, StatusDraft)

	edit := EditOf(a)
	edit.ServicePointID = &xray
	next, err := svc.SaveSurvey(context.Background(), admin, a, edit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ID == a.ID || *next.ServicePointID != xray {
		t.Error("changing the point must fork a new version on the new point")
	}
}

func TestSaveSurvey_UnknownPoint(t *testing.T) {
	svc, _ := newTestService()
	p := uuid.New()
	_, err := svc.CreateSurvey(context.Background(), admin, SurveyEdit{TitleTH: "A", ServicePointID: &p, Status: statusPtr(StatusActive)})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVersionLineage(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	cur := seedSurvey(t, svc, p, StatusActive)
	for i, want := range []string{"2.0", "3.0", "4.0"} {
		edit := EditOf(cur)
		edit.DescriptionEN = want
		edit.Status = statusPtr(StatusActive)
		next, err := svc.SaveSurvey(context.Background(), admin, cur, edit)
		if err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
		if next.Version != want {
			t.Errorf("edit %d: expected %s, got %s", i, want, next.Version)
		}
		cur = next
	}
	if store.activeCount(p) != 1 {
		t.Errorf("expected one active survey, got %d", store.activeCount(p))
	}
}

func TestSurveyFor_Scope(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusDraft)
	unbound, _ := svc.CreateSurvey(context.Background(), admin, SurveyEdit{TitleTH: "unbound"})

	mgr := &staff.Actor{UserID: uuid.New(), ManagedPointIDs: []uuid.UUID{p}}
	if _, err := svc.SurveyFor(context.Background(), mgr, a.ID); err != nil {
		t.Errorf("manager must see surveys of managed points: %v", err)
	}
	if _, err := svc.SurveyFor(context.Background(), mgr, unbound.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for unbound survey, got %v", err)
	}
	other := &staff.Actor{UserID: uuid.New(), ManagedPointIDs: []uuid.UUID{uuid.New()}}
	if _, err := svc.SetStatus(context.Background(), other, a.ID, StatusActive); !apperr.IsNotFound(err) {
		t.Errorf("expected not found outside scope, got %v", err)
	}
}

func TestActiveForPoint(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	if _, err := svc.ActiveForPoint(context.Background(), p); !apperr.IsNotFound(err) {
		t.Errorf("expected not found without active survey, got %v", err)
	}
	a := seedSurvey(t, svc, p, StatusActive)
	seedQuestions(t, svc, a.ID)

	got, err := svc.ActiveForPoint(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != a.ID || len(got.Questions) != 2 || got.Questions[0].Order != 1 {
		t.Errorf("unexpected kiosk survey: %+v", got)
	}
}

func TestAddQuestion_AutoOrder(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusDraft)
	seedQuestions(t, svc, a.ID)

	q := &Question{TextTH: "เพิ่ม", Type: TypeTextShort}
	if err := svc.AddQuestion(context.Background(), admin, a.ID, q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Order != 3 {
		t.Errorf("expected order 3, got %d", q.Order)
	}

	explicit := &Question{TextTH: "first", Type: TypeRating, Order: 10}
	svc.AddQuestion(context.Background(), admin, a.ID, explicit)
	if explicit.Order != 10 {
		t.Errorf("explicit order must be kept, got %d", explicit.Order)
	}
}

func TestAddQuestion_InvalidType(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusDraft)

	err := svc.AddQuestion(context.Background(), admin, a.ID, &Question{TextTH: "x", Type: "CHECKBOX"})
	ve, ok := err.(*apperr.ValidationError)
	if !ok || ve.Fields["question_type"] == "" {
		t.Fatalf("expected question_type validation error, got %v", err)
	}
}

func TestUpdateQuestion_FrozenOnceAnswered(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusActive)
	seedQuestions(t, svc, a.ID)
	qs, _ := svc.QuestionsOf(context.Background(), a.ID)

	upd := &Question{ID: qs[0].ID, TextTH: "แก้ไข", Type: TypeRating}
	if err := svc.UpdateQuestion(context.Background(), admin, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.Order != qs[0].Order || upd.SurveyID != a.ID {
		t.Errorf("expected order and survey to be kept, got %+v", upd)
	}

	store.answered[qs[0].ID] = true
	err := svc.UpdateQuestion(context.Background(), admin, &Question{ID: qs[0].ID, TextTH: "again", Type: TypeRating})
	if !apperr.IsValidation(err) {
		t.Errorf("expected answered question to be frozen, got %v", err)
	}
}

func TestDeleteQuestion(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("LAB-01")
	a := seedSurvey(t, svc, p, StatusDraft)
	seedQuestions(t, svc, a.ID)
	qs, _ := svc.QuestionsOf(context.Background(), a.ID)

	if err := svc.DeleteQuestion(context.Background(), admin, qs[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := (mockQuestionRepo{store}).CountBySurvey(context.Background(), a.ID); n != 1 {
		t.Errorf("expected 1 question left, got %d", n)
	}
	if err := svc.DeleteQuestion(context.Background(), admin, uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListSurveys_Scope(t *testing.T) {
	svc, store := newTestService()
	p1 := store.addPoint("A")
	p2 := store.addPoint("B")
	seedSurvey(t, svc, p1, StatusDraft)
	seedSurvey(t, svc, p2, StatusDraft)

	_, total, _ := svc.ListSurveys(context.Background(), &staff.Actor{ManagedPointIDs: []uuid.UUID{p1}}, SurveyFilter{}, 20, 0)
	if total != 1 {
		t.Errorf("expected manager to see 1 survey, got %d", total)
	}
	_, total, _ = svc.ListSurveys(context.Background(), admin, SurveyFilter{}, 20, 0)
	if total != 2 {
		t.Errorf("expected admin to see 2 surveys, got %d", total)
	}
}

func TestDeleteSurvey(t *testing.T) {
	svc, store := newTestService()
	p := store.addPoint("A")
	a := seedSurvey(t, svc, p, StatusDraft)
	seedQuestions(t, svc, a.ID)

	if err := svc.DeleteSurvey(context.Background(), admin, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.surveys) != 0 || len(store.questions) != 0 {
		t.Error("expected survey and questions to be removed")
	}
}
