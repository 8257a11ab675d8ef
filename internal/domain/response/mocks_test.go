package response

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surveyhos/surveyhos/internal/domain/servicepoint"
	"github.com/surveyhos/surveyhos/internal/domain/survey"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
)

type mockResponseRepo struct {
	responses  map[uuid.UUID]*Response
	answers    map[uuid.UUID][]*Answer
	failCreate bool
	exportRows []*ExportRow
	lastFilter Filter
}

func newMockResponseRepo() *mockResponseRepo {
	return &mockResponseRepo{
		responses: make(map[uuid.UUID]*Response),
		answers:   make(map[uuid.UUID][]*Answer),
	}
}

func (m *mockResponseRepo) Create(_ context.Context, r *Response) error {
	if m.failCreate {
		return errors.New("database is down")
	}
	r.ID = uuid.New()
	m.responses[r.ID] = r
	return nil
}

func (m *mockResponseRepo) CreateAnswer(_ context.Context, a *Answer) error {
	a.ID = uuid.New()
	m.answers[a.ResponseID] = append(m.answers[a.ResponseID], a)
	return nil
}

func (m *mockResponseRepo) GetByID(_ context.Context, id uuid.UUID) (*Response, error) {
	r, ok := m.responses[id]
	if !ok {
		return nil, apperr.NotFound("response", id.String())
	}
	cp := *r
	return &cp, nil
}

func (m *mockResponseRepo) ListAnswers(_ context.Context, responseID uuid.UUID) ([]*Answer, error) {
	return m.answers[responseID], nil
}

func (m *mockResponseRepo) inScope(r *Response, f Filter) bool {
	if f.Scope == nil {
		return true
	}
	for _, id := range f.Scope {
		if r.ServicePointID != nil && *r.ServicePointID == id {
			return true
		}
	}
	return false
}

func (m *mockResponseRepo) Results(_ context.Context, f ResultFilter, limit, offset int) ([]*Response, int, error) {
	m.lastFilter = f.Filter
	var out []*Response
	for _, r := range m.responses {
		if !m.inScope(r, f.Filter) {
			continue
		}
		if f.Score != nil && (r.AvgScore == nil || !f.Score.Contains(*r.AvgScore)) {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockResponseRepo) Suggestions(_ context.Context, f SuggestionFilter, limit, offset int) ([]*Suggestion, int, error) {
	m.lastFilter = f.Filter
	var out []*Suggestion
	for id, answers := range m.answers {
		r := m.responses[id]
		if !m.inScope(r, f.Filter) {
			continue
		}
		for _, a := range answers {
			if a.Text != nil && *a.Text != "" {
				out = append(out, &Suggestion{ResponseID: id, QuestionID: a.QuestionID, Text: *a.Text, SubmittedAt: *r.SubmittedAt})
			}
		}
	}
	return out, len(out), nil
}

func (m *mockResponseRepo) Dashboard(_ context.Context, f Filter) (*Dashboard, error) {
	m.lastFilter = f
	d := &Dashboard{From: *f.From, To: *f.To}
	for _, r := range m.responses {
		if m.inScope(r, f) {
			d.Total++
		}
	}
	return d, nil
}

func (m *mockResponseRepo) ExportRows(_ context.Context, f Filter) ([]*ExportRow, error) {
	m.lastFilter = f
	return m.exportRows, nil
}

type mockSurveys struct {
	surveys   map[uuid.UUID]*survey.Survey
	questions map[uuid.UUID][]*survey.Question
}

func (m *mockSurveys) SurveyByID(_ context.Context, id uuid.UUID) (*survey.Survey, error) {
	s, ok := m.surveys[id]
	if !ok {
		return nil, apperr.NotFound("survey", id.String())
	}
	return s, nil
}

func (m *mockSurveys) QuestionsOf(_ context.Context, surveyID uuid.UUID) ([]*survey.Question, error) {
	return m.questions[surveyID], nil
}

type mockPoints map[uuid.UUID]*servicepoint.ServicePoint

func (m mockPoints) GetPoint(_ context.Context, id uuid.UUID) (*servicepoint.ServicePoint, error) {
	p, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("service point", id.String())
	}
	return p, nil
}

type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// fixture is one service point with a survey of two rating questions and one
// text question.
type fixture struct {
	repo     *mockResponseRepo
	rec      *Recorder
	point    *servicepoint.ServicePoint
	survey   *survey.Survey
	rating1  *survey.Question
	rating2  *survey.Question
	comments *survey.Question
}

func newFixture() *fixture {
	point := &servicepoint.ServicePoint{ID: uuid.New(), Code: "LAB-01", Name: "Laboratory"}
	sv := &survey.Survey{ID: uuid.New(), TitleTH: "แบบประเมิน", Status: survey.StatusDraft, Version: "1.0", ServicePointID: &point.ID}
	r1 := &survey.Question{ID: uuid.New(), SurveyID: sv.ID, TextTH: "Q1", Type: survey.TypeRating, Order: 1}
	r2 := &survey.Question{ID: uuid.New(), SurveyID: sv.ID, TextTH: "Q2", Type: survey.TypeRating, Order: 2}
	txt := &survey.Question{ID: uuid.New(), SurveyID: sv.ID, TextTH: "Q3", Type: survey.TypeTextarea, Order: 3}

	repo := newMockResponseRepo()
	surveys := &mockSurveys{
		surveys:   map[uuid.UUID]*survey.Survey{sv.ID: sv},
		questions: map[uuid.UUID][]*survey.Question{sv.ID: {r1, r2, txt}},
	}
	rec := NewRecorder(repo, surveys, mockPoints{point.ID: point}, passTx{}, zerolog.Nop())
	rec.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return &fixture{repo: repo, rec: rec, point: point, survey: sv, rating1: r1, rating2: r2, comments: txt}
}

func (f *fixture) submission(answers map[string]string) Submission {
	return Submission{SurveyID: f.survey.ID, ServicePointID: f.point.ID, Answers: answers}
}
