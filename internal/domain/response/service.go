package response

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/export"
)

// Service answers the back-office questions about recorded responses.
type Service struct {
	responses ResponseRepository
	loc       *time.Location
	now       func() time.Time
}

func NewService(repo ResponseRepository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{responses: repo, loc: loc, now: time.Now}
}

// Location is the time zone calendar days are counted in.
func (s *Service) Location() *time.Location { return s.loc }

// CurrentWeek returns this week's Monday and the Monday after it.
func (s *Service) CurrentWeek() (time.Time, time.Time) {
	return WeekOf(s.now().In(s.loc))
}

// ResponseFor loads one response with its answers on behalf of actor.
func (s *Service) ResponseFor(ctx context.Context, actor *staff.Actor, id uuid.UUID) (*Response, error) {
	rs, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessPoint(rs.ServicePointID) {
		return nil, apperr.NotFound("response", id.String())
	}
	if rs.Answers, err = s.responses.ListAnswers(ctx, id); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *Service) Results(ctx context.Context, actor *staff.Actor, f ResultFilter, limit, offset int) ([]*Response, int, error) {
	f.Scope = actor.PointScope()
	return s.responses.Results(ctx, f, limit, offset)
}

func (s *Service) Suggestions(ctx context.Context, actor *staff.Actor, f SuggestionFilter, limit, offset int) ([]*Suggestion, int, error) {
	f.Scope = actor.PointScope()
	return s.responses.Suggestions(ctx, f, limit, offset)
}

// Dashboard summarizes responses over [f.From, f.To). Without bounds it
// covers the current Monday to Sunday.
func (s *Service) Dashboard(ctx context.Context, actor *staff.Actor, f Filter) (*Dashboard, error) {
	if f.From == nil || f.To == nil {
		from, to := s.CurrentWeek()
		f.From, f.To = &from, &to
	}
	f.Scope = actor.PointScope()
	return s.responses.Dashboard(ctx, f)
}

// ExportHeader is the column layout of the export table.
var ExportHeader = []string{
	"response_id", "submitted_at", "service_point_code", "service_point_name",
	"survey_title", "survey_version", "patient_type", "respondent_role",
	"benefit_plan", "benefit_plan_other", "age_range", "gender", "pdpa_accepted",
	"question", "question_type", "rating", "text",
}

// ExportTable enumerates the answers submitted in [from, to) within actor's
// scope as a table for the export sinks.
func (s *Service) ExportTable(ctx context.Context, actor *staff.Actor, from, to time.Time) (export.Table, error) {
	f := Filter{From: &from, To: &to, Scope: actor.PointScope()}
	rows, err := s.responses.ExportRows(ctx, f)
	if err != nil {
		return export.Table{}, err
	}
	t := export.Table{Header: ExportHeader, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, s.exportRecord(r))
	}
	return t, nil
}

func (s *Service) exportRecord(r *ExportRow) []string {
	rating := ""
	if r.Rating != nil {
		rating = strconv.Itoa(*r.Rating)
	}
	d := r.Demographics
	return []string{
		r.ResponseID.String(),
		r.SubmittedAt.In(s.loc).Format(time.DateTime),
		deref(r.ServicePointCode),
		deref(r.ServicePointName),
		deref(r.SurveyTitle),
		deref(r.SurveyVersion),
		string(d.PatientType),
		string(d.RespondentRole),
		string(d.BenefitPlan),
		d.BenefitPlanOther,
		string(d.AgeRange),
		string(d.Gender),
		strconv.FormatBool(d.PDPAAccepted),
		deref(r.QuestionText),
		deref(r.QuestionType),
		rating,
		deref(r.Text),
	}
}
