package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/domain/response"
	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/domain/survey"
)

type kioskFixture struct {
	point    uuid.UUID
	survey   uuid.UUID
	rating1  uuid.UUID
	rating2  uuid.UUID
	comments uuid.UUID
}

func seedKiosk(t *testing.T, ctx context.Context, s *stack, code, name string) kioskFixture {
	t.Helper()
	point := createPoint(t, ctx, s, code, name)
	sv := createSurvey(t, ctx, s, name+" survey", &point.ID, survey.StatusActive)
	return kioskFixture{
		point:    point.ID,
		survey:   sv.ID,
		rating1:  addQuestion(t, ctx, s, sv.ID, "Waiting time", survey.TypeRating, 1).ID,
		rating2:  addQuestion(t, ctx, s, sv.ID, "Cleanliness", survey.TypeRating, 2).ID,
		comments: addQuestion(t, ctx, s, sv.ID, "Suggestions", survey.TypeTextarea, 3).ID,
	}
}

func (k kioskFixture) submit(t *testing.T, ctx context.Context, s *stack, answers map[string]string) *response.Response {
	t.Helper()
	r, err := s.recorder.Submit(ctx, response.Submission{
		SurveyID:       k.survey,
		ServicePointID: k.point,
		Demographics: response.Demographics{
			PatientType:    response.PatientExisting,
			RespondentRole: response.RolePatient,
			BenefitPlan:    response.PlanUC,
			Gender:         response.GenderFemale,
			PDPAAccepted:   true,
		},
		Answers:   answers,
		ClientIP:  "10.0.0.7",
		UserAgent: "kiosk/1.0",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return r
}

func TestRecorderPersistsResponse(t *testing.T) {
	tenantID := newTenant(t, "recorder")
	s := newStack()

	inTenant(t, tenantID, func(ctx context.Context) error {
		k := seedKiosk(t, ctx, s, "LAB-01", "Laboratory")
		r := k.submit(t, ctx, s, map[string]string{
			k.rating1.String():  "4",
			k.rating2.String():  "9",
			k.comments.String(): "Friendly staff",
			uuid.NewString():    "5",
		})

		got, err := s.responses.ResponseFor(ctx, admin, r.ID)
		if err != nil {
			t.Fatalf("ResponseFor: %v", err)
		}
		if len(got.Answers) != 2 {
			t.Fatalf("expected 2 stored answers, got %d", len(got.Answers))
		}
		if got.AvgScore == nil || *got.AvgScore != 4 {
			t.Errorf("expected avg score 4, got %v", got.AvgScore)
		}
		if got.SurveyVersion == nil || *got.SurveyVersion != "1.0" {
			t.Errorf("expected survey version 1.0, got %v", got.SurveyVersion)
		}
		if got.BenefitPlan != response.PlanUC || !got.PDPAAccepted {
			t.Errorf("unexpected demographics: %+v", got.Demographics)
		}
		return nil
	})
}

func TestResponsesOutliveTheirSurvey(t *testing.T) {
	tenantID := newTenant(t, "outlive")
	s := newStack()

	inTenant(t, tenantID, func(ctx context.Context) error {
		k := seedKiosk(t, ctx, s, "XR-01", "Radiology")
		r := k.submit(t, ctx, s, map[string]string{k.rating1.String(): "5", k.comments.String(): "ok"})

		if err := s.surveys.DeleteSurvey(ctx, admin, k.survey); err != nil {
			t.Fatalf("DeleteSurvey: %v", err)
		}

		got, err := s.responses.ResponseFor(ctx, admin, r.ID)
		if err != nil {
			t.Fatalf("ResponseFor after delete: %v", err)
		}
		if got.SurveyID != nil {
			t.Errorf("expected the survey reference to be cleared, got %v", got.SurveyID)
		}
		if len(got.Answers) != 2 {
			t.Errorf("expected answers to be kept, got %d", len(got.Answers))
		}
		for _, a := range got.Answers {
			if a.QuestionID != nil {
				t.Errorf("expected question reference to be cleared on answer %s", a.ID)
			}
		}
		return nil
	})
}

func TestResultsScopeAndScore(t *testing.T) {
	tenantID := newTenant(t, "results")
	s := newStack()

	inTenant(t, tenantID, func(ctx context.Context) error {
		lab := seedKiosk(t, ctx, s, "LAB-01", "Laboratory")
		opd := seedKiosk(t, ctx, s, "OPD-01", "Outpatient")

		lab.submit(t, ctx, s, map[string]string{lab.rating1.String(): "1", lab.rating2.String(): "2"})
		lab.submit(t, ctx, s, map[string]string{lab.rating1.String(): "5", lab.rating2.String(): "5"})
		opd.submit(t, ctx, s, map[string]string{opd.rating1.String(): "1", opd.comments.String(): "Too slow"})

		manager := &staff.Actor{Username: "lab-lead", ManagedPointIDs: []uuid.UUID{lab.point}}

		all, total, err := s.responses.Results(ctx, manager, response.ResultFilter{}, 50, 0)
		if err != nil {
			t.Fatalf("Results: %v", err)
		}
		if total != 2 || len(all) != 2 {
			t.Errorf("expected the manager to see 2 responses, got %d", total)
		}

		score, _ := response.ParseScoreRange("1-2")
		low, total, err := s.responses.Results(ctx, admin, response.ResultFilter{Score: score}, 50, 0)
		if err != nil {
			t.Fatalf("Results with score: %v", err)
		}
		if total != 2 {
			t.Errorf("expected 2 low scoring responses, got %d", total)
		}
		for _, r := range low {
			if r.AvgScore == nil || *r.AvgScore >= 2 {
				t.Errorf("response %s outside score range: %v", r.ID, r.AvgScore)
			}
		}

		sugg, total, err := s.responses.Suggestions(ctx, admin, response.SuggestionFilter{Query: "slow"}, 50, 0)
		if err != nil {
			t.Fatalf("Suggestions: %v", err)
		}
		if total != 1 || len(sugg) != 1 {
			t.Errorf("expected 1 suggestion, got %d", total)
		}

		dash, err := s.responses.Dashboard(ctx, admin, response.Filter{})
		if err != nil {
			t.Fatalf("Dashboard: %v", err)
		}
		if dash.Total != 3 || dash.Suggestions != 1 {
			t.Errorf("unexpected dashboard totals: %+v", dash)
		}
		if len(dash.ByDay) != 7 {
			t.Errorf("expected 7 days, got %d", len(dash.ByDay))
		}
		return nil
	})
}

func TestExportTable(t *testing.T) {
	tenantID := newTenant(t, "export")
	s := newStack()

	inTenant(t, tenantID, func(ctx context.Context) error {
		k := seedKiosk(t, ctx, s, "LAB-01", "Laboratory")
		k.submit(t, ctx, s, map[string]string{k.rating1.String(): "3", k.comments.String(): "Fine"})

		now := time.Now().UTC()
		table, err := s.responses.ExportTable(ctx, admin, now.Add(-time.Hour), now.Add(time.Hour))
		if err != nil {
			t.Fatalf("ExportTable: %v", err)
		}
		if len(table.Header) != len(response.ExportHeader) {
			t.Errorf("unexpected header: %v", table.Header)
		}
		if len(table.Rows) != 2 {
			t.Fatalf("expected one row per answer, got %d", len(table.Rows))
		}
		if table.Rows[0][2] != "LAB-01" {
			t.Errorf("expected point code LAB-01, got %q", table.Rows[0][2])
		}

		empty, err := s.responses.ExportTable(ctx, admin, now.Add(24*time.Hour), now.Add(48*time.Hour))
		if err != nil {
			t.Fatalf("ExportTable: %v", err)
		}
		if len(empty.Rows) != 0 {
			t.Errorf("expected no rows outside the window, got %d", len(empty.Rows))
		}
		return nil
	})
}
