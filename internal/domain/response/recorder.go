package response

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surveyhos/surveyhos/internal/domain/servicepoint"
	"github.com/surveyhos/surveyhos/internal/domain/survey"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/db"
)

// SurveyLookup resolves survey versions regardless of their status.
type SurveyLookup interface {
	SurveyByID(ctx context.Context, id uuid.UUID) (*survey.Survey, error)
	QuestionsOf(ctx context.Context, surveyID uuid.UUID) ([]*survey.Question, error)
}

type PointLookup interface {
	GetPoint(ctx context.Context, id uuid.UUID) (*servicepoint.ServicePoint, error)
}

// Recorder persists kiosk submissions.
type Recorder struct {
	responses ResponseRepository
	surveys   SurveyLookup
	points    PointLookup
	tx        db.TxRunner
	logger    zerolog.Logger
	now       func() time.Time
}

func NewRecorder(repo ResponseRepository, surveys SurveyLookup, points PointLookup, tx db.TxRunner, logger zerolog.Logger) *Recorder {
	return &Recorder{
		responses: repo,
		surveys:   surveys,
		points:    points,
		tx:        tx,
		logger:    logger.With().Str("component", "recorder").Logger(),
		now:       time.Now,
	}
}

// Submit records one completed submission. Answers that cannot be matched to
// a question of the survey, or whose value does not fit the question, are
// logged and skipped; the rest of the response is kept.
func (rc *Recorder) Submit(ctx context.Context, sub Submission) (*Response, error) {
	normalizeDemographics(&sub.Demographics)
	if err := validateDemographics(sub.Demographics); err != nil {
		return nil, err
	}

	sv, err := rc.surveys.SurveyByID(ctx, sub.SurveyID)
	if err != nil {
		return nil, err
	}
	point, err := rc.points.GetPoint(ctx, sub.ServicePointID)
	if err != nil {
		return nil, err
	}
	questions, err := rc.surveys.QuestionsOf(ctx, sv.ID)
	if err != nil {
		return nil, err
	}

	now := rc.now()
	started := now
	if sub.StartedAt != nil && !sub.StartedAt.After(now) {
		started = *sub.StartedAt
	}
	resp := &Response{
		SurveyID:         &sv.ID,
		ServicePointID:   &point.ID,
		Demographics:     sub.Demographics,
		ClientIP:         sub.ClientIP,
		UserAgent:        sub.UserAgent,
		StartedAt:        started,
		SubmittedAt:      &now,
		SurveyTitle:      &sv.TitleTH,
		SurveyVersion:    &sv.Version,
		ServicePointName: &point.Name,
	}
	resp.Answers = rc.buildAnswers(sv.ID, questions, sub.Answers)
	if ratings := resp.Ratings(); len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		avg := float64(sum) / float64(len(ratings))
		resp.AvgScore = &avg
	}

	err = rc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := rc.responses.Create(ctx, resp); err != nil {
			return err
		}
		for _, a := range resp.Answers {
			a.ResponseID = resp.ID
			if err := rc.responses.CreateAnswer(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rc.logger.Info().
		Str("response_id", resp.ID.String()).
		Str("survey_id", sv.ID.String()).
		Str("service_point", point.Code).
		Int("answers", len(resp.Answers)).
		Msg("response recorded")
	return resp, nil
}

func (rc *Recorder) buildAnswers(surveyID uuid.UUID, questions []*survey.Question, raw map[string]string) []*Answer {
	byID := make(map[uuid.UUID]*survey.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*Answer
	for _, key := range keys {
		value := raw[key]
		qid, err := uuid.Parse(strings.TrimSpace(key))
		if err != nil {
			rc.skip(surveyID, key, "malformed question id")
			continue
		}
		q, ok := byID[qid]
		if !ok {
			rc.skip(surveyID, key, "question does not belong to survey")
			continue
		}

		a := &Answer{QuestionID: &q.ID}
		switch q.Type.Kind() {
		case survey.KindRating:
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 1 || n > MaxRating {
				rc.skip(surveyID, key, "rating must be an integer from 1 to 5")
				continue
			}
			a.Rating = &n
		case survey.KindText:
			if strings.TrimSpace(value) == "" {
				continue
			}
			text := value
			a.Text = &text
		default:
			rc.skip(surveyID, key, "unsupported question type "+string(q.Type))
			continue
		}
		out = append(out, a)
	}
	return out
}

func (rc *Recorder) skip(surveyID uuid.UUID, questionID, reason string) {
	rc.logger.Warn().
		Str("survey_id", surveyID.String()).
		Str("question_id", questionID).
		Str("reason", reason).
		Msg("answer skipped")
}

func normalizeDemographics(d *Demographics) {
	d.BenefitPlanOther = strings.TrimSpace(d.BenefitPlanOther)
	if d.BenefitPlan != PlanOther {
		d.BenefitPlanOther = ""
	}
}

func validateDemographics(d Demographics) error {
	fields := map[string]string{}
	switch d.PatientType {
	case "", PatientNew, PatientExisting:
	default:
		fields["patient_type"] = "must be one of: NEW EXISTING"
	}
	switch d.RespondentRole {
	case "", RolePatient, RoleRelative:
	default:
		fields["respondent_role"] = "must be one of: PATIENT RELATIVE"
	}
	switch d.BenefitPlan {
	case "", PlanUC, PlanSocialSecurity, PlanGovernment, PlanSelfPay, PlanOther:
	default:
		fields["benefit_plan"] = "must be one of: UC SOCIAL_SECURITY GOVERNMENT SELF_PAY OTHER"
	}
	if utf8.RuneCountInString(d.BenefitPlanOther) > 255 {
		fields["benefit_plan_other"] = "must be at most 255 characters"
	}
	switch d.AgeRange {
	case "", AgeUnder15, Age15To25, Age26To40, Age41To60, AgeOver60:
	default:
		fields["age_range"] = "must be one of: UNDER_15 15_25 26_40 41_60 OVER_60"
	}
	switch d.Gender {
	case "", GenderMale, GenderFemale, GenderOther, GenderNotSpecified:
	default:
		fields["gender"] = "must be one of: MALE FEMALE OTHER NOT_SPECIFIED"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}
