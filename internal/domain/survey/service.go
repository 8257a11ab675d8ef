package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/db"
)

type Service struct {
	surveys   SurveyRepository
	questions QuestionRepository
	tx        db.TxRunner
}

func NewService(surveys SurveyRepository, questions QuestionRepository, tx db.TxRunner) *Service {
	return &Service{surveys: surveys, questions: questions, tx: tx}
}

// SaveSurvey applies edit on behalf of actor. With a nil original it creates
// version "1.0". A status-only edit updates original in place. Any content
// edit creates a new version carrying a copy of original's questions; when
// that version goes ACTIVE, original is retired in the same transaction.
func (s *Service) SaveSurvey(ctx context.Context, actor *staff.Actor, original *Survey, edit SurveyEdit) (*Survey, error) {
	normalizeEdit(&edit)
	if err := validateEdit(edit); err != nil {
		return nil, err
	}
	if !actor.CanAccessPoint(edit.ServicePointID) {
		return nil, &apperr.ForbiddenError{Reason: "service point is not managed by the caller"}
	}

	if original == nil {
		return s.create(ctx, actor, edit)
	}
	if !edit.contentDiffers(original) {
		if edit.Status == nil || *edit.Status == original.Status {
			return original, nil
		}
		return s.changeStatus(ctx, original, *edit.Status)
	}
	return s.newVersion(ctx, actor, original, edit)
}

func (s *Service) create(ctx context.Context, actor *staff.Actor, edit SurveyEdit) (*Survey, error) {
	sv := &Survey{
		TitleTH:        edit.TitleTH,
		TitleEN:        edit.TitleEN,
		DescriptionTH:  edit.DescriptionTH,
		DescriptionEN:  edit.DescriptionEN,
		Status:         StatusDraft,
		Version:        InitialVersion,
		ServicePointID: edit.ServicePointID,
		CreatedBy:      actor.UserRef(),
	}
	if edit.Status != nil {
		sv.Status = *edit.Status
	}

	err := s.guardActive(ctx, sv.Status, sv.ServicePointID, nil, func(ctx context.Context) error {
		return s.surveys.Create(ctx, sv)
	})
	if err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *Service) changeStatus(ctx context.Context, original *Survey, status Status) (*Survey, error) {
	err := s.guardActive(ctx, status, original.ServicePointID, &original.ID, func(ctx context.Context) error {
		return s.surveys.UpdateStatus(ctx, original.ID, status)
	})
	if err != nil {
		return nil, err
	}
	return s.surveys.GetByID(ctx, original.ID)
}

func (s *Service) newVersion(ctx context.Context, actor *staff.Actor, original *Survey, edit SurveyEdit) (*Survey, error) {
	next := &Survey{
		TitleTH:        edit.TitleTH,
		TitleEN:        edit.TitleEN,
		DescriptionTH:  edit.DescriptionTH,
		DescriptionEN:  edit.DescriptionEN,
		Status:         StatusDraft,
		Version:        NextVersion(original.Version),
		ServicePointID: edit.ServicePointID,
		CreatedBy:      actor.UserRef(),
	}
	if edit.Status != nil {
		next.Status = *edit.Status
	}

	err := s.guardActive(ctx, next.Status, next.ServicePointID, &original.ID, func(ctx context.Context) error {
		if next.Status == StatusActive && original.Status == StatusActive {
			if err := s.surveys.UpdateStatus(ctx, original.ID, StatusDraft); err != nil {
				return fmt.Errorf("retire version %s: %w", original.Version, err)
			}
		}
		if err := s.surveys.Create(ctx, next); err != nil {
			return err
		}
		questions, err := s.questions.ListBySurvey(ctx, original.ID)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		for _, q := range questions {
			cp := &Question{
				SurveyID: next.ID,
				TextTH:   q.TextTH,
				TextEN:   q.TextEN,
				Type:     q.Type,
				Order:    q.Order,
				Required: q.Required,
			}
			if err := s.questions.Create(ctx, cp); err != nil {
				return fmt.Errorf("copy question: %w", err)
			}
			next.Questions = append(next.Questions, cp)
		}
		next.QuestionCount = len(next.Questions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// guardActive runs write in a transaction. When status is ACTIVE on a point it
// first rejects the write if another survey (other than excludeID) is active
// there, then repeats the check under a lock on the point row. The unique
// index on active surveys backs both checks.
func (s *Service) guardActive(ctx context.Context, status Status, pointID, excludeID *uuid.UUID, write func(ctx context.Context) error) error {
	guarded := status == StatusActive && pointID != nil
	if guarded {
		if err := s.checkNoOtherActive(ctx, *pointID, excludeID); err != nil {
			return err
		}
	}

	var pointName string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if guarded {
			name, err := s.surveys.LockServicePoint(ctx, *pointID)
			if err != nil {
				return err
			}
			pointName = name
			if err := s.checkNoOtherActive(ctx, *pointID, excludeID); err != nil {
				return err
			}
		}
		return write(ctx)
	})
	if err == nil {
		return nil
	}

	var ce *apperr.ConflictError
	if errors.As(err, &ce) {
		if ce.ServicePointID == "" && pointID != nil {
			ce.ServicePointID = pointID.String()
		}
		if ce.ServicePointName == "" {
			ce.ServicePointName = pointName
		}
		return ce
	}
	if isDomainErr(err) {
		return err
	}
	return fmt.Errorf("save survey: %w", err)
}

func (s *Service) checkNoOtherActive(ctx context.Context, pointID uuid.UUID, excludeID *uuid.UUID) error {
	other, err := s.surveys.FindActiveByServicePoint(ctx, pointID, excludeID)
	if err != nil {
		return err
	}
	if other == nil {
		return nil
	}
	ce := &apperr.ConflictError{ServicePointID: pointID.String()}
	if other.ServicePointName != nil {
		ce.ServicePointName = *other.ServicePointName
	}
	return ce
}

func isDomainErr(err error) bool {
	var fe *apperr.ForbiddenError
	return apperr.IsValidation(err) || apperr.IsNotFound(err) || apperr.IsConflict(err) || errors.As(err, &fe)
}

// CreateSurvey creates version "1.0" of a new survey.
func (s *Service) CreateSurvey(ctx context.Context, actor *staff.Actor, edit SurveyEdit) (*Survey, error) {
	return s.SaveSurvey(ctx, actor, nil, edit)
}

// UpdateSurvey applies the full form edit to survey id.
func (s *Service) UpdateSurvey(ctx context.Context, actor *staff.Actor, id uuid.UUID, edit SurveyEdit) (*Survey, error) {
	original, err := s.SurveyFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.SaveSurvey(ctx, actor, original, edit)
}

// SetStatus changes only the status of survey id.
func (s *Service) SetStatus(ctx context.Context, actor *staff.Actor, id uuid.UUID, status Status) (*Survey, error) {
	original, err := s.SurveyFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	edit := EditOf(original)
	edit.Status = &status
	return s.SaveSurvey(ctx, actor, original, edit)
}

// SurveyFor loads a survey with its questions on behalf of actor. Surveys of
// points outside the actor's scope are reported as not found.
func (s *Service) SurveyFor(ctx context.Context, actor *staff.Actor, id uuid.UUID) (*Survey, error) {
	sv, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessPoint(sv.ServicePointID) {
		return nil, apperr.NotFound("survey", id.String())
	}
	if sv.Questions, err = s.questions.ListBySurvey(ctx, id); err != nil {
		return nil, err
	}
	return sv, nil
}

// SurveyByID loads any survey regardless of status or caller.
func (s *Service) SurveyByID(ctx context.Context, id uuid.UUID) (*Survey, error) {
	return s.surveys.GetByID(ctx, id)
}

// QuestionsOf lists the questions of any survey in presentation order.
func (s *Service) QuestionsOf(ctx context.Context, surveyID uuid.UUID) ([]*Question, error) {
	return s.questions.ListBySurvey(ctx, surveyID)
}

// ActiveForPoint returns the survey a kiosk at pointID should display.
func (s *Service) ActiveForPoint(ctx context.Context, pointID uuid.UUID) (*Survey, error) {
	sv, err := s.surveys.FindActiveByServicePoint(ctx, pointID, nil)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, apperr.NotFound("active survey", pointID.String())
	}
	if sv.Questions, err = s.questions.ListBySurvey(ctx, sv.ID); err != nil {
		return nil, err
	}
	return sv, nil
}

// DeleteSurvey removes a survey and its questions. Responses keep their
// answers with null survey and question references.
func (s *Service) DeleteSurvey(ctx context.Context, actor *staff.Actor, id uuid.UUID) error {
	if _, err := s.SurveyFor(ctx, actor, id); err != nil {
		return err
	}
	return s.surveys.Delete(ctx, id)
}

func (s *Service) ListSurveys(ctx context.Context, actor *staff.Actor, f SurveyFilter, limit, offset int) ([]*Survey, int, error) {
	f.Scope = actor.PointScope()
	return s.surveys.List(ctx, f, limit, offset)
}

// -- Questions --

// AddQuestion appends q to survey surveyID. A zero Order places it last.
func (s *Service) AddQuestion(ctx context.Context, actor *staff.Actor, surveyID uuid.UUID, q *Question) error {
	if _, err := s.SurveyFor(ctx, actor, surveyID); err != nil {
		return err
	}
	q.SurveyID = surveyID
	normalizeQuestion(q)
	if err := validateQuestion(q); err != nil {
		return err
	}
	if q.Order == 0 {
		n, err := s.questions.CountBySurvey(ctx, surveyID)
		if err != nil {
			return err
		}
		q.Order = n + 1
	}
	return s.questions.Create(ctx, q)
}

func (s *Service) questionFor(ctx context.Context, actor *staff.Actor, id uuid.UUID) (*Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sv, err := s.surveys.GetByID(ctx, q.SurveyID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessPoint(sv.ServicePointID) {
		return nil, apperr.NotFound("question", id.String())
	}
	return q, nil
}

// UpdateQuestion edits a question that has not been answered yet. Answered
// questions are frozen; edit the survey to fork a new version instead.
func (s *Service) UpdateQuestion(ctx context.Context, actor *staff.Actor, q *Question) error {
	existing, err := s.questionFor(ctx, actor, q.ID)
	if err != nil {
		return err
	}
	answered, err := s.questions.HasAnswers(ctx, q.ID)
	if err != nil {
		return err
	}
	if answered {
		return apperr.Invalid("question", "has recorded answers and can no longer be edited")
	}
	q.SurveyID = existing.SurveyID
	q.CreatedAt = existing.CreatedAt
	normalizeQuestion(q)
	if q.Order == 0 {
		q.Order = existing.Order
	}
	if err := validateQuestion(q); err != nil {
		return err
	}
	return s.questions.Update(ctx, q)
}

// DeleteQuestion removes a question. Recorded answers keep their values with a
// null question reference.
func (s *Service) DeleteQuestion(ctx context.Context, actor *staff.Actor, id uuid.UUID) error {
	if _, err := s.questionFor(ctx, actor, id); err != nil {
		return err
	}
	return s.questions.Delete(ctx, id)
}

func (s *Service) ListQuestions(ctx context.Context, actor *staff.Actor, surveyID uuid.UUID) ([]*Question, error) {
	sv, err := s.SurveyFor(ctx, actor, surveyID)
	if err != nil {
		return nil, err
	}
	return sv.Questions, nil
}

// -- Validation --

func normalizeEdit(e *SurveyEdit) {
	e.TitleTH = strings.TrimSpace(e.TitleTH)
	e.TitleEN = strings.TrimSpace(e.TitleEN)
	e.DescriptionTH = strings.TrimSpace(e.DescriptionTH)
	e.DescriptionEN = strings.TrimSpace(e.DescriptionEN)
}

func validateEdit(e SurveyEdit) error {
	fields := map[string]string{}
	if e.TitleTH == "" {
		fields["title_th"] = "is required"
	} else if utf8.RuneCountInString(e.TitleTH) > 255 {
		fields["title_th"] = "must be at most 255 characters"
	}
	if utf8.RuneCountInString(e.TitleEN) > 255 {
		fields["title_en"] = "must be at most 255 characters"
	}
	if e.Status != nil && !e.Status.Valid() {
		fields["status"] = "must be one of: DRAFT ACTIVE"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func normalizeQuestion(q *Question) {
	q.TextTH = strings.TrimSpace(q.TextTH)
	q.TextEN = strings.TrimSpace(q.TextEN)
}

func validateQuestion(q *Question) error {
	fields := map[string]string{}
	if q.TextTH == "" {
		fields["text_th"] = "is required"
	}
	if q.Type.Kind() == KindInvalid {
		fields["question_type"] = "must be one of: RATING_5 TEXTAREA TEXT_SHORT"
	}
	if q.Order < 0 {
		fields["order"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}
