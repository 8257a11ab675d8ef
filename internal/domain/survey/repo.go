package survey

import (
	"context"

	"github.com/google/uuid"
)

type SurveyRepository interface {
	Create(ctx context.Context, s *Survey) error
	GetByID(ctx context.Context, id uuid.UUID) (*Survey, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f SurveyFilter, limit, offset int) ([]*Survey, int, error)
	// FindActiveByServicePoint returns the ACTIVE survey of pointID other than
	// excludeID, or nil when there is none.
	FindActiveByServicePoint(ctx context.Context, pointID uuid.UUID, excludeID *uuid.UUID) (*Survey, error)
	// LockServicePoint takes a row lock on the point for the rest of the
	// transaction and returns its display name.
	LockServicePoint(ctx context.Context, pointID uuid.UUID) (string, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, q *Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*Question, error)
	Update(ctx context.Context, q *Question) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySurvey(ctx context.Context, surveyID uuid.UUID) ([]*Question, error)
	CountBySurvey(ctx context.Context, surveyID uuid.UUID) (int, error)
	HasAnswers(ctx context.Context, questionID uuid.UUID) (bool, error)
}
