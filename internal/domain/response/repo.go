package response

import (
	"context"

	"github.com/google/uuid"
)

type ResponseRepository interface {
	Create(ctx context.Context, r *Response) error
	CreateAnswer(ctx context.Context, a *Answer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Response, error)
	ListAnswers(ctx context.Context, responseID uuid.UUID) ([]*Answer, error)
	// Analytics over submitted responses
	Results(ctx context.Context, f ResultFilter, limit, offset int) ([]*Response, int, error)
	Suggestions(ctx context.Context, f SuggestionFilter, limit, offset int) ([]*Suggestion, int, error)
	Dashboard(ctx context.Context, f Filter) (*Dashboard, error)
	ExportRows(ctx context.Context, f Filter) ([]*ExportRow, error)
}
