package survey

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/db"
)

// activeIndex is the partial unique index that allows one ACTIVE survey per
// service point.
const activeIndex = "survey_one_active_per_point"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// -- Survey --

type surveyRepoPG struct{ pool *pgxpool.Pool }

func NewSurveyRepoPG(pool *pgxpool.Pool) SurveyRepository {
	return &surveyRepoPG{pool: pool}
}

func (r *surveyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const (
	surveyFrom = `survey s LEFT JOIN service_point sp ON sp.id = s.service_point_id`
	surveyCols = `s.id, s.title_th, s.title_en, s.description_th, s.description_en, s.status, s.version,
		s.service_point_id, sp.name, s.created_by, s.created_at, s.updated_at,
		(SELECT COUNT(*) FROM question q WHERE q.survey_id = s.id)`
)

func scanSurvey(row pgx.Row) (*Survey, error) {
	var s Survey
	err := row.Scan(&s.ID, &s.TitleTH, &s.TitleEN, &s.DescriptionTH, &s.DescriptionEN,
		&s.Status, &s.Version, &s.ServicePointID, &s.ServicePointName, &s.CreatedBy,
		&s.CreatedAt, &s.UpdatedAt, &s.QuestionCount)
	return &s, err
}

func (r *surveyRepoPG) Create(ctx context.Context, s *Survey) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO survey (id, title_th, title_en, description_th, description_en, status, version, service_point_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		s.ID, s.TitleTH, s.TitleEN, s.DescriptionTH, s.DescriptionEN, s.Status, s.Version,
		s.ServicePointID, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return mapSurveyErr(err, s.ServicePointID)
}

func (r *surveyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Survey, error) {
	s, err := scanSurvey(r.conn(ctx).QueryRow(ctx, `SELECT `+surveyCols+` FROM `+surveyFrom+` WHERE s.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("survey", id.String())
	}
	return s, err
}

func (r *surveyRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	var pointID *uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE survey SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING service_point_id`, id, status).Scan(&pointID)
	if db.IsNoRows(err) {
		return apperr.NotFound("survey", id.String())
	}
	return mapSurveyErr(err, pointID)
}

func (r *surveyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM survey WHERE id = $1`, id)
	return err
}

func (r *surveyRepoPG) List(ctx context.Context, f SurveyFilter, limit, offset int) ([]*Survey, int, error) {
	q := db.NewQuery(surveyFrom, surveyCols)
	if f.Query != "" {
		q.Where("(s.title_th ILIKE $%[1]d OR s.title_en ILIKE $%[1]d)", "%"+f.Query+"%")
	}
	if f.GroupID != nil {
		q.Where("sp.group_id = $%d", *f.GroupID)
	}
	if f.ServicePointID != nil {
		q.Where("s.service_point_id = $%d", *f.ServicePointID)
	}
	if f.Status != "" {
		q.Where("s.status = $%d", f.Status)
	}
	q.WhereIn("s.service_point_id", f.Scope)
	q.OrderBy("s.created_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.PageSQL(), q.PageArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *surveyRepoPG) FindActiveByServicePoint(ctx context.Context, pointID uuid.UUID, excludeID *uuid.UUID) (*Survey, error) {
	q := db.NewQuery(surveyFrom, surveyCols)
	q.Where("s.service_point_id = $%d", pointID)
	q.Where("s.status = $%d", StatusActive)
	if excludeID != nil {
		q.Where("s.id <> $%d", *excludeID)
	}
	s, err := scanSurvey(r.conn(ctx).QueryRow(ctx, q.SQL()+" LIMIT 1", q.Args()...))
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *surveyRepoPG) LockServicePoint(ctx context.Context, pointID uuid.UUID) (string, error) {
	var name string
	err := r.conn(ctx).QueryRow(ctx, `SELECT name FROM service_point WHERE id = $1 FOR UPDATE`, pointID).Scan(&name)
	if db.IsNoRows(err) {
		return "", apperr.Invalid("service_point_id", "unknown service point")
	}
	return name, err
}

func mapSurveyErr(err error, pointID *uuid.UUID) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, activeIndex):
		ce := &apperr.ConflictError{}
		if pointID != nil {
			ce.ServicePointID = pointID.String()
		}
		return ce
	case db.IsForeignKeyViolation(err):
		return apperr.Invalid("service_point_id", "unknown service point")
	}
	return err
}

// -- Question --

type questionRepoPG struct{ pool *pgxpool.Pool }

func NewQuestionRepoPG(pool *pgxpool.Pool) QuestionRepository {
	return &questionRepoPG{pool: pool}
}

func (r *questionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const questionCols = `id, survey_id, text_th, text_en, question_type, sort_order, required, created_at`

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.SurveyID, &q.TextTH, &q.TextEN, &q.Type, &q.Order, &q.Required, &q.CreatedAt)
	return &q, err
}

func (r *questionRepoPG) Create(ctx context.Context, q *Question) error {
	q.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO question (id, survey_id, text_th, text_en, question_type, sort_order, required)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		q.ID, q.SurveyID, q.TextTH, q.TextEN, q.Type, q.Order, q.Required,
	).Scan(&q.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("survey", q.SurveyID.String())
	}
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *questionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Question, error) {
	q, err := scanQuestion(r.conn(ctx).QueryRow(ctx, `SELECT `+questionCols+` FROM question WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("question", id.String())
	}
	return q, err
}

func (r *questionRepoPG) Update(ctx context.Context, q *Question) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE question SET text_th=$2, text_en=$3, question_type=$4, sort_order=$5, required=$6
		WHERE id = $1`,
		q.ID, q.TextTH, q.TextEN, q.Type, q.Order, q.Required)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("question", q.ID.String())
	}
	return nil
}

func (r *questionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM question WHERE id = $1`, id)
	return err
}

func (r *questionRepoPG) ListBySurvey(ctx context.Context, surveyID uuid.UUID) ([]*Question, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+questionCols+` FROM question WHERE survey_id = $1
		ORDER BY sort_order, created_at`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

func (r *questionRepoPG) CountBySurvey(ctx context.Context, surveyID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM question WHERE survey_id = $1`, surveyID).Scan(&n)
	return n, err
}

func (r *questionRepoPG) HasAnswers(ctx context.Context, questionID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM response_answer WHERE question_id = $1)`, questionID).Scan(&ok)
	return ok, err
}
