package response

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveyhos/surveyhos/internal/platform/apperr"
	"github.com/surveyhos/surveyhos/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type responseRepoPG struct{ pool *pgxpool.Pool }

func NewResponseRepoPG(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepoPG{pool: pool}
}

func (r *responseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// nullable stores empty strings as NULL.
func nullable[T ~string](v T) *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

const (
	responseFrom = `response r
		LEFT JOIN survey s ON s.id = r.survey_id
		LEFT JOIN service_point sp ON sp.id = r.service_point_id
		LEFT JOIN LATERAL (
			SELECT AVG(ra.rating)::float8 AS avg FROM response_answer ra WHERE ra.response_id = r.id
		) sc ON TRUE`
	responseCols = `r.id, r.survey_id, r.service_point_id, r.patient_type, r.respondent_role, r.benefit_plan,
		r.benefit_plan_other, r.age_range, r.gender, r.pdpa_accepted, r.client_ip, r.user_agent,
		r.started_at, r.submitted_at, s.title_th, s.version, sp.name, sc.avg`
)

func scanResponse(row pgx.Row) (*Response, error) {
	var (
		rs                                                     Response
		patientType, role, plan, planOther, age, gender, ip, ua *string
	)
	err := row.Scan(&rs.ID, &rs.SurveyID, &rs.ServicePointID, &patientType, &role, &plan,
		&planOther, &age, &gender, &rs.PDPAAccepted, &ip, &ua,
		&rs.StartedAt, &rs.SubmittedAt, &rs.SurveyTitle, &rs.SurveyVersion, &rs.ServicePointName, &rs.AvgScore)
	if err != nil {
		return nil, err
	}
	rs.PatientType = PatientType(deref(patientType))
	rs.RespondentRole = RespondentRole(deref(role))
	rs.BenefitPlan = BenefitPlan(deref(plan))
	rs.BenefitPlanOther = deref(planOther)
	rs.AgeRange = AgeRange(deref(age))
	rs.Gender = Gender(deref(gender))
	rs.ClientIP = deref(ip)
	rs.UserAgent = deref(ua)
	return &rs, nil
}

func (r *responseRepoPG) Create(ctx context.Context, rs *Response) error {
	rs.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO response (id, survey_id, service_point_id, patient_type, respondent_role, benefit_plan,
			benefit_plan_other, age_range, gender, pdpa_accepted, client_ip, user_agent, started_at, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rs.ID, rs.SurveyID, rs.ServicePointID, nullable(rs.PatientType), nullable(rs.RespondentRole),
		nullable(rs.BenefitPlan), nullable(rs.BenefitPlanOther), nullable(rs.AgeRange), nullable(rs.Gender),
		rs.PDPAAccepted, nullable(rs.ClientIP), nullable(rs.UserAgent), rs.StartedAt, rs.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (r *responseRepoPG) CreateAnswer(ctx context.Context, a *Answer) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO response_answer (id, response_id, question_id, rating, text_answer)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.ResponseID, a.QuestionID, a.Rating, a.Text)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (r *responseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Response, error) {
	rs, err := scanResponse(r.conn(ctx).QueryRow(ctx, `SELECT `+responseCols+` FROM `+responseFrom+` WHERE r.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("response", id.String())
	}
	return rs, err
}

func (r *responseRepoPG) ListAnswers(ctx context.Context, responseID uuid.UUID) ([]*Answer, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ra.id, ra.response_id, ra.question_id, ra.rating, ra.text_answer, q.text_th
		FROM response_answer ra LEFT JOIN question q ON q.id = ra.question_id
		WHERE ra.response_id = $1
		ORDER BY q.sort_order NULLS LAST, ra.id`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Answer
	for rows.Next() {
		var (
			a      Answer
			rating *int16
		)
		if err := rows.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &rating, &a.Text, &a.QuestionText); err != nil {
			return nil, err
		}
		if rating != nil {
			v := int(*rating)
			a.Rating = &v
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

// applyFilter adds the shared analytics predicates. r, s and sp must be in
// scope.
func applyFilter(q *db.Query, f Filter) {
	q.Where("r.submitted_at IS NOT NULL")
	if f.GroupID != nil {
		q.Where("sp.group_id = $%d", *f.GroupID)
	}
	if f.ServicePointID != nil {
		q.Where("r.service_point_id = $%d", *f.ServicePointID)
	}
	if f.SurveyID != nil {
		q.Where("r.survey_id = $%d", *f.SurveyID)
	}
	if f.From != nil {
		q.Where("r.submitted_at >= $%d", *f.From)
	}
	if f.To != nil {
		q.Where("r.submitted_at < $%d", *f.To)
	}
	q.WhereIn("r.service_point_id", f.Scope)
}

func (r *responseRepoPG) Results(ctx context.Context, f ResultFilter, limit, offset int) ([]*Response, int, error) {
	q := db.NewQuery(responseFrom, responseCols)
	applyFilter(q, f.Filter)
	if f.Score != nil {
		if f.Score.Max >= MaxRating {
			q.Where("sc.avg >= $%d AND sc.avg <= $%d", f.Score.Min, f.Score.Max)
		} else {
			q.Where("sc.avg >= $%d AND sc.avg < $%d", f.Score.Min, f.Score.Max)
		}
	}
	q.OrderBy("r.submitted_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.PageSQL(), q.PageArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Response
	for rows.Next() {
		rs, err := scanResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rs)
	}
	return items, total, rows.Err()
}

const suggestionFrom = `response_answer ra
		JOIN response r ON r.id = ra.response_id
		LEFT JOIN survey s ON s.id = r.survey_id
		LEFT JOIN question q ON q.id = ra.question_id
		LEFT JOIN service_point sp ON sp.id = r.service_point_id`

func (r *responseRepoPG) Suggestions(ctx context.Context, f SuggestionFilter, limit, offset int) ([]*Suggestion, int, error) {
	q := db.NewQuery(suggestionFrom,
		`ra.response_id, ra.question_id, q.text_th, ra.text_answer, r.service_point_id, sp.name, r.submitted_at`)
	applyFilter(q, f.Filter)
	q.Where("ra.text_answer IS NOT NULL AND ra.text_answer <> ''")
	if f.Query != "" {
		q.Where("ra.text_answer ILIKE $%d", "%"+f.Query+"%")
	}
	q.OrderBy("r.submitted_at DESC, ra.id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.PageSQL(), q.PageArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Suggestion
	for rows.Next() {
		var s Suggestion
		if err := rows.Scan(&s.ResponseID, &s.QuestionID, &s.QuestionText, &s.Text,
			&s.ServicePointID, &s.ServicePointName, &s.SubmittedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *responseRepoPG) Dashboard(ctx context.Context, f Filter) (*Dashboard, error) {
	d := &Dashboard{ByPoint: []PointCount{}, ByDay: []DayCount{}}
	if f.From != nil {
		d.From = *f.From
	}
	if f.To != nil {
		d.To = *f.To
	}

	q := db.NewQuery(responseFrom, `COUNT(*), AVG(sc.avg)::float8`)
	applyFilter(q, f)
	if err := r.conn(ctx).QueryRow(ctx, q.SQL(), q.Args()...).Scan(&d.Total, &d.AvgScore); err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}

	q = db.NewQuery(suggestionFrom, `COUNT(*)`)
	applyFilter(q, f)
	q.Where("ra.text_answer IS NOT NULL AND ra.text_answer <> ''")
	if err := r.conn(ctx).QueryRow(ctx, q.SQL(), q.Args()...).Scan(&d.Suggestions); err != nil {
		return nil, fmt.Errorf("dashboard suggestions: %w", err)
	}

	q = db.NewQuery(responseFrom, `sp.id, sp.name, COUNT(*), AVG(sc.avg)::float8`)
	applyFilter(q, f)
	q.Where("sp.id IS NOT NULL")
	rows, err := r.conn(ctx).Query(ctx, q.SQL()+` GROUP BY sp.id, sp.name ORDER BY COUNT(*) DESC, sp.name`, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("dashboard points: %w", err)
	}
	for rows.Next() {
		var pc PointCount
		if err := rows.Scan(&pc.ServicePointID, &pc.Name, &pc.Count, &pc.AvgScore); err != nil {
			rows.Close()
			return nil, err
		}
		d.ByPoint = append(d.ByPoint, pc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	q = db.NewQuery(responseFrom, `to_char(r.submitted_at, 'YYYY-MM-DD') AS day, COUNT(*)`)
	applyFilter(q, f)
	rows, err = r.conn(ctx).Query(ctx, q.SQL()+` GROUP BY day ORDER BY day`, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("dashboard days: %w", err)
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var (
			day string
			n   int
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		counts[day] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	d.ByDay = fillDays(d.From, d.To, counts)
	return d, nil
}

// fillDays lists every day in [from, to) with its count, zero when absent.
// Without bounds only the days present in counts are returned.
func fillDays(from, to time.Time, counts map[string]int) []DayCount {
	out := []DayCount{}
	if from.IsZero() || to.IsZero() {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, DayCount{Day: k, Count: counts[k]})
		}
		return out
	}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		out = append(out, DayCount{Day: key, Count: counts[key]})
	}
	return out
}

func (r *responseRepoPG) ExportRows(ctx context.Context, f Filter) ([]*ExportRow, error) {
	q := db.NewQuery(suggestionFrom, `r.id, r.submitted_at, sp.code, sp.name, s.title_th, s.version,
		r.patient_type, r.respondent_role, r.benefit_plan, r.benefit_plan_other, r.age_range, r.gender, r.pdpa_accepted,
		q.text_th, q.question_type, ra.rating, ra.text_answer`)
	applyFilter(q, f)
	q.OrderBy("r.submitted_at, r.id, q.sort_order NULLS LAST, ra.id")

	rows, err := r.conn(ctx).Query(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	defer rows.Close()
	var items []*ExportRow
	for rows.Next() {
		var (
			row                                              ExportRow
			patientType, role, plan, planOther, age, gender *string
			rating                                           *int16
		)
		if err := rows.Scan(&row.ResponseID, &row.SubmittedAt, &row.ServicePointCode, &row.ServicePointName,
			&row.SurveyTitle, &row.SurveyVersion, &patientType, &role, &plan, &planOther, &age, &gender,
			&row.Demographics.PDPAAccepted, &row.QuestionText, &row.QuestionType, &rating, &row.Text); err != nil {
			return nil, err
		}
		row.Demographics.PatientType = PatientType(deref(patientType))
		row.Demographics.RespondentRole = RespondentRole(deref(role))
		row.Demographics.BenefitPlan = BenefitPlan(deref(plan))
		row.Demographics.BenefitPlanOther = deref(planOther)
		row.Demographics.AgeRange = AgeRange(deref(age))
		row.Demographics.Gender = Gender(deref(gender))
		if rating != nil {
			v := int(*rating)
			row.Rating = &v
		}
		items = append(items, &row)
	}
	return items, rows.Err()
}
