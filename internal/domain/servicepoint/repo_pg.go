package servicepoint

import (
	"context"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Service Group --

type groupRepoPG struct{ pool *pgxpool.Pool }

func NewGroupRepoPG(pool *pgxpool.Pool) GroupRepository {
	return &groupRepoPG{pool: pool}
}

func (r *groupRepoPG) Create(ctx context.Context, g *ServiceGroup) error {
	g.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO service_group (id, name) VALUES ($1, $2) RETURNING created_at`,
		g.ID, g.Name).Scan(&g.CreatedAt)
	if db.IsUniqueViolation(err, "") {
		return apperr.Invalid("name", "already exists")
	}
	return err
}

func (r *groupRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceGroup, error) {
	var g ServiceGroup
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, created_at FROM service_group WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("service group", id.String())
	}
	return &g, err
}

func (r *groupRepoPG) Update(ctx context.Context, g *ServiceGroup) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `UPDATE service_group SET name = $2 WHERE id = $1`, g.ID, g.Name)
	if db.IsUniqueViolation(err, "") {
		return apperr.Invalid("name", "already exists")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service group", g.ID.String())
	}
	return nil
}

func (r *groupRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM service_group WHERE id = $1`, id)
	return err
}

func (r *groupRepoPG) List(ctx context.Context) ([]*ServiceGroup, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT id, name, created_at FROM service_group ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ServiceGroup
	for rows.Next() {
		var g ServiceGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &g)
	}
	return items, rows.Err()
}

// -- Service Point --

type pointRepoPG struct{ pool *pgxpool.Pool }

func NewPointRepoPG(pool *pgxpool.Pool) PointRepository {
	return &pointRepoPG{pool: pool}
}

const (
	pointFrom = `service_point sp LEFT JOIN service_group g ON g.id = sp.group_id`
	pointCols = `sp.id, sp.code, sp.name, sp.group_id, g.name, sp.created_at, sp.updated_at`
)

func scanPoint(row pgx.Row) (*ServicePoint, error) {
	var p ServicePoint
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.GroupID, &p.GroupName, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *pointRepoPG) Create(ctx context.Context, p *ServicePoint) error {
	p.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO service_point (id, code, name, group_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		p.ID, p.Code, p.Name, p.GroupID).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapPointErr(err)
}

func (r *pointRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServicePoint, error) {
	p, err := scanPoint(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+pointCols+` FROM `+pointFrom+` WHERE sp.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("service point", id.String())
	}
	return p, err
}

func (r *pointRepoPG) Update(ctx context.Context, p *ServicePoint) error {
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		UPDATE service_point SET code = $2, name = $3, group_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Code, p.Name, p.GroupID).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("service point", p.ID.String())
	}
	return mapPointErr(err)
}

func (r *pointRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM service_point WHERE id = $1`, id)
	return err
}

func (r *pointRepoPG) List(ctx context.Context, f PointFilter, limit, offset int) ([]*ServicePoint, int, error) {
	q := db.NewQuery(pointFrom, pointCols)
	if f.GroupID != nil {
		q.Where("sp.group_id = $%d", *f.GroupID)
	}
	if f.Query != "" {
		q.Where("(sp.code ILIKE $%[1]d OR sp.name ILIKE $%[1]d)", "%"+f.Query+"%")
	}
	q.WhereIn("sp.id", f.Scope)
	q.OrderBy("sp.code")

	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := connFor(ctx, r.pool).Query(ctx, q.PageSQL(), q.PageArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ServicePoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func mapPointErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, ""):
		return apperr.Invalid("code", "already exists")
	case db.IsForeignKeyViolation(err):
		return apperr.Invalid("group_id", "unknown service group")
	}
	return err
}
