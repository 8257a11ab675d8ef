package staff

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

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type staffRepoPG struct{ pool *pgxpool.Pool }

func NewStaffRepoPG(pool *pgxpool.Pool) StaffRepository {
	return &staffRepoPG{pool: pool}
}

func (r *staffRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staffCols = `id, username, full_name, email, is_admin, line_user_id, is_active, created_at, updated_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Username, &s.FullName, &s.Email, &s.IsAdmin,
		&s.LineUserID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *staffRepoPG) collect(rows pgx.Rows) ([]*Staff, error) {
	defer rows.Close()
	var items []*Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *staffRepoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff (id, username, full_name, email, is_admin, line_user_id, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.Username, s.FullName, s.Email, s.IsAdmin, s.LineUserID, s.IsActive,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return apperr.Invalid("username", "already taken")
	}
	return err
}

func (r *staffRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	s, err := scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("staff", id.String())
	}
	return s, err
}

func (r *staffRepoPG) GetByUsername(ctx context.Context, username string) (*Staff, error) {
	s, err := scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE username = $1`, username))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("staff", username)
	}
	return s, err
}

func (r *staffRepoPG) Update(ctx context.Context, s *Staff) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET full_name=$2, email=$3, is_admin=$4, line_user_id=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.FullName, s.Email, s.IsAdmin, s.LineUserID, s.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("staff", s.ID.String())
	}
	return nil
}

func (r *staffRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	return err
}

func (r *staffRepoPG) List(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staffCols+` FROM staff ORDER BY username LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *staffRepoPG) ManagedPoints(ctx context.Context, staffID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ssp.service_point_id FROM staff_service_point ssp
		JOIN service_point sp ON sp.id = ssp.service_point_id
		WHERE ssp.staff_id = $1 ORDER BY sp.code`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *staffRepoPG) SetManagedPoints(ctx context.Context, staffID uuid.UUID, pointIDs []uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM staff_service_point WHERE staff_id = $1`, staffID); err != nil {
		return err
	}
	if len(pointIDs) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff_service_point (staff_id, service_point_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`, staffID, pointIDs)
	if db.IsForeignKeyViolation(err) {
		return apperr.Invalid("service_point_ids", "unknown service point")
	}
	if err != nil {
		return fmt.Errorf("assign service points: %w", err)
	}
	return nil
}

func (r *staffRepoPG) ListManagersOfPoint(ctx context.Context, pointID uuid.UUID) ([]*Staff, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, s.username, s.full_name, s.email, s.is_admin, s.line_user_id, s.is_active, s.created_at, s.updated_at
		FROM staff s JOIN staff_service_point ssp ON ssp.staff_id = s.id
		WHERE ssp.service_point_id = $1 AND s.is_active
		ORDER BY s.username`, pointID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *staffRepoPG) ListAdmins(ctx context.Context) ([]*Staff, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staffCols+` FROM staff WHERE is_admin AND is_active ORDER BY username`)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}
