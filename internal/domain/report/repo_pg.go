package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medai-lab/labdash/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const reportCols = `id, analysis_id, submitted_by, submitter_email, officer_email,
	pathologist_email, state, officer_comment, pathologist_comment,
	submitted_at, decided_at, verified_at, updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rp Report
	err := row.Scan(&rp.ID, &rp.AnalysisID, &rp.SubmittedBy, &rp.SubmitterEmail, &rp.OfficerEmail,
		&rp.PathologistEmail, &rp.State, &rp.OfficerComment, &rp.PathologistComment,
		&rp.SubmittedAt, &rp.DecidedAt, &rp.VerifiedAt, &rp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &rp, err
}

func (r *repoPG) Create(ctx context.Context, rp *Report) error {
	rp.ID = uuid.New()
	now := time.Now().UTC()
	rp.SubmittedAt = now
	rp.UpdatedAt = now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reports (id, analysis_id, submitted_by, submitter_email, officer_email,
			pathologist_email, state, officer_comment, pathologist_comment,
			submitted_at, decided_at, verified_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rp.ID, rp.AnalysisID, rp.SubmittedBy, rp.SubmitterEmail, rp.OfficerEmail,
		rp.PathologistEmail, rp.State, rp.OfficerComment, rp.PathologistComment,
		rp.SubmittedAt, rp.DecidedAt, rp.VerifiedAt, rp.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// Unique violation on analysis_id means a concurrent submission won.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSubmission
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return scanReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
}

func (r *repoPG) GetByAnalysis(ctx context.Context, analysisID uuid.UUID) (*Report, error) {
	return scanReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM reports WHERE analysis_id = $1`, analysisID))
}

func (r *repoPG) Update(ctx context.Context, rp *Report) error {
	rp.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE reports
		SET pathologist_email = $2, state = $3, officer_comment = $4,
			pathologist_comment = $5, decided_at = $6, verified_at = $7, updated_at = $8
		WHERE id = $1`,
		rp.ID, rp.PathologistEmail, rp.State, rp.OfficerComment,
		rp.PathologistComment, rp.DecidedAt, rp.VerifiedAt, rp.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ExistsForAnalysis(ctx context.Context, analysisID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reports WHERE analysis_id = $1)`, analysisID).Scan(&exists)
	return exists, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Report, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(clause string, v interface{}) {
		n++
		where += fmt.Sprintf(clause, n)
		args = append(args, v)
	}
	if f.State != "" {
		add(` AND state = $%d`, f.State)
	}
	if f.OfficerEmail != "" {
		add(` AND officer_email = $%d`, f.OfficerEmail)
	}
	if f.PathologistEmail != "" {
		add(` AND pathologist_email = $%d`, f.PathologistEmail)
	}
	if f.SubmittedBy != uuid.Nil {
		add(` AND submitted_by = $%d`, f.SubmittedBy)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + reportCols + ` FROM reports` + where +
		fmt.Sprintf(` ORDER BY submitted_at DESC, id DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rp)
	}
	return items, total, rows.Err()
}
