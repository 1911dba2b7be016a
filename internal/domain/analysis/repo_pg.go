package analysis

import (
	"context"
	"errors"
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

const analysisCols = `id, account_id, analyzed_by, patient_name,
	registration_number, ic_passport, gender, age, health_facility,
	slide_number, smear_type, collected_at, disease_type,
	ai_result, confidence_score, image_path, analyzed_at, created_at, updated_at`

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	err := row.Scan(&a.ID, &a.AccountID, &a.AnalyzedBy, &a.PatientName,
		&a.Patient.RegistrationNumber, &a.Patient.ICPassport, &a.Patient.Gender,
		&a.Patient.Age, &a.Patient.HealthFacility, &a.Patient.SlideNumber,
		&a.Patient.SmearType, &a.Patient.CollectedAt, &a.DiseaseType,
		&a.AIResult, &a.ConfidenceScore, &a.ImagePath, &a.AnalyzedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Analysis) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = now
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO analyses (id, account_id, analyzed_by, patient_name,
			registration_number, ic_passport, gender, age, health_facility,
			slide_number, smear_type, collected_at, disease_type,
			ai_result, confidence_score, image_path, analyzed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		a.ID, a.AccountID, a.AnalyzedBy, a.PatientName,
		a.Patient.RegistrationNumber, a.Patient.ICPassport, a.Patient.Gender,
		a.Patient.Age, a.Patient.HealthFacility, a.Patient.SlideNumber,
		a.Patient.SmearType, a.Patient.CollectedAt, a.DiseaseType,
		a.AIResult, a.ConfidenceScore, a.ImagePath, a.AnalyzedAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	return scanAnalysis(r.conn(ctx).QueryRow(ctx,
		`SELECT `+analysisCols+` FROM analyses WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Analysis) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE analyses
		SET patient_name = $2, registration_number = $3, ic_passport = $4,
			gender = $5, age = $6, health_facility = $7, slide_number = $8,
			smear_type = $9, collected_at = $10, disease_type = $11,
			ai_result = $12, confidence_score = $13, image_path = $14, updated_at = $15
		WHERE id = $1`,
		a.ID, a.PatientName, a.Patient.RegistrationNumber, a.Patient.ICPassport,
		a.Patient.Gender, a.Patient.Age, a.Patient.HealthFacility, a.Patient.SlideNumber,
		a.Patient.SmearType, a.Patient.CollectedAt, a.DiseaseType,
		a.AIResult, a.ConfidenceScore, a.ImagePath, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Analysis, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM analyses WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+analysisCols+` FROM analyses
		WHERE account_id = $1
		ORDER BY analyzed_at DESC, id DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Analysis, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+analysisCols+` FROM analyses
		ORDER BY analyzed_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func collect(rows pgx.Rows) ([]*Analysis, error) {
	var items []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
