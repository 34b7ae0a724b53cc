// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

// MaxListLimit caps ListDecisions.
const MaxListLimit = 1000

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 && cfg.SQLitePath != MemoryPath {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const decisionColumns = `
	id, gender, married, dependents, education, self_employed, property_area,
	applicant_income, coapplicant_income, loan_amount, loan_amount_term, credit_history,
	approved, approval_probability, risk_score, suggested_interest_rate, fraud_flag,
	explanation, model_version, created_at`

// RecordDecision assigns an ID and timestamp and appends the decision.
// IDs are UUIDv7 so they sort by creation time.
func (r *SQLRepository) RecordDecision(ctx context.Context, d domain.Decision) (*domain.Decision, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate decision id: %w", err)
	}
	d.ID = id.String()
	// Microsecond precision survives a PostgreSQL round trip unchanged.
	d.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := `INSERT INTO decisions (` + decisionColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		d.ID, d.Gender, d.Married, d.Dependents, d.Education, d.SelfEmployed, d.PropertyArea,
		d.ApplicantIncome, d.CoapplicantIncome, d.LoanAmount, d.LoanAmountTerm, d.CreditHistory,
		boolToInt(d.Approved), d.ApprovalProbability, d.RiskScore, d.SuggestedInterestRate, boolToInt(d.FraudFlag),
		d.Explanation, d.ModelVersion, d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert decision: %w", err)
	}
	return &d, nil
}

// GetDecision retrieves a decision by ID.
func (r *SQLRepository) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}

	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE id = ?`

	d, err := scanDecision(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDecisions returns up to limit decisions, newest first.
func (r *SQLRepository) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT ` + decisionColumns + `
		FROM decisions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decisions := make([]*domain.Decision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

// DecisionStats aggregates all stored decisions.
func (r *SQLRepository) DecisionStats(ctx context.Context) (domain.Stats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN approved = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(risk_score), 0)
		FROM decisions
	`

	var total, approved int64
	var avgRisk float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total, &approved, &avgRisk); err != nil {
		return domain.Stats{}, fmt.Errorf("failed to aggregate decisions: %w", err)
	}

	return domain.NewStats(total, approved, avgRisk), nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*domain.Decision, error) {
	var d domain.Decision
	var approved, fraud int

	if err := row.Scan(
		&d.ID, &d.Gender, &d.Married, &d.Dependents, &d.Education, &d.SelfEmployed, &d.PropertyArea,
		&d.ApplicantIncome, &d.CoapplicantIncome, &d.LoanAmount, &d.LoanAmountTerm, &d.CreditHistory,
		&approved, &d.ApprovalProbability, &d.RiskScore, &d.SuggestedInterestRate, &fraud,
		&d.Explanation, &d.ModelVersion, &d.CreatedAt,
	); err != nil {
		return nil, err
	}

	d.Approved = approved == 1
	d.FraudFlag = fraud == 1
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
