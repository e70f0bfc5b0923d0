package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hivewatch/hivewatch/internal/models"
)

// PostgresProductRepo implements ProductRepo using PostgreSQL.
type PostgresProductRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresProductRepo creates a new PostgreSQL-backed product repo.
func NewPostgresProductRepo(pool *pgxpool.Pool) *PostgresProductRepo {
	return &PostgresProductRepo{pool: pool}
}

const productColumns = `
	id, user_id, name, domain, description, category, project_id, billing_id,
	enabled, last_healthy, last_response_time_ms, last_health_check_at,
	consecutive_failures, created_at, updated_at`

// Get retrieves a product by ID, nil when not found.
func (r *PostgresProductRepo) Get(ctx context.Context, id string) (*models.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+productColumns+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListByUser returns the user's products ordered by name.
func (r *PostgresProductRepo) ListByUser(ctx context.Context, userID string) ([]*models.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+productColumns+` FROM products WHERE user_id = $1 ORDER BY name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListEnabled returns all enabled products across users.
func (r *PostgresProductRepo) ListEnabled(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+productColumns+` FROM products WHERE enabled ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// Create inserts a product row.
func (r *PostgresProductRepo) Create(ctx context.Context, p *models.Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products
			(id, user_id, name, domain, description, category, project_id,
			 billing_id, enabled, consecutive_failures, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.UserID, p.Name, p.Domain, nullString(p.Description),
		nullString(p.Category), nullString(p.ProjectID), nullString(p.BillingID),
		p.Enabled, p.ConsecutiveFailures, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// UpdateHealth records a scheduled health-check outcome. Failures reset
// on a healthy result and increment otherwise.
func (r *PostgresProductRepo) UpdateHealth(ctx context.Context, id string, healthy bool, responseTimeMS int64, checkedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE products SET
			last_healthy = $2,
			last_response_time_ms = $3,
			last_health_check_at = $4,
			consecutive_failures = CASE WHEN $2 THEN 0 ELSE consecutive_failures + 1 END,
			updated_at = $4
		WHERE id = $1
	`, id, healthy, responseTimeMS, checkedAt)
	if err != nil {
		return fmt.Errorf("failed to update product health: %w", err)
	}
	return nil
}

func collectProducts(rows pgx.Rows) ([]*models.Product, error) {
	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var description, category, projectID, billingID *string

	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Domain, &description,
		&category, &projectID, &billingID, &p.Enabled, &p.LastHealthy,
		&p.LastResponseTimeMS, &p.LastHealthCheckAt, &p.ConsecutiveFailures,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Description = deref(description)
	p.Category = deref(category)
	p.ProjectID = deref(projectID)
	p.BillingID = deref(billingID)
	return &p, nil
}

// PostgresSettingsRepo implements SettingsRepo using PostgreSQL.
type PostgresSettingsRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresSettingsRepo creates a new PostgreSQL-backed settings repo.
func NewPostgresSettingsRepo(pool *pgxpool.Pool) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{pool: pool}
}

// Thresholds returns the user's thresholds, defaults when none stored.
func (r *PostgresSettingsRepo) Thresholds(ctx context.Context, userID string) (models.SignalThresholds, error) {
	var t models.SignalThresholds
	err := r.pool.QueryRow(ctx, `
		SELECT traction_visits, degraded_response_time_ms, degraded_decline_pct
		FROM user_settings WHERE user_id = $1
	`, userID).Scan(&t.TractionVisits, &t.DegradedResponseTimeMS, &t.DegradedDeclinePct)

	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultThresholds(), nil
	}
	if err != nil {
		return models.SignalThresholds{}, fmt.Errorf("failed to get thresholds: %w", err)
	}
	return t, nil
}

// SaveThresholds upserts the user's thresholds.
func (r *PostgresSettingsRepo) SaveThresholds(ctx context.Context, userID string, t models.SignalThresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, traction_visits, degraded_response_time_ms, degraded_decline_pct)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			traction_visits = EXCLUDED.traction_visits,
			degraded_response_time_ms = EXCLUDED.degraded_response_time_ms,
			degraded_decline_pct = EXCLUDED.degraded_decline_pct
	`, userID, t.TractionVisits, t.DegradedResponseTimeMS, t.DegradedDeclinePct)
	if err != nil {
		return fmt.Errorf("failed to save thresholds: %w", err)
	}
	return nil
}
