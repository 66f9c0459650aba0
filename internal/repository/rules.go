package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mm-osint/newswire/internal/models"
)

// RulesRepository handles exclusion_rules table operations.
type RulesRepository struct {
	pool *pgxpool.Pool
}

// NewRulesRepository creates a new rules repository.
func NewRulesRepository(pool *pgxpool.Pool) *RulesRepository {
	return &RulesRepository{pool: pool}
}

// GetActive returns the rules the filter should apply, in creation order so
// older rules short-circuit first.
func (r *RulesRepository) GetActive(ctx context.Context) ([]models.ExclusionRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, rule_type, pattern, is_case_sensitive, is_active, description, created_at
		FROM exclusion_rules
		WHERE is_active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("get active rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// GetAll returns every rule, active or not.
func (r *RulesRepository) GetAll(ctx context.Context) ([]models.ExclusionRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, rule_type, pattern, is_case_sensitive, is_active, description, created_at
		FROM exclusion_rules
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("get rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// Create adds a new exclusion rule.
func (r *RulesRepository) Create(ctx context.Context, rule *models.ExclusionRule) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO exclusion_rules (rule_type, pattern, is_case_sensitive, is_active, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rule.RuleType, rule.Pattern, rule.IsCaseSensitive, rule.IsActive, rule.Description,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// SetActive toggles a rule without deleting its history.
func (r *RulesRepository) SetActive(ctx context.Context, id int, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE exclusion_rules SET is_active = $2 WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set rule active: rule %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]models.ExclusionRule, error) {
	var out []models.ExclusionRule
	for rows.Next() {
		var rule models.ExclusionRule
		if err := rows.Scan(
			&rule.ID, &rule.RuleType, &rule.Pattern,
			&rule.IsCaseSensitive, &rule.IsActive, &rule.Description, &rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
