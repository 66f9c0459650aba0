package models

import "time"

// RuleType represents how an exclusion rule pattern is matched.
type RuleType string

// RuleType constants define the supported match modes.
const (
	RuleTypeExact    RuleType = "exact"
	RuleTypeContains RuleType = "contains"
)

// ExclusionRule is a pattern that rejects matching messages before
// persistence. Rules are managed by operators; the pipeline only reads them.
type ExclusionRule struct {
	ID              int      `json:"id" db:"id"`
	RuleType        RuleType `json:"rule_type" db:"rule_type"`
	Pattern         string   `json:"pattern" db:"pattern"`
	IsCaseSensitive bool     `json:"is_case_sensitive" db:"is_case_sensitive"`
	IsActive        bool     `json:"is_active" db:"is_active"`
	Description     *string  `json:"description,omitempty" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
