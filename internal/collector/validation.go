package collector

import (
	"errors"
	"regexp"
	"strings"

	"github.com/mm-osint/newswire/internal/models"
)

// validation errors surfaced as 400s by the handler
var (
	ErrInvalidLimit         = errors.New("limit must not be negative")
	ErrEmptyChannelName     = errors.New("channel name must not be empty")
	ErrInvalidChannelName   = errors.New("channel name must be a valid telegram username")
	ErrChannelNotRegistered = errors.New("channel is not registered")
	ErrRulePatternRequired  = errors.New("rule pattern must not be empty")
	ErrInvalidRuleType      = errors.New("rule type must be exact or contains")
)

// telegram usernames: 5-32 chars, letters, digits and underscores,
// starting with a letter
var channelNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{4,31}$`)

// RunOptions selects what a collection run covers.
type RunOptions struct {
	// Channels restricts the run to these usernames. Empty means every
	// active channel.
	Channels []string `json:"channels,omitempty"`

	// Limit caps fetched messages per channel. Zero means no cap.
	Limit int `json:"limit,omitempty"`
}

// Validate normalizes the request in place and reports the first problem.
func (r *RunOptions) Validate() error {
	for i, name := range r.Channels {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if name == "" {
			return ErrEmptyChannelName
		}
		if !channelNameRe.MatchString(name) {
			return ErrInvalidChannelName
		}
		r.Channels[i] = name
	}
	if r.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// CreateChannelRequest registers a channel for collection.
type CreateChannelRequest struct {
	Name        string  `json:"name"`
	DisplayName *string `json:"display_name,omitempty"`
	Category    *string `json:"category,omitempty"`
}

func (r *CreateChannelRequest) Validate() error {
	r.Name = strings.TrimPrefix(strings.TrimSpace(r.Name), "@")
	if r.Name == "" {
		return ErrEmptyChannelName
	}
	if !channelNameRe.MatchString(r.Name) {
		return ErrInvalidChannelName
	}
	return nil
}

// CreateRuleRequest adds an exclusion rule.
type CreateRuleRequest struct {
	RuleType        string  `json:"rule_type"`
	Pattern         string  `json:"pattern"`
	IsCaseSensitive bool    `json:"is_case_sensitive,omitempty"`
	Description     *string `json:"description,omitempty"`
}

func (r *CreateRuleRequest) Validate() error {
	r.RuleType = strings.ToLower(strings.TrimSpace(r.RuleType))
	switch models.RuleType(r.RuleType) {
	case models.RuleTypeExact, models.RuleTypeContains:
	default:
		return ErrInvalidRuleType
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return ErrRulePatternRequired
	}
	return nil
}

// SetActiveRequest toggles a channel or rule.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}
