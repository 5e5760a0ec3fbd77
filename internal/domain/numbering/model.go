// Package numbering implements document number generation: rule resolution,
// per-scope sequence allocation and template rendering.
//
// Storage is abstracted behind RuleStore; the PostgreSQL implementation lives in
// infrastructure/storage/postgres/numbering_repo and an in-memory one in
// infrastructure/storage/memory.
package numbering

import (
	"slices"
	"time"
)

// MaxSequenceWidth is the widest zero-padded sequence a rule may declare.
// 10^18-1 still fits in int64.
const MaxSequenceWidth = 18

// Years a scope, request date or rendered number may carry.
const (
	MinYear = 1
	MaxYear = 9999
)

// Rule is a persisted numbering scheme.
// Rules are immutable once created; newer rules supersede older ones through
// a later EffectiveFrom or a lower Priority.
type Rule struct {
	ID                int64      `db:"id" json:"id"`
	Name              string     `db:"rule_name" json:"ruleName"`
	Template          string     `db:"template" json:"template"`
	SequenceWidth     int        `db:"sequence_width" json:"sequenceWidth"`
	DepartmentCode    *string    `db:"department_code" json:"departmentCode,omitempty"`
	DocumentTypeCodes []string   `db:"document_type_codes" json:"documentTypeCodes"`
	EffectiveFrom     time.Time  `db:"effective_from" json:"effectiveFrom"`
	EffectiveUntil    *time.Time `db:"effective_until" json:"effectiveUntil,omitempty"`
	Priority          int        `db:"priority" json:"priority"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsGeneric reports whether the rule applies to any department.
func (r *Rule) IsGeneric() bool {
	return r.DepartmentCode == nil
}

// AppliesTo reports whether the rule covers the document type.
func (r *Rule) AppliesTo(documentTypeCode string) bool {
	return slices.Contains(r.DocumentTypeCodes, documentTypeCode)
}

// ActiveOn reports whether date falls inside the rule's inclusive effective window.
func (r *Rule) ActiveOn(date time.Time) bool {
	d := DateOf(date)
	if d.Before(DateOf(r.EffectiveFrom)) {
		return false
	}
	if r.EffectiveUntil != nil && d.After(DateOf(*r.EffectiveUntil)) {
		return false
	}
	return true
}

// Clone returns a deep copy so callers can't mutate stored state.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.DocumentTypeCodes = slices.Clone(r.DocumentTypeCodes)
	if r.DepartmentCode != nil {
		dept := *r.DepartmentCode
		c.DepartmentCode = &dept
	}
	if r.EffectiveUntil != nil {
		until := *r.EffectiveUntil
		c.EffectiveUntil = &until
	}
	return &c
}

// SequenceScope keys one independent counter.
type SequenceScope struct {
	RuleID         int64  `json:"ruleId"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	DepartmentCode string `json:"departmentCode"`
}

// ScopeFor builds the counter scope of a request under rule.
func ScopeFor(rule *Rule, req Request) SequenceScope {
	return SequenceScope{
		RuleID:         rule.ID,
		Year:           req.CreatedDate.Year(),
		Month:          int(req.CreatedDate.Month()),
		DepartmentCode: req.DepartmentCode,
	}
}

// Request asks for a new document number.
type Request struct {
	DocumentTypeCode string
	DepartmentCode   string
	CreatedDate      time.Time
	CreatedBy        int64
}

// GeneratedNumber is the result of a successful generation.
// It is not stored by this service; callers persist DocumentNumber on their own records.
type GeneratedNumber struct {
	DocumentNumber string `json:"documentNumber"`
	RuleID         int64  `json:"ruleId"`
	SequenceNumber int64  `json:"sequenceNumber"`
	TemplateUsed   string `json:"templateUsed"`
}

// CreateRuleRequest carries the fields of a new rule.
type CreateRuleRequest struct {
	Name              string
	Template          string
	SequenceWidth     int
	DepartmentCode    *string
	DocumentTypeCodes []string
	EffectiveFrom     time.Time
	EffectiveUntil    *time.Time
	Priority          int
}

// RuleFilter narrows SearchRules.
type RuleFilter struct {
	// DepartmentCode restricts to rules of exactly this department.
	DepartmentCode *string
	// GenericOnly restricts to rules without a department. Ignored when DepartmentCode is set.
	GenericOnly bool
	// DocumentTypeCode restricts to rules covering this type.
	DocumentTypeCode string
	// ActiveOn restricts to rules whose window contains the date.
	ActiveOn *time.Time
	// Name matches the rule name exactly.
	Name string
	// Search is a case-insensitive substring match on name and template.
	Search string

	Limit  int
	Offset int
}

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// Normalize clamps pagination to sane bounds.
func (f RuleFilter) Normalize() RuleFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.ActiveOn != nil {
		d := DateOf(*f.ActiveOn)
		f.ActiveOn = &d
	}
	return f
}

// ListResult is a page of items plus the unpaginated total.
type ListResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
}

// DateOf truncates t to its calendar date at UTC midnight.
// The calendar day is taken from t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
