package numbering

import (
	"context"
	"time"
)

// MockRuleStore is a test implementation of RuleStore and SequenceAdmin.
// Nil funcs fall back to harmless defaults.
type MockRuleStore struct {
	FindApplicableRuleFunc func(ctx context.Context, documentTypeCode, departmentCode string, date time.Time) (*Rule, error)
	NextSequenceFunc       func(ctx context.Context, scope SequenceScope, limit int64) (int64, error)
	NumberExistsFunc       func(ctx context.Context, number string) (bool, error)
	CreateRuleFunc         func(ctx context.Context, req CreateRuleRequest) (*Rule, error)
	GetRuleByIDFunc        func(ctx context.Context, id int64) (*Rule, error)
	SearchRulesFunc        func(ctx context.Context, filter RuleFilter) (ListResult[*Rule], error)
	SetSequenceFunc        func(ctx context.Context, scope SequenceScope, value int64) error
}

// FindApplicableRule implements RuleStore.
func (m *MockRuleStore) FindApplicableRule(ctx context.Context, documentTypeCode, departmentCode string, date time.Time) (*Rule, error) {
	if m.FindApplicableRuleFunc != nil {
		return m.FindApplicableRuleFunc(ctx, documentTypeCode, departmentCode, date)
	}
	return nil, nil
}

// NextSequence implements RuleStore.
func (m *MockRuleStore) NextSequence(ctx context.Context, scope SequenceScope, limit int64) (int64, error) {
	if m.NextSequenceFunc != nil {
		return m.NextSequenceFunc(ctx, scope, limit)
	}
	return 1, nil
}

// NumberExists implements RuleStore.
func (m *MockRuleStore) NumberExists(ctx context.Context, number string) (bool, error) {
	if m.NumberExistsFunc != nil {
		return m.NumberExistsFunc(ctx, number)
	}
	return false, nil
}

// CreateRule implements RuleStore.
func (m *MockRuleStore) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	if m.CreateRuleFunc != nil {
		return m.CreateRuleFunc(ctx, req)
	}
	return &Rule{
		ID:                1,
		Name:              req.Name,
		Template:          req.Template,
		SequenceWidth:     req.SequenceWidth,
		DepartmentCode:    req.DepartmentCode,
		DocumentTypeCodes: req.DocumentTypeCodes,
		EffectiveFrom:     req.EffectiveFrom,
		EffectiveUntil:    req.EffectiveUntil,
		Priority:          req.Priority,
	}, nil
}

// GetRuleByID implements RuleStore.
func (m *MockRuleStore) GetRuleByID(ctx context.Context, id int64) (*Rule, error) {
	if m.GetRuleByIDFunc != nil {
		return m.GetRuleByIDFunc(ctx, id)
	}
	return nil, nil
}

// SearchRules implements RuleStore.
func (m *MockRuleStore) SearchRules(ctx context.Context, filter RuleFilter) (ListResult[*Rule], error) {
	if m.SearchRulesFunc != nil {
		return m.SearchRulesFunc(ctx, filter)
	}
	return ListResult[*Rule]{Limit: filter.Limit, Offset: filter.Offset}, nil
}

// SetSequence implements SequenceAdmin.
func (m *MockRuleStore) SetSequence(ctx context.Context, scope SequenceScope, value int64) error {
	if m.SetSequenceFunc != nil {
		return m.SetSequenceFunc(ctx, scope, value)
	}
	return nil
}

// Ensure compile-time interface compliance.
var (
	_ RuleStore     = (*MockRuleStore)(nil)
	_ SequenceAdmin = (*MockRuleStore)(nil)
)
