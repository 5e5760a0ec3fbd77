// Package memory provides an in-memory numbering store for local development and tests.
// It is correct within one process only; deployments with several instances
// must share the PostgreSQL store.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"docnum/internal/domain/numbering"
)

// RuleStore keeps rules, counters and known document numbers in maps.
type RuleStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	rules    map[int64]*numbering.Rule
	counters map[numbering.SequenceScope]int64
	numbers  map[string]struct{}
}

// Ensure compile-time interface compliance.
var (
	_ numbering.RuleStore     = (*RuleStore)(nil)
	_ numbering.SequenceAdmin = (*RuleStore)(nil)
)

// NewRuleStore returns an empty store.
func NewRuleStore() *RuleStore {
	return &RuleStore{
		now:      func() time.Time { return time.Now().UTC() },
		rules:    make(map[int64]*numbering.Rule),
		counters: make(map[numbering.SequenceScope]int64),
		numbers:  make(map[string]struct{}),
	}
}

// FindApplicableRule implements numbering.RuleStore.
func (s *RuleStore) FindApplicableRule(ctx context.Context, documentTypeCode, departmentCode string, date time.Time) (*numbering.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*numbering.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, r)
	}
	return numbering.SelectRule(rules, documentTypeCode, departmentCode, date).Clone(), nil
}

// NextSequence implements numbering.RuleStore. The read-increment-write runs
// under the store's write lock.
func (s *RuleStore) NextSequence(ctx context.Context, scope numbering.SequenceScope, limit int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.counters[scope]
	if current >= limit {
		return 0, numbering.SequenceExhaustedError(scope, limit)
	}
	current++
	s.counters[scope] = current
	return current, nil
}

// SetSequence implements numbering.SequenceAdmin.
func (s *RuleStore) SetSequence(ctx context.Context, scope numbering.SequenceScope, value int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.counters[scope]; current > value {
		return numbering.SequenceRewindError(scope, current, value)
	}
	s.counters[scope] = value
	return nil
}

// CurrentSequence returns the last issued value of scope, 0 for a fresh scope.
func (s *RuleStore) CurrentSequence(scope numbering.SequenceScope) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[scope]
}

// NumberExists implements numbering.RuleStore.
func (s *RuleStore) NumberExists(ctx context.Context, number string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.numbers[number]
	return ok, nil
}

// RegisterNumber records number as used by a document.
// Stands in for the documents table the PostgreSQL store queries.
func (s *RuleStore) RegisterNumber(number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers[number] = struct{}{}
}

// CreateRule implements numbering.RuleStore.
func (s *RuleStore) CreateRule(ctx context.Context, req numbering.CreateRuleRequest) (*numbering.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	rule := &numbering.Rule{
		ID:                s.nextID,
		Name:              req.Name,
		Template:          req.Template,
		SequenceWidth:     req.SequenceWidth,
		DepartmentCode:    req.DepartmentCode,
		DocumentTypeCodes: req.DocumentTypeCodes,
		EffectiveFrom:     req.EffectiveFrom,
		EffectiveUntil:    req.EffectiveUntil,
		Priority:          req.Priority,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// Store a copy so the caller can't mutate it.
	s.rules[rule.ID] = rule.Clone()
	return rule, nil
}

// GetRuleByID implements numbering.RuleStore.
func (s *RuleStore) GetRuleByID(ctx context.Context, id int64) (*numbering.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

// SearchRules implements numbering.RuleStore.
func (s *RuleStore) SearchRules(ctx context.Context, filter numbering.RuleFilter) (numbering.ListResult[*numbering.Rule], error) {
	if err := ctx.Err(); err != nil {
		return numbering.ListResult[*numbering.Rule]{}, err
	}
	filter = filter.Normalize()

	s.mu.RLock()
	matched := make([]*numbering.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if matches(r, filter) {
			matched = append(matched, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	res := numbering.ListResult[*numbering.Rule]{
		TotalCount: len(matched),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		Items:      []*numbering.Rule{},
	}
	if filter.Offset >= len(matched) {
		return res, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	res.Items = matched[filter.Offset:end]
	return res, nil
}

func matches(r *numbering.Rule, f numbering.RuleFilter) bool {
	switch {
	case f.DepartmentCode != nil:
		if r.DepartmentCode == nil || *r.DepartmentCode != *f.DepartmentCode {
			return false
		}
	case f.GenericOnly:
		if r.DepartmentCode != nil {
			return false
		}
	}
	if f.DocumentTypeCode != "" && !slices.Contains(r.DocumentTypeCodes, f.DocumentTypeCode) {
		return false
	}
	if f.ActiveOn != nil && !r.ActiveOn(*f.ActiveOn) {
		return false
	}
	if f.Name != "" && r.Name != f.Name {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Template), needle) {
			return false
		}
	}
	return true
}
