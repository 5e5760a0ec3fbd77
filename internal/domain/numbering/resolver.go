package numbering

import (
	"context"
	"time"
)

// SelectRule picks the rule for (documentTypeCode, departmentCode, date) from rules.
//
// Candidates cover the type and are active on the date. Rules of the requested
// department win over generic ones; rules of other departments never apply.
// Among the winners the lowest Priority is chosen, then the lowest ID.
// Returns nil when nothing applies.
func SelectRule(rules []*Rule, documentTypeCode, departmentCode string, date time.Time) *Rule {
	var specific, generic *Rule

	for _, r := range rules {
		if r == nil || !r.AppliesTo(documentTypeCode) || !r.ActiveOn(date) {
			continue
		}
		switch {
		case r.DepartmentCode == nil:
			if precedes(r, generic) {
				generic = r
			}
		case *r.DepartmentCode == departmentCode:
			if precedes(r, specific) {
				specific = r
			}
		}
	}

	if specific != nil {
		return specific
	}
	return generic
}

// precedes reports whether a ranks before the current best b.
func precedes(a, b *Rule) bool {
	if b == nil {
		return true
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.ID < b.ID
}

// Resolver finds the applicable rule through a RuleStore.
type Resolver struct {
	store RuleStore
}

// NewResolver creates a resolver.
func NewResolver(store RuleStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the rule for req or a NO_APPLICABLE_RULE error.
// It only reads and takes no locks.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Rule, error) {
	rule, err := r.store.FindApplicableRule(ctx, req.DocumentTypeCode, req.DepartmentCode, DateOf(req.CreatedDate))
	if err != nil {
		return nil, storageErr(err)
	}
	if rule == nil {
		return nil, noApplicableRule(req.DocumentTypeCode, req.DepartmentCode, req.CreatedDate)
	}
	return rule, nil
}
