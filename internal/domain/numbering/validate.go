package numbering

import (
	"slices"
	"strings"
	"unicode/utf8"

	"docnum/internal/core/apperror"
)

// Normalize trims the request's codes. Validate expects a normalized request.
func (r Request) Normalize() Request {
	r.DocumentTypeCode = strings.TrimSpace(r.DocumentTypeCode)
	r.DepartmentCode = strings.TrimSpace(r.DepartmentCode)
	return r
}

// Validate checks the request before resolution.
func (r Request) Validate() error {
	if r.DocumentTypeCode == "" {
		return invalid(CodeEmptyDocumentTypeCode, ErrEmptyDocumentTypeCode.Message)
	}
	if r.DepartmentCode == "" {
		return invalid(CodeEmptyDepartmentCode, ErrEmptyDepartmentCode.Message)
	}
	if r.CreatedBy < 1 {
		return invalid(CodeInvalidCreatedBy, ErrInvalidCreatedBy.Message).
			WithDetail("createdBy", r.CreatedBy)
	}
	if r.CreatedDate.IsZero() {
		return invalid(CodeInvalidCreatedDate, ErrInvalidCreatedDate.Message)
	}
	if y := r.CreatedDate.Year(); y < MinYear || y > MaxYear {
		return invalid(CodeInvalidCreatedDate, "created date year out of range").
			WithDetail("year", y)
	}
	return nil
}

// CodeLimit caps document type and department codes at Max characters.
// The zero value imposes no limit.
type CodeLimit struct {
	Max int
}

// DocumentType rejects a document type code longer than the limit.
func (l CodeLimit) DocumentType(code string) error {
	if l.Max > 0 && utf8.RuneCountInString(code) > l.Max {
		return invalid(CodeDocumentTypeTooLong, ErrDocumentTypeTooLong.Message).
			WithDetail("documentTypeCode", code).
			WithDetail("maxLength", l.Max)
	}
	return nil
}

// Department rejects a department code longer than the limit.
func (l CodeLimit) Department(code string) error {
	if l.Max > 0 && utf8.RuneCountInString(code) > l.Max {
		return invalid(CodeDepartmentTooLong, ErrDepartmentTooLong.Message).
			WithDetail("departmentCode", code).
			WithDetail("maxLength", l.Max)
	}
	return nil
}

// Request checks both codes of a generation request.
func (l CodeLimit) Request(r Request) error {
	if err := l.DocumentType(r.DocumentTypeCode); err != nil {
		return err
	}
	return l.Department(r.DepartmentCode)
}

// Rule checks the department and every document type code of a rule.
func (l CodeLimit) Rule(r CreateRuleRequest) error {
	if r.DepartmentCode != nil {
		if err := l.Department(*r.DepartmentCode); err != nil {
			return err
		}
	}
	for _, c := range r.DocumentTypeCodes {
		if err := l.DocumentType(c); err != nil {
			return err
		}
	}
	return nil
}

// Normalize trims text fields, turns a blank department into a generic rule,
// drops blank type codes, sorts and deduplicates the rest and truncates dates.
func (r CreateRuleRequest) Normalize() CreateRuleRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Template = strings.TrimSpace(r.Template)

	if r.DepartmentCode != nil {
		dept := strings.TrimSpace(*r.DepartmentCode)
		if dept == "" {
			r.DepartmentCode = nil
		} else {
			r.DepartmentCode = &dept
		}
	}

	codes := make([]string, 0, len(r.DocumentTypeCodes))
	for _, c := range r.DocumentTypeCodes {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	slices.Sort(codes)
	r.DocumentTypeCodes = slices.Compact(codes)

	r.EffectiveFrom = DateOf(r.EffectiveFrom)
	if r.EffectiveUntil != nil {
		until := DateOf(*r.EffectiveUntil)
		r.EffectiveUntil = &until
	}
	return r
}

// Validate checks a normalized create request. Checks run in a fixed order
// and the first failure is returned.
func (r CreateRuleRequest) Validate() error {
	if r.Name == "" {
		return invalid(CodeEmptyRuleName, ErrEmptyRuleName.Message)
	}
	if r.Template == "" {
		return invalid(CodeEmptyTemplate, ErrEmptyTemplate.Message)
	}
	if r.SequenceWidth < 1 || r.SequenceWidth > MaxSequenceWidth {
		return invalid(CodeInvalidSequenceDigits, ErrInvalidSequenceDigits.Message).
			WithDetail("sequenceWidth", r.SequenceWidth).
			WithDetail("max", MaxSequenceWidth)
	}
	if len(r.DocumentTypeCodes) == 0 {
		return invalid(CodeEmptyDocumentTypeCodes, ErrEmptyDocumentTypeCodes.Message)
	}
	if r.EffectiveFrom.IsZero() {
		return invalid(CodeInvalidEffectivePeriod, "effective from is required")
	}
	if y := r.EffectiveFrom.Year(); y < MinYear || y > MaxYear {
		return invalid(CodeInvalidEffectivePeriod, "effective from year out of range").
			WithDetail("year", y)
	}
	if r.EffectiveUntil != nil && r.EffectiveUntil.Before(r.EffectiveFrom) {
		return invalid(CodeInvalidEffectivePeriod, ErrInvalidEffectivePeriod.Message).
			WithDetail("effectiveFrom", r.EffectiveFrom.Format("2006-01-02")).
			WithDetail("effectiveUntil", r.EffectiveUntil.Format("2006-01-02"))
	}
	tmpl, err := ParseTemplate(r.Template)
	if err != nil {
		out := invalid(CodeInvalidTemplate, ErrInvalidTemplate.Message).WithCause(err)
		if te, ok := apperror.AsAppError(err); ok {
			out = out.WithDetail("reason", te.Message)
		}
		return out
	}
	// Without {seq} every number in a scope would render identically.
	if !tmpl.HasSequence() {
		return invalid(CodeInvalidTemplate, "template must contain a {seq} placeholder").
			WithDetail("template", r.Template)
	}
	return nil
}

// ValidateScope checks a counter scope used by administrative calls.
func ValidateScope(scope SequenceScope) error {
	switch {
	case scope.RuleID < 1:
		return invalid(CodeInvalidSequenceScope, "rule id must be positive")
	case scope.Year < MinYear || scope.Year > MaxYear:
		return invalid(CodeInvalidSequenceScope, "year out of range").WithDetail("year", scope.Year)
	case scope.Month < 1 || scope.Month > 12:
		return invalid(CodeInvalidSequenceScope, "month out of range").WithDetail("month", scope.Month)
	case strings.TrimSpace(scope.DepartmentCode) == "":
		return invalid(CodeInvalidSequenceScope, "department code must not be empty")
	}
	return nil
}
