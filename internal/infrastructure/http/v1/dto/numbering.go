package dto

import (
	"encoding/json"
	"strings"
	"time"

	"docnum/internal/domain/numbering"
)

// --- Generation ---

// GenerateNumberRequest is the body of POST /document-numbers.
type GenerateNumberRequest struct {
	DocumentTypeCode string `json:"documentTypeCode"`
	DepartmentCode   string `json:"departmentCode"`
	CreatedDate      Date   `json:"createdDate"`
	CreatedBy        int64  `json:"createdBy"`
}

// ToDomain converts the request.
func (r GenerateNumberRequest) ToDomain() numbering.Request {
	return numbering.Request{
		DocumentTypeCode: r.DocumentTypeCode,
		DepartmentCode:   r.DepartmentCode,
		CreatedDate:      r.CreatedDate.Time,
		CreatedBy:        r.CreatedBy,
	}
}

// GeneratedNumberResponse is the result of a generation.
type GeneratedNumberResponse struct {
	DocumentNumber string `json:"documentNumber"`
	RuleID         int64  `json:"ruleId"`
	SequenceNumber int64  `json:"sequenceNumber"`
	TemplateUsed   string `json:"templateUsed"`
}

// FromGeneratedNumber converts a domain result.
func FromGeneratedNumber(g *numbering.GeneratedNumber) GeneratedNumberResponse {
	return GeneratedNumberResponse{
		DocumentNumber: g.DocumentNumber,
		RuleID:         g.RuleID,
		SequenceNumber: g.SequenceNumber,
		TemplateUsed:   g.TemplateUsed,
	}
}

// NumberExistsResponse answers GET /document-numbers/exists.
type NumberExistsResponse struct {
	Number string `json:"number"`
	Exists bool   `json:"exists"`
}

// --- Rules ---

// CreateRuleRequest is the body of POST /numbering-rules.
type CreateRuleRequest struct {
	RuleName          string   `json:"ruleName"`
	Template          string   `json:"template"`
	SequenceWidth     int      `json:"sequenceWidth"`
	DepartmentCode    *string  `json:"departmentCode"`
	DocumentTypeCodes []string `json:"documentTypeCodes"`
	EffectiveFrom     Date     `json:"effectiveFrom"`
	EffectiveUntil    *Date    `json:"effectiveUntil"`
	Priority          int      `json:"priority"`
}

// ToDomain converts the request.
func (r CreateRuleRequest) ToDomain() numbering.CreateRuleRequest {
	return numbering.CreateRuleRequest{
		Name:              r.RuleName,
		Template:          r.Template,
		SequenceWidth:     r.SequenceWidth,
		DepartmentCode:    r.DepartmentCode,
		DocumentTypeCodes: r.DocumentTypeCodes,
		EffectiveFrom:     r.EffectiveFrom.Time,
		EffectiveUntil:    r.EffectiveUntil.Ptr(),
		Priority:          r.Priority,
	}
}

// RuleResponse is a numbering rule.
type RuleResponse struct {
	ID                int64     `json:"id"`
	RuleName          string    `json:"ruleName"`
	Template          string    `json:"template"`
	SequenceWidth     int       `json:"sequenceWidth"`
	DepartmentCode    *string   `json:"departmentCode"`
	DocumentTypeCodes []string  `json:"documentTypeCodes"`
	EffectiveFrom     Date      `json:"effectiveFrom"`
	EffectiveUntil    *Date     `json:"effectiveUntil"`
	Priority          int       `json:"priority"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// FromRule converts a domain rule.
func FromRule(r *numbering.Rule) RuleResponse {
	resp := RuleResponse{
		ID:                r.ID,
		RuleName:          r.Name,
		Template:          r.Template,
		SequenceWidth:     r.SequenceWidth,
		DepartmentCode:    r.DepartmentCode,
		DocumentTypeCodes: r.DocumentTypeCodes,
		EffectiveFrom:     NewDate(r.EffectiveFrom),
		Priority:          r.Priority,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if resp.DocumentTypeCodes == nil {
		resp.DocumentTypeCodes = []string{}
	}
	if r.EffectiveUntil != nil {
		until := NewDate(*r.EffectiveUntil)
		resp.EffectiveUntil = &until
	}
	return resp
}

// FromRuleList converts a page of rules.
func FromRuleList(res numbering.ListResult[*numbering.Rule]) ListResponse[RuleResponse] {
	items := make([]RuleResponse, 0, len(res.Items))
	for _, r := range res.Items {
		items = append(items, FromRule(r))
	}
	return ListResponse[RuleResponse]{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}
}

// RuleListQuery binds GET /numbering-rules query parameters.
type RuleListQuery struct {
	Department   string `form:"department"`
	Generic      bool   `form:"generic"`
	DocumentType string `form:"documentType"`
	ActiveOn     string `form:"activeOn"`
	Name         string `form:"name"`
	Search       string `form:"search"`
	Limit        int    `form:"limit" binding:"min=0"`
	Offset       int    `form:"offset" binding:"min=0"`
}

// ToFilter converts the query; activeOn must be a date.
func (q RuleListQuery) ToFilter() (numbering.RuleFilter, error) {
	filter := numbering.RuleFilter{
		GenericOnly:      q.Generic,
		DocumentTypeCode: strings.TrimSpace(q.DocumentType),
		Name:             strings.TrimSpace(q.Name),
		Search:           strings.TrimSpace(q.Search),
		Limit:            q.Limit,
		Offset:           q.Offset,
	}
	if dept := strings.TrimSpace(q.Department); dept != "" {
		filter.DepartmentCode = &dept
	}
	if q.ActiveOn != "" {
		d, err := ParseDate(q.ActiveOn)
		if err != nil {
			return numbering.RuleFilter{}, err
		}
		filter.ActiveOn = &d.Time
	}
	return filter, nil
}

// --- Sequences ---

// AdvanceSequenceRequest is the body of PUT /numbering-rules/:id/sequences.
type AdvanceSequenceRequest struct {
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	DepartmentCode string `json:"departmentCode"`
	Value          int64  `json:"value"`
}

// Scope returns the counter scope under ruleID.
func (r AdvanceSequenceRequest) Scope(ruleID int64) numbering.SequenceScope {
	return numbering.SequenceScope{
		RuleID:         ruleID,
		Year:           r.Year,
		Month:          r.Month,
		DepartmentCode: r.DepartmentCode,
	}
}

// --- Audit ---

// AuditEntryResponse is one administrative change.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Changes   json.RawMessage `json:"changes"`
	CreatedAt time.Time       `json:"createdAt"`
}
