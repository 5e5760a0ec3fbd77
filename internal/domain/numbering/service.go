package numbering

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docnum/internal/core/apperror"
	"docnum/pkg/logger"
)

var tracer = otel.Tracer("docnum/numbering")

// DefaultMaxAttempts bounds allocations per request when VerifyUnique is on.
const DefaultMaxAttempts = 10

// ServiceConfig configures the numbering service.
type ServiceConfig struct {
	Store   RuleStore
	Metrics Metrics // Optional

	// VerifyUnique checks each rendered number with NumberExists and allocates
	// again on collision, up to MaxAttempts times.
	VerifyUnique bool
	MaxAttempts  int

	// MaxCodeLength caps document type and department codes; 0 disables the check.
	MaxCodeLength int
}

// Service issues document numbers and administers rules.
type Service struct {
	store     RuleStore
	resolver  *Resolver
	allocator *Allocator
	metrics   Metrics

	verifyUnique bool
	maxAttempts  int
	codeLimit    CodeLimit
}

// NewService creates a numbering service.
func NewService(cfg ServiceConfig) *Service {
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return &Service{
		store:        cfg.Store,
		resolver:     NewResolver(cfg.Store),
		allocator:    NewAllocator(cfg.Store),
		metrics:      m,
		verifyUnique: cfg.VerifyUnique,
		maxAttempts:  attempts,
		codeLimit:    CodeLimit{Max: cfg.MaxCodeLength},
	}
}

// GenerateDocumentNumber issues a new number for req.
//
// Every successful call consumes a sequence value. A value allocated before a
// later failure (render error, caller deadline) is not returned to the pool.
func (s *Service) GenerateDocumentNumber(ctx context.Context, req Request) (_ *GeneratedNumber, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "numbering.generate",
		trace.WithAttributes(
			attribute.String("numbering.document_type", req.DocumentTypeCode),
			attribute.String("numbering.department", req.DepartmentCode),
		))
	defer func() {
		s.metrics.ObserveGeneration(time.Since(started))
		if err != nil {
			s.metrics.GenerationFailed(errorCode(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, errorCode(err))
		}
		span.End()
	}()

	// 1. Validate
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.codeLimit.Request(req); err != nil {
		return nil, err
	}

	// 2. Resolve
	rule, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("numbering.rule_id", rule.ID))

	// 3. Parse before allocating so a broken template doesn't consume a value
	tmpl, err := ParseTemplate(rule.Template)
	if err != nil {
		if appErr, ok := apperror.AsAppError(err); ok {
			appErr.WithDetail("ruleId", rule.ID)
		}
		return nil, err
	}

	scope := ScopeFor(rule, req)
	width := tmpl.SequenceWidth(rule.SequenceWidth)
	rc := RenderContext{
		DepartmentCode:   req.DepartmentCode,
		DocumentTypeCode: req.DocumentTypeCode,
		Year:             scope.Year,
		Month:            scope.Month,
		SequenceWidth:    rule.SequenceWidth,
	}

	// 4-5. Allocate and render
	for attempt := 1; ; attempt++ {
		seq, err := s.allocator.Next(ctx, scope, width)
		if err != nil {
			return nil, err
		}

		rc.Sequence = seq
		number, err := tmpl.Render(rc)
		if err != nil {
			logger.Warn(ctx, "rendering failed after allocation, sequence value burnt",
				"rule_id", rule.ID, "sequence", seq, "error", err)
			return nil, err
		}

		if s.verifyUnique {
			exists, err := s.store.NumberExists(ctx, number)
			if err != nil {
				return nil, storageErr(err)
			}
			if exists {
				logger.Warn(ctx, "generated number already in use",
					"rule_id", rule.ID, "number", number, "attempt", attempt)
				if attempt >= s.maxAttempts {
					return nil, duplicateNumber(number, attempt)
				}
				continue
			}
		}

		s.metrics.NumberGenerated(rule.ID)
		logger.Info(ctx, "document number generated",
			"rule_id", rule.ID,
			"year", scope.Year,
			"month", scope.Month,
			"department", scope.DepartmentCode,
			"sequence", seq,
			"number", number,
			"created_by", req.CreatedBy,
		)

		return &GeneratedNumber{
			DocumentNumber: number,
			RuleID:         rule.ID,
			SequenceNumber: seq,
			TemplateUsed:   rule.Template,
		}, nil
	}
}

// CreateRule validates and persists a rule.
func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.codeLimit.Rule(req); err != nil {
		return nil, err
	}

	rule, err := s.store.CreateRule(ctx, req)
	if err != nil {
		return nil, storageErr(err)
	}

	logger.Info(ctx, "numbering rule created",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"document_types", rule.DocumentTypeCodes,
		"effective_from", rule.EffectiveFrom.Format(time.DateOnly),
	)
	return rule, nil
}

// GetRule returns a rule or NOT_FOUND.
func (s *Service) GetRule(ctx context.Context, id int64) (*Rule, error) {
	rule, err := s.store.GetRuleByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if rule == nil {
		return nil, apperror.NewNotFound("numbering rule", id)
	}
	return rule, nil
}

// SearchRules lists rules matching filter.
func (s *Service) SearchRules(ctx context.Context, filter RuleFilter) (ListResult[*Rule], error) {
	filter = filter.Normalize()
	if filter.DepartmentCode != nil {
		dept := strings.TrimSpace(*filter.DepartmentCode)
		filter.DepartmentCode = &dept
	}

	res, err := s.store.SearchRules(ctx, filter)
	if err != nil {
		return ListResult[*Rule]{}, storageErr(err)
	}
	if res.Items == nil {
		res.Items = []*Rule{}
	}
	return res, nil
}

// NumberExists reports whether a document already carries number.
func (s *Service) NumberExists(ctx context.Context, number string) (bool, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return false, apperror.NewValidation("number must not be empty")
	}
	exists, err := s.store.NumberExists(ctx, number)
	if err != nil {
		return false, storageErr(err)
	}
	return exists, nil
}

// AdvanceSequence sets the last issued value of scope, so numbering continues
// at value+1. The counter can only move forward.
func (s *Service) AdvanceSequence(ctx context.Context, scope SequenceScope, value int64) error {
	admin, ok := s.store.(SequenceAdmin)
	if !ok {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "store does not support sequence administration")
	}

	scope.DepartmentCode = strings.TrimSpace(scope.DepartmentCode)
	if err := ValidateScope(scope); err != nil {
		return err
	}

	rule, err := s.GetRule(ctx, scope.RuleID)
	if err != nil {
		return err
	}

	width := rule.SequenceWidth
	if tmpl, err := ParseTemplate(rule.Template); err == nil {
		width = tmpl.SequenceWidth(rule.SequenceWidth)
	}
	if limit := Capacity(width); value < 0 || value > limit {
		return invalid(CodeInvalidSequenceScope, "value outside the rule's sequence range").
			WithDetail("value", value).
			WithDetail("limit", limit)
	}

	if err := admin.SetSequence(ctx, scope, value); err != nil {
		return storageErr(err)
	}

	logger.Info(ctx, "sequence advanced",
		"rule_id", scope.RuleID,
		"year", scope.Year,
		"month", scope.Month,
		"department", scope.DepartmentCode,
		"value", value,
	)
	return nil
}

func errorCode(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeInternal
}
