package numbering

import (
	"fmt"
	"net/http"
	"time"

	"docnum/internal/core/apperror"
)

// Error codes
const (
	CodeEmptyRuleName          = "EMPTY_RULE_NAME"
	CodeEmptyTemplate          = "EMPTY_TEMPLATE"
	CodeInvalidSequenceDigits  = "INVALID_SEQUENCE_DIGITS"
	CodeEmptyDocumentTypeCodes = "EMPTY_DOCUMENT_TYPE_CODES"
	CodeInvalidEffectivePeriod = "INVALID_EFFECTIVE_PERIOD"
	CodeInvalidTemplate        = "INVALID_TEMPLATE"

	CodeEmptyDocumentTypeCode = "EMPTY_DOCUMENT_TYPE_CODE"
	CodeEmptyDepartmentCode   = "EMPTY_DEPARTMENT_CODE"
	CodeDocumentTypeTooLong   = "INVALID_DOCUMENT_TYPE_CODE_LENGTH"
	CodeDepartmentTooLong     = "INVALID_DEPARTMENT_CODE_LENGTH"
	CodeInvalidCreatedBy      = "INVALID_CREATED_BY"
	CodeInvalidCreatedDate    = "INVALID_CREATED_DATE"
	CodeInvalidSequenceScope  = "INVALID_SEQUENCE_SCOPE"

	CodeNoApplicableRule  = "NO_APPLICABLE_RULE"
	CodeSequenceExhausted = "SEQUENCE_EXHAUSTED"
	CodeTemplateError     = "TEMPLATE_ERROR"

	CodeDuplicateNumber = "DUPLICATE_NUMBER"
	CodeSequenceRewind  = "SEQUENCE_REWIND"
)

// Sentinels for errors.Is. AppError matches by code, so details attached
// to a returned error don't affect the comparison. Never mutate these.
var (
	ErrEmptyRuleName          = apperror.NewInvalidInput(CodeEmptyRuleName, "rule name must not be empty")
	ErrEmptyTemplate          = apperror.NewInvalidInput(CodeEmptyTemplate, "template must not be empty")
	ErrInvalidSequenceDigits  = apperror.NewInvalidInput(CodeInvalidSequenceDigits, "sequence width out of range")
	ErrEmptyDocumentTypeCodes = apperror.NewInvalidInput(CodeEmptyDocumentTypeCodes, "at least one document type code is required")
	ErrInvalidEffectivePeriod = apperror.NewInvalidInput(CodeInvalidEffectivePeriod, "effective until precedes effective from")
	ErrInvalidTemplate        = apperror.NewInvalidInput(CodeInvalidTemplate, "template is malformed")

	ErrEmptyDocumentTypeCode = apperror.NewInvalidInput(CodeEmptyDocumentTypeCode, "document type code must not be empty")
	ErrEmptyDepartmentCode   = apperror.NewInvalidInput(CodeEmptyDepartmentCode, "department code must not be empty")
	ErrDocumentTypeTooLong   = apperror.NewInvalidInput(CodeDocumentTypeTooLong, "document type code is too long")
	ErrDepartmentTooLong     = apperror.NewInvalidInput(CodeDepartmentTooLong, "department code is too long")
	ErrInvalidCreatedBy      = apperror.NewInvalidInput(CodeInvalidCreatedBy, "created by must be a positive identifier")
	ErrInvalidCreatedDate    = apperror.NewInvalidInput(CodeInvalidCreatedDate, "created date is required")
	ErrInvalidSequenceScope  = apperror.NewInvalidInput(CodeInvalidSequenceScope, "sequence scope is invalid")

	ErrNoApplicableRule  = apperror.NewBusinessRule(CodeNoApplicableRule, "no numbering rule applies")
	ErrSequenceExhausted = apperror.NewBusinessRule(CodeSequenceExhausted, "sequence exhausted")
	ErrTemplate          = apperror.NewBusinessRule(CodeTemplateError, "template error")

	ErrDuplicateNumber = apperror.NewConflict(CodeDuplicateNumber, "document number already exists")
	ErrSequenceRewind  = apperror.NewConflict(CodeSequenceRewind, "sequence cannot move backwards")
)

func invalid(code, message string) *apperror.AppError {
	return apperror.New(code, message, http.StatusBadRequest)
}

func noApplicableRule(documentTypeCode, departmentCode string, date time.Time) *apperror.AppError {
	return apperror.NewBusinessRule(CodeNoApplicableRule, "no numbering rule applies").
		WithDetail("documentTypeCode", documentTypeCode).
		WithDetail("departmentCode", departmentCode).
		WithDetail("date", DateOf(date).Format(time.DateOnly))
}

// SequenceExhaustedError reports that scope has no value left below limit.
func SequenceExhaustedError(scope SequenceScope, limit int64) *apperror.AppError {
	return apperror.NewBusinessRule(CodeSequenceExhausted,
		fmt.Sprintf("sequence exhausted: limit %d reached", limit)).
		WithDetail("ruleId", scope.RuleID).
		WithDetail("year", scope.Year).
		WithDetail("month", scope.Month).
		WithDetail("departmentCode", scope.DepartmentCode).
		WithDetail("limit", limit)
}

// SequenceRewindError reports an attempt to move a counter backwards.
func SequenceRewindError(scope SequenceScope, current, requested int64) *apperror.AppError {
	return apperror.NewConflict(CodeSequenceRewind,
		fmt.Sprintf("sequence is at %d, cannot set to %d", current, requested)).
		WithDetail("ruleId", scope.RuleID).
		WithDetail("current", current).
		WithDetail("requested", requested)
}

func templateError(template, message string) *apperror.AppError {
	return apperror.NewBusinessRule(CodeTemplateError, message).
		WithDetail("template", template)
}

func duplicateNumber(number string, attempts int) *apperror.AppError {
	return apperror.NewConflict(CodeDuplicateNumber,
		fmt.Sprintf("generated number %q already exists after %d attempts", number, attempts)).
		WithDetail("documentNumber", number).
		WithDetail("attempts", attempts)
}
