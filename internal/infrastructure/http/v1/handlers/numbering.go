package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docnum/internal/core/apperror"
	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/http/v1/dto"
	"docnum/internal/infrastructure/storage/postgres"
)

const defaultHistoryLimit = 50

// AuditHistory reads administrative changes. Nil disables the history route.
type AuditHistory interface {
	History(ctx context.Context, entityType, entityID string, limit int) ([]postgres.AuditEntry, error)
}

// NumberingHandler serves document number generation and rule administration.
type NumberingHandler struct {
	*BaseHandler
	service         *numbering.Service
	audit           AuditHistory
	generateTimeout time.Duration
}

// NewNumberingHandler creates a numbering handler.
// A zero generateTimeout leaves generation bounded only by the request context.
func NewNumberingHandler(base *BaseHandler, service *numbering.Service, audit AuditHistory, generateTimeout time.Duration) *NumberingHandler {
	return &NumberingHandler{
		BaseHandler:     base,
		service:         service,
		audit:           audit,
		generateTimeout: generateTimeout,
	}
}

// HasHistory reports whether an audit reader is configured.
func (h *NumberingHandler) HasHistory() bool {
	return h.audit != nil
}

// Generate handles POST /document-numbers.
func (h *NumberingHandler) Generate(c *gin.Context) {
	var req dto.GenerateNumberRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if h.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.generateTimeout)
		defer cancel()
	}

	result, err := h.service.GenerateDocumentNumber(ctx, req.ToDomain())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperror.New(apperror.CodeTimeout, "document number generation timed out", http.StatusGatewayTimeout).
				WithCause(err)
		}
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromGeneratedNumber(result))
}

// Exists handles GET /document-numbers/exists?number=.
func (h *NumberingHandler) Exists(c *gin.Context) {
	number := c.Query("number")

	exists, err := h.service.NumberExists(c.Request.Context(), number)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NumberExistsResponse{Number: number, Exists: exists})
}

// CreateRule handles POST /numbering-rules.
func (h *NumberingHandler) CreateRule(c *gin.Context) {
	var req dto.CreateRuleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromRule(rule))
}

// ListRules handles GET /numbering-rules.
func (h *NumberingHandler) ListRules(c *gin.Context) {
	var q dto.RuleListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid activeOn").WithDetail("error", err.Error()))
		return
	}

	res, err := h.service.SearchRules(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromRuleList(res))
}

// GetRule handles GET /numbering-rules/:id.
func (h *NumberingHandler) GetRule(c *gin.Context) {
	ruleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	rule, err := h.service.GetRule(c.Request.Context(), ruleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromRule(rule))
}

// AdvanceSequence handles PUT /numbering-rules/:id/sequences.
func (h *NumberingHandler) AdvanceSequence(c *gin.Context) {
	ruleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.AdvanceSequenceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.AdvanceSequence(c.Request.Context(), req.Scope(ruleID), req.Value); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// History handles GET /numbering-rules/:id/history.
func (h *NumberingHandler) History(c *gin.Context) {
	ruleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.service.GetRule(ctx, ruleID); err != nil {
		h.Error(c, err)
		return
	}

	limit := h.ParseIntQuery(c, "limit", defaultHistoryLimit)
	if limit < 1 || limit > numbering.MaxSearchLimit {
		limit = defaultHistoryLimit
	}

	entries, err := h.audit.History(ctx, postgres.EntityNumberingRule, strconv.FormatInt(ruleID, 10), limit)
	if err != nil {
		h.Error(c, apperror.NewDatabase(err))
		return
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.AuditEntryResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			UserID:    e.UserID,
			RequestID: e.RequestID,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		})
	}

	h.OK(c, gin.H{"items": items})
}
