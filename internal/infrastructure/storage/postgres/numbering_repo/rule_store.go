// Package numbering_repo provides the PostgreSQL implementation of numbering.RuleStore.
package numbering_repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"docnum/internal/core/apperror"
	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/storage/postgres"
)

const (
	rulesTable     = "numbering_rules"
	ruleTypesTable = "numbering_rule_document_types"

	pgForeignKeyViolation = "23503"
)

var ruleColumns = []string{
	"r.id",
	"r.rule_name",
	"r.template",
	"r.sequence_width",
	"r.department_code",
	"ARRAY(SELECT t.document_type_code FROM " + ruleTypesTable +
		" t WHERE t.rule_id = r.id ORDER BY t.document_type_code) AS document_type_codes",
	"r.effective_from",
	"r.effective_until",
	"r.priority",
	"r.created_at",
	"r.updated_at",
}

// Allocation is one statement: the conflict branch only fires below the
// limit, so an exhausted scope yields no row and the counter stays put.
const nextSequenceSQL = `
	INSERT INTO numbering_sequences AS s (rule_id, year, month, department_code, last_value)
	VALUES ($1, $2, $3, $4, 1)
	ON CONFLICT (rule_id, year, month, department_code)
	DO UPDATE SET last_value = s.last_value + 1, updated_at = NOW()
	WHERE s.last_value < $5
	RETURNING last_value
`

const setSequenceSQL = `
	INSERT INTO numbering_sequences AS s (rule_id, year, month, department_code, last_value)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (rule_id, year, month, department_code)
	DO UPDATE SET last_value = GREATEST(s.last_value, EXCLUDED.last_value), updated_at = NOW()
	RETURNING last_value
`

// Config names the table holding issued document numbers.
type Config struct {
	DocumentsTable       string // may be schema-qualified
	DocumentNumberColumn string
}

// DefaultConfig matches the bundled documents migration.
func DefaultConfig() Config {
	return Config{DocumentsTable: "documents", DocumentNumberColumn: "document_number"}
}

// RuleStore implements numbering.RuleStore and numbering.SequenceAdmin on PostgreSQL.
type RuleStore struct {
	txm   *postgres.TxManager
	audit *postgres.AuditService

	documentsTable string
	numberColumn   string
}

// Ensure compile-time interface compliance.
var (
	_ numbering.RuleStore     = (*RuleStore)(nil)
	_ numbering.SequenceAdmin = (*RuleStore)(nil)
)

// NewRuleStore creates the store. audit may be nil.
func NewRuleStore(txm *postgres.TxManager, audit *postgres.AuditService, cfg Config) *RuleStore {
	def := DefaultConfig()
	if cfg.DocumentsTable == "" {
		cfg.DocumentsTable = def.DocumentsTable
	}
	if cfg.DocumentNumberColumn == "" {
		cfg.DocumentNumberColumn = def.DocumentNumberColumn
	}
	return &RuleStore{
		txm:            txm,
		audit:          audit,
		documentsTable: pgx.Identifier(strings.Split(cfg.DocumentsTable, ".")).Sanitize(),
		numberColumn:   pgx.Identifier{cfg.DocumentNumberColumn}.Sanitize(),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func selectRules() squirrel.SelectBuilder {
	return Builder().Select(ruleColumns...).From(rulesTable + " r")
}

func findApplicableQuery(documentTypeCode, departmentCode string, date time.Time) squirrel.SelectBuilder {
	d := numbering.DateOf(date)
	return selectRules().
		Where("EXISTS (SELECT 1 FROM "+ruleTypesTable+" t WHERE t.rule_id = r.id AND t.document_type_code = ?)", documentTypeCode).
		Where("r.effective_from <= ?", d).
		Where("(r.effective_until IS NULL OR r.effective_until >= ?)", d).
		Where("(r.department_code = ? OR r.department_code IS NULL)", departmentCode).
		OrderBy("(r.department_code IS NULL)", "r.priority", "r.id").
		Limit(1)
}

// FindApplicableRule implements numbering.RuleStore. Ordering mirrors numbering.SelectRule.
func (s *RuleStore) FindApplicableRule(ctx context.Context, documentTypeCode, departmentCode string, date time.Time) (*numbering.Rule, error) {
	sql, args, err := findApplicableQuery(documentTypeCode, departmentCode, date).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rule numbering.Rule
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &rule, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, dbErr("find applicable rule", err)
	}
	return &rule, nil
}

// NextSequence implements numbering.RuleStore.
// The upsert runs in a managed transaction so DB_STATEMENT_TIMEOUT bounds row-lock waits.
func (s *RuleStore) NextSequence(ctx context.Context, scope numbering.SequenceScope, limit int64) (int64, error) {
	if limit < 1 {
		return 0, numbering.SequenceExhaustedError(scope, limit)
	}

	var value int64
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		err := s.txm.GetQuerier(ctx).QueryRow(ctx, nextSequenceSQL,
			scope.RuleID, scope.Year, scope.Month, scope.DepartmentCode, limit,
		).Scan(&value)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			return numbering.SequenceExhaustedError(scope, limit)
		case isForeignKeyViolation(err):
			return apperror.NewNotFound("numbering rule", scope.RuleID)
		default:
			return dbErr("next sequence", err)
		}
	})
	if err != nil {
		return 0, dbErr("next sequence", err)
	}
	return value, nil
}

// SetSequence implements numbering.SequenceAdmin.
func (s *RuleStore) SetSequence(ctx context.Context, scope numbering.SequenceScope, value int64) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var current int64
		err := s.txm.GetQuerier(ctx).QueryRow(ctx, setSequenceSQL,
			scope.RuleID, scope.Year, scope.Month, scope.DepartmentCode, value,
		).Scan(&current)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.NewNotFound("numbering rule", scope.RuleID)
			}
			return dbErr("set sequence", err)
		}
		if current > value {
			return numbering.SequenceRewindError(scope, current, value)
		}

		if s.audit == nil {
			return nil
		}
		entityID := fmt.Sprintf("%d/%04d-%02d/%s", scope.RuleID, scope.Year, scope.Month, scope.DepartmentCode)
		if err := s.audit.LogChange(ctx, postgres.EntityNumberingSequence, entityID, postgres.AuditActionAdvance,
			map[string]any{"scope": scope, "lastValue": value}); err != nil {
			return dbErr("audit sequence", err)
		}
		return nil
	})
}

func (s *RuleStore) numberExistsQuery(number string) squirrel.SelectBuilder {
	return Builder().
		Select("1").
		From(s.documentsTable).
		Where(squirrel.Eq{s.numberColumn: number}).
		Prefix("SELECT EXISTS (").
		Suffix(")")
}

// NumberExists implements numbering.RuleStore.
func (s *RuleStore) NumberExists(ctx context.Context, number string) (bool, error) {
	sql, args, err := s.numberExistsQuery(number).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := s.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, dbErr("number exists", err)
	}
	return exists, nil
}

// CreateRule implements numbering.RuleStore.
func (s *RuleStore) CreateRule(ctx context.Context, req numbering.CreateRuleRequest) (*numbering.Rule, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rule := &numbering.Rule{
		Name:              req.Name,
		Template:          req.Template,
		SequenceWidth:     req.SequenceWidth,
		DepartmentCode:    req.DepartmentCode,
		DocumentTypeCodes: req.DocumentTypeCodes,
		EffectiveFrom:     req.EffectiveFrom,
		EffectiveUntil:    req.EffectiveUntil,
		Priority:          req.Priority,
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := s.txm.GetQuerier(ctx)

		sql, args, err := insertRuleQuery(rule).ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if err := q.QueryRow(ctx, sql, args...).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return dbErr("insert rule", err)
		}

		sql, args, err = insertRuleTypesQuery(rule.ID, rule.DocumentTypeCodes).ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return dbErr("insert rule document types", err)
		}

		if s.audit != nil {
			if err := s.audit.LogChange(ctx, postgres.EntityNumberingRule, strconv.FormatInt(rule.ID, 10),
				postgres.AuditActionCreate, rule); err != nil {
				return dbErr("audit rule", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func insertRuleQuery(rule *numbering.Rule) squirrel.InsertBuilder {
	return Builder().
		Insert(rulesTable).
		Columns("rule_name", "template", "sequence_width", "department_code",
			"effective_from", "effective_until", "priority").
		Values(rule.Name, rule.Template, rule.SequenceWidth, rule.DepartmentCode,
			rule.EffectiveFrom, rule.EffectiveUntil, rule.Priority).
		Suffix("RETURNING id, created_at, updated_at")
}

func insertRuleTypesQuery(ruleID int64, codes []string) squirrel.InsertBuilder {
	q := Builder().Insert(ruleTypesTable).Columns("rule_id", "document_type_code")
	for _, c := range codes {
		q = q.Values(ruleID, c)
	}
	return q
}

// GetRuleByID implements numbering.RuleStore.
func (s *RuleStore) GetRuleByID(ctx context.Context, id int64) (*numbering.Rule, error) {
	sql, args, err := selectRules().Where(squirrel.Eq{"r.id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rule numbering.Rule
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &rule, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, dbErr("get rule", err)
	}
	return &rule, nil
}

func applyFilter(q squirrel.SelectBuilder, f numbering.RuleFilter) squirrel.SelectBuilder {
	switch {
	case f.DepartmentCode != nil:
		q = q.Where(squirrel.Eq{"r.department_code": *f.DepartmentCode})
	case f.GenericOnly:
		q = q.Where(squirrel.Eq{"r.department_code": nil})
	}
	if f.DocumentTypeCode != "" {
		q = q.Where("EXISTS (SELECT 1 FROM "+ruleTypesTable+" t WHERE t.rule_id = r.id AND t.document_type_code = ?)",
			f.DocumentTypeCode)
	}
	if f.ActiveOn != nil {
		q = q.Where("r.effective_from <= ?", *f.ActiveOn).
			Where("(r.effective_until IS NULL OR r.effective_until >= ?)", *f.ActiveOn)
	}
	if f.Name != "" {
		q = q.Where(squirrel.Eq{"r.rule_name": f.Name})
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"r.rule_name": pattern},
			squirrel.ILike{"r.template": pattern},
		})
	}
	return q
}

func searchQueries(f numbering.RuleFilter) (items, count squirrel.SelectBuilder) {
	items = applyFilter(selectRules(), f).
		OrderBy("r.id").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))
	count = applyFilter(Builder().Select("COUNT(*)").From(rulesTable+" r"), f)
	return items, count
}

// SearchRules implements numbering.RuleStore. Page and count come from one snapshot.
func (s *RuleStore) SearchRules(ctx context.Context, filter numbering.RuleFilter) (numbering.ListResult[*numbering.Rule], error) {
	filter = filter.Normalize()
	res := numbering.ListResult[*numbering.Rule]{Limit: filter.Limit, Offset: filter.Offset, Items: []*numbering.Rule{}}

	itemsQ, countQ := searchQueries(filter)
	itemsSQL, itemsArgs, err := itemsQ.ToSql()
	if err != nil {
		return res, fmt.Errorf("build query: %w", err)
	}
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return res, fmt.Errorf("build count: %w", err)
	}

	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		q := s.txm.GetQuerier(ctx)
		if err := pgxscan.Select(ctx, q, &res.Items, itemsSQL, itemsArgs...); err != nil {
			return dbErr("search rules", err)
		}
		if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
			return dbErr("count rules", err)
		}
		return nil
	})
	if err != nil {
		return numbering.ListResult[*numbering.Rule]{}, dbErr("search rules", err)
	}
	return res, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// dbErr wraps driver failures as transient storage errors; AppErrors pass through.
func dbErr(op string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewDatabase(fmt.Errorf("%s: %w", op, err))
}
