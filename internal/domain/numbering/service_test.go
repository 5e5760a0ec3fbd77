package numbering

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docnum/internal/core/apperror"
)

type recordingMetrics struct {
	mu        sync.Mutex
	generated map[int64]int
	failed    map[string]int
	observed  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{generated: map[int64]int{}, failed: map[string]int{}}
}

func (m *recordingMetrics) NumberGenerated(ruleID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated[ruleID]++
}

func (m *recordingMetrics) GenerationFailed(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[code]++
}

func (m *recordingMetrics) ObserveGeneration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed++
}

func deptRule() *Rule {
	return &Rule{
		ID:                7,
		Name:              "Tokyo contracts",
		Template:          "{department}-{year2}{seq:3}",
		SequenceWidth:     5,
		DepartmentCode:    ptr("T"),
		DocumentTypeCodes: []string{"C"},
		EffectiveFrom:     date(2025, 1, 1),
		Priority:          1,
	}
}

func genRequest() Request {
	return Request{DocumentTypeCode: "C", DepartmentCode: "T", CreatedDate: date(2025, 8, 17), CreatedBy: 1}
}

func TestService_GenerateDocumentNumber(t *testing.T) {
	var gotScope SequenceScope
	var gotLimit int64

	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NextSequenceFunc: func(_ context.Context, scope SequenceScope, limit int64) (int64, error) {
			gotScope, gotLimit = scope, limit
			return 1, nil
		},
	}
	metrics := newRecordingMetrics()
	svc := NewService(ServiceConfig{Store: store, Metrics: metrics})

	got, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	require.NoError(t, err)

	assert.Equal(t, &GeneratedNumber{
		DocumentNumber: "T-25001",
		RuleID:         7,
		SequenceNumber: 1,
		TemplateUsed:   "{department}-{year2}{seq:3}",
	}, got)
	assert.Equal(t, SequenceScope{RuleID: 7, Year: 2025, Month: 8, DepartmentCode: "T"}, gotScope)
	assert.Equal(t, int64(999), gotLimit, "capacity follows the explicit {seq:3} width, not the rule default")
	assert.Equal(t, 1, metrics.generated[7])
	assert.Equal(t, 1, metrics.observed)
}

func TestService_GenerateDocumentNumber_ValidationSkipsStore(t *testing.T) {
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			t.Fatal("store must not be called for an invalid request")
			return nil, nil
		},
	}
	metrics := newRecordingMetrics()
	svc := NewService(ServiceConfig{Store: store, Metrics: metrics})

	req := genRequest()
	req.CreatedBy = 0

	_, err := svc.GenerateDocumentNumber(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidCreatedBy)
	assert.Equal(t, 1, metrics.failed[CodeInvalidCreatedBy])
}

func TestService_GenerateDocumentNumber_YearOutOfRangeDoesNotAllocate(t *testing.T) {
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NextSequenceFunc: func(context.Context, SequenceScope, int64) (int64, error) {
			t.Fatal("no sequence value may be consumed for an unrenderable year")
			return 0, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	req := genRequest()
	req.CreatedDate = date(0, 6, 1)

	_, err := svc.GenerateDocumentNumber(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidCreatedDate)
}

func TestService_GenerateDocumentNumber_CapacityFollowsTemplateWidth(t *testing.T) {
	wide := deptRule()
	wide.Template = "W{seq:5}"
	wide.SequenceWidth = 1

	var last int64 = 11
	var gotLimit int64
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return wide, nil
		},
		NextSequenceFunc: func(_ context.Context, scope SequenceScope, limit int64) (int64, error) {
			gotLimit = limit
			if last >= limit {
				return 0, SequenceExhaustedError(scope, limit)
			}
			last++
			return last, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	got, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	require.NoError(t, err)
	assert.Equal(t, "W00012", got.DocumentNumber)
	assert.Equal(t, int64(99999), gotLimit, "a one-digit rule default does not cap a {seq:5} template")

	last = 99999
	_, err = svc.GenerateDocumentNumber(context.Background(), genRequest())
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestService_MaxCodeLength(t *testing.T) {
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			t.Fatal("over-long codes must be rejected before resolution")
			return nil, nil
		},
		CreateRuleFunc: func(context.Context, CreateRuleRequest) (*Rule, error) {
			t.Fatal("over-long codes must be rejected before storage")
			return nil, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store, MaxCodeLength: 1})

	req := genRequest()
	req.DepartmentCode = "TK"
	_, err := svc.GenerateDocumentNumber(context.Background(), req)
	assert.ErrorIs(t, err, ErrDepartmentTooLong)

	rule := validRuleRequest()
	rule.DocumentTypeCodes = []string{"CT"}
	_, err = svc.CreateRule(context.Background(), rule)
	assert.ErrorIs(t, err, ErrDocumentTypeTooLong)
}

func TestService_GenerateDocumentNumber_NoApplicableRule(t *testing.T) {
	svc := NewService(ServiceConfig{Store: &MockRuleStore{}})

	req := Request{DocumentTypeCode: "Z", DepartmentCode: "X", CreatedDate: date(2025, 8, 17), CreatedBy: 1}
	_, err := svc.GenerateDocumentNumber(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoApplicableRule)
}

func TestService_GenerateDocumentNumber_BrokenTemplateDoesNotAllocate(t *testing.T) {
	broken := deptRule()
	broken.Template = "{部署コード}-{seq}"

	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return broken, nil
		},
		NextSequenceFunc: func(context.Context, SequenceScope, int64) (int64, error) {
			t.Fatal("allocation must not happen for an unparseable template")
			return 0, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	_, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplate)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(7), appErr.Details["ruleId"])
}

func TestService_GenerateDocumentNumber_Exhausted(t *testing.T) {
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NextSequenceFunc: func(_ context.Context, scope SequenceScope, limit int64) (int64, error) {
			return 0, SequenceExhaustedError(scope, limit)
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	_, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	assert.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestService_GenerateDocumentNumber_StoreOutOfRange(t *testing.T) {
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NextSequenceFunc: func(context.Context, SequenceScope, int64) (int64, error) {
			return 1000, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	_, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
}

func TestService_GenerateDocumentNumber_StorageError(t *testing.T) {
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NextSequenceFunc: func(context.Context, SequenceScope, int64) (int64, error) {
			return 0, context.DeadlineExceeded
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	_, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	assert.True(t, apperror.IsTransient(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestService_GenerateDocumentNumber_VerifyUnique(t *testing.T) {
	var next int64
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NextSequenceFunc: func(context.Context, SequenceScope, int64) (int64, error) {
			next++
			return next, nil
		},
		NumberExistsFunc: func(_ context.Context, number string) (bool, error) {
			return number == "T-25001" || number == "T-25002", nil
		},
	}
	svc := NewService(ServiceConfig{Store: store, VerifyUnique: true})

	got, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	require.NoError(t, err)
	assert.Equal(t, "T-25003", got.DocumentNumber)
	assert.Equal(t, int64(3), got.SequenceNumber)
}

func TestService_GenerateDocumentNumber_VerifyUniqueGivesUp(t *testing.T) {
	var allocations int
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NextSequenceFunc: func(context.Context, SequenceScope, int64) (int64, error) {
			allocations++
			return int64(allocations), nil
		},
		NumberExistsFunc: func(context.Context, string) (bool, error) {
			return true, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store, VerifyUnique: true, MaxAttempts: 4})

	_, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	assert.ErrorIs(t, err, ErrDuplicateNumber)
	assert.Equal(t, 4, allocations)
}

func TestService_GenerateDocumentNumber_VerifyUniqueOffByDefault(t *testing.T) {
	store := &MockRuleStore{
		FindApplicableRuleFunc: func(context.Context, string, string, time.Time) (*Rule, error) {
			return deptRule(), nil
		},
		NumberExistsFunc: func(context.Context, string) (bool, error) {
			t.Fatal("NumberExists must not gate generation unless enabled")
			return false, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	_, err := svc.GenerateDocumentNumber(context.Background(), genRequest())
	assert.NoError(t, err)
}

func TestService_CreateRule(t *testing.T) {
	var persisted CreateRuleRequest
	store := &MockRuleStore{
		CreateRuleFunc: func(_ context.Context, req CreateRuleRequest) (*Rule, error) {
			persisted = req
			return &Rule{ID: 12, Name: req.Name, Template: req.Template, DocumentTypeCodes: req.DocumentTypeCodes,
				EffectiveFrom: req.EffectiveFrom}, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	req := validRuleRequest()
	req.Name = "  Contracts  "
	req.DocumentTypeCodes = []string{"C", "C", " A"}

	got, err := svc.CreateRule(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.ID)
	assert.Equal(t, "Contracts", persisted.Name)
	assert.Equal(t, []string{"A", "C"}, persisted.DocumentTypeCodes)

	req.SequenceWidth = 0
	_, err = svc.CreateRule(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidSequenceDigits)
}

func TestService_GetRule_NotFound(t *testing.T) {
	svc := NewService(ServiceConfig{Store: &MockRuleStore{}})

	_, err := svc.GetRule(context.Background(), 99)
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_NumberExists(t *testing.T) {
	store := &MockRuleStore{
		NumberExistsFunc: func(_ context.Context, number string) (bool, error) {
			return number == "T-25001", nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	exists, err := svc.NumberExists(context.Background(), " T-25001 ")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.NumberExists(context.Background(), " ")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_SearchRules_NormalizesFilter(t *testing.T) {
	var got RuleFilter
	store := &MockRuleStore{
		SearchRulesFunc: func(_ context.Context, f RuleFilter) (ListResult[*Rule], error) {
			got = f
			return ListResult[*Rule]{Limit: f.Limit, Offset: f.Offset}, nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})

	res, err := svc.SearchRules(context.Background(), RuleFilter{Limit: 10_000, Offset: -3, DepartmentCode: ptr(" T ")})
	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit, got.Limit)
	assert.Equal(t, 0, got.Offset)
	assert.Equal(t, "T", *got.DepartmentCode)
	assert.NotNil(t, res.Items)
}

func TestService_AdvanceSequence(t *testing.T) {
	scope := SequenceScope{RuleID: 7, Year: 2025, Month: 8, DepartmentCode: "T"}

	var setTo int64
	store := &MockRuleStore{
		GetRuleByIDFunc: func(_ context.Context, id int64) (*Rule, error) {
			if id == 7 {
				return deptRule(), nil
			}
			return nil, nil
		},
		SetSequenceFunc: func(_ context.Context, _ SequenceScope, value int64) error {
			setTo = value
			return nil
		},
	}
	svc := NewService(ServiceConfig{Store: store})
	ctx := context.Background()

	require.NoError(t, svc.AdvanceSequence(ctx, scope, 120))
	assert.Equal(t, int64(120), setTo)

	err := svc.AdvanceSequence(ctx, scope, 1000)
	assert.ErrorIs(t, err, ErrInvalidSequenceScope, "{seq:3} caps the counter at 999")

	missing := scope
	missing.RuleID = 8
	assert.True(t, apperror.IsNotFound(svc.AdvanceSequence(ctx, missing, 1)))

	bad := scope
	bad.Month = 0
	assert.ErrorIs(t, svc.AdvanceSequence(ctx, bad, 1), ErrInvalidSequenceScope)
}
