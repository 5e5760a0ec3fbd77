package memory_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/storage/memory"
)

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, s *memory.RuleStore, req numbering.CreateRuleRequest) *numbering.Rule {
	t.Helper()
	r, err := s.CreateRule(context.Background(), req)
	require.NoError(t, err)
	return r
}

func contractRule(dept *string, priority int) numbering.CreateRuleRequest {
	return numbering.CreateRuleRequest{
		Name:              "contracts",
		Template:          "{department}-{year2}{seq:3}",
		SequenceWidth:     3,
		DepartmentCode:    dept,
		DocumentTypeCodes: []string{"C"},
		EffectiveFrom:     date(2025, 1, 1),
		Priority:          priority,
	}
}

func TestRuleStore_CreateGet(t *testing.T) {
	s := memory.NewRuleStore()
	ctx := context.Background()

	created := mustCreate(t, s, contractRule(ptr("T"), 1))
	assert.Equal(t, int64(1), created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	// Mutating the returned rule must not leak into the store.
	created.DocumentTypeCodes[0] = "Z"

	got, err := s.GetRuleByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, got.DocumentTypeCodes)

	missing, err := s.GetRuleByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRuleStore_CreateRule_Validates(t *testing.T) {
	s := memory.NewRuleStore()

	req := contractRule(nil, 1)
	req.Name = ""
	_, err := s.CreateRule(context.Background(), req)
	assert.ErrorIs(t, err, numbering.ErrEmptyRuleName)
}

func TestRuleStore_NextSequence_Concurrent(t *testing.T) {
	s := memory.NewRuleStore()
	scope := numbering.SequenceScope{RuleID: 1, Year: 2025, Month: 8, DepartmentCode: "T"}

	const n = 100
	values := make([]int64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.NextSequence(context.Background(), scope, numbering.Capacity(3))
			assert.NoError(t, err)
			values[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestRuleStore_NextSequence_ScopesAreIndependent(t *testing.T) {
	s := memory.NewRuleStore()
	ctx := context.Background()
	aug := numbering.SequenceScope{RuleID: 1, Year: 2025, Month: 8, DepartmentCode: "T"}
	sep := aug
	sep.Month = 9
	other := aug
	other.DepartmentCode = "X"

	for range 3 {
		_, err := s.NextSequence(ctx, aug, 999)
		require.NoError(t, err)
	}

	v, err := s.NextSequence(ctx, sep, 999)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = s.NextSequence(ctx, other, 999)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestRuleStore_NextSequence_Exhausted(t *testing.T) {
	s := memory.NewRuleStore()
	ctx := context.Background()
	scope := numbering.SequenceScope{RuleID: 1, Year: 2025, Month: 8, DepartmentCode: "T"}

	for want := int64(1); want <= 9; want++ {
		v, err := s.NextSequence(ctx, scope, numbering.Capacity(1))
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	_, err := s.NextSequence(ctx, scope, numbering.Capacity(1))
	assert.ErrorIs(t, err, numbering.ErrSequenceExhausted)
	assert.Equal(t, int64(9), s.CurrentSequence(scope), "exhaustion leaves the counter untouched")
}

func TestRuleStore_SetSequence(t *testing.T) {
	s := memory.NewRuleStore()
	ctx := context.Background()
	scope := numbering.SequenceScope{RuleID: 1, Year: 2025, Month: 8, DepartmentCode: "T"}

	require.NoError(t, s.SetSequence(ctx, scope, 500))
	v, err := s.NextSequence(ctx, scope, 999)
	require.NoError(t, err)
	assert.Equal(t, int64(501), v)

	require.NoError(t, s.SetSequence(ctx, scope, 501), "setting the current value is a no-op")
	assert.ErrorIs(t, s.SetSequence(ctx, scope, 10), numbering.ErrSequenceRewind)
}

func TestRuleStore_FindApplicableRule(t *testing.T) {
	s := memory.NewRuleStore()
	ctx := context.Background()

	specific := mustCreate(t, s, contractRule(ptr("T"), 5))
	generic := mustCreate(t, s, contractRule(nil, 1))

	expired := contractRule(ptr("X"), 1)
	expired.EffectiveUntil = ptr(date(2025, 3, 31))
	mustCreate(t, s, expired)

	got, err := s.FindApplicableRule(ctx, "C", "T", date(2025, 8, 17))
	require.NoError(t, err)
	assert.Equal(t, specific.ID, got.ID, "specific rule wins over generic")

	got, err = s.FindApplicableRule(ctx, "C", "Q", date(2025, 8, 17))
	require.NoError(t, err)
	assert.Equal(t, generic.ID, got.ID, "generic fallback")

	got, err = s.FindApplicableRule(ctx, "C", "X", date(2025, 8, 17))
	require.NoError(t, err)
	assert.Equal(t, generic.ID, got.ID, "expired specific rule no longer applies")

	got, err = s.FindApplicableRule(ctx, "C", "T", date(2024, 12, 31))
	require.NoError(t, err)
	assert.Nil(t, got, "nothing is effective before 2025")
}

func TestRuleStore_SearchRules(t *testing.T) {
	s := memory.NewRuleStore()
	ctx := context.Background()

	mustCreate(t, s, contractRule(ptr("T"), 1))
	mustCreate(t, s, contractRule(nil, 1))

	invoices := contractRule(ptr("T"), 1)
	invoices.Name = "Invoices"
	invoices.Template = "INV-{seq:6}"
	invoices.SequenceWidth = 6
	invoices.DocumentTypeCodes = []string{"I"}
	invoices.EffectiveUntil = ptr(date(2025, 6, 30))
	mustCreate(t, s, invoices)

	tests := []struct {
		name   string
		filter numbering.RuleFilter
		want   []int64
	}{
		{"all", numbering.RuleFilter{}, []int64{1, 2, 3}},
		{"department", numbering.RuleFilter{DepartmentCode: ptr("T")}, []int64{1, 3}},
		{"generic only", numbering.RuleFilter{GenericOnly: true}, []int64{2}},
		{"document type", numbering.RuleFilter{DocumentTypeCode: "I"}, []int64{3}},
		{"active on", numbering.RuleFilter{ActiveOn: ptr(date(2025, 8, 1))}, []int64{1, 2}},
		{"exact name", numbering.RuleFilter{Name: "Invoices"}, []int64{3}},
		{"search template", numbering.RuleFilter{Search: "inv-"}, []int64{3}},
		{"page", numbering.RuleFilter{Limit: 1, Offset: 1}, []int64{2}},
		{"past the end", numbering.RuleFilter{Offset: 10}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.SearchRules(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]int64, 0, len(res.Items))
			for _, r := range res.Items {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	res, err := s.SearchRules(ctx, numbering.RuleFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 1, res.Limit)
}

func TestRuleStore_NumberExists(t *testing.T) {
	s := memory.NewRuleStore()
	ctx := context.Background()

	exists, err := s.NumberExists(ctx, "T-25001")
	require.NoError(t, err)
	assert.False(t, exists)

	s.RegisterNumber("T-25001")
	exists, err = s.NumberExists(ctx, "T-25001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRuleStore_CancelledContext(t *testing.T) {
	s := memory.NewRuleStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.NextSequence(ctx, numbering.SequenceScope{RuleID: 1, Year: 2025, Month: 1, DepartmentCode: "T"}, 9)
	assert.ErrorIs(t, err, context.Canceled)
}
