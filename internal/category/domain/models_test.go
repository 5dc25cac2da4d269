package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := dec(v)
	return &d
}

func intPtr(v int) *int { return &v }

func defaultRules(t *testing.T) []CategoryRule {
	t.Helper()
	rules := RulesFromPolicy(config.DefaultCollectionsPolicy().DefaultCategoryRules)
	require.Len(t, rules, 3)
	return rules
}

func TestEvaluateDefaultRuleset(t *testing.T) {
	rules := defaultRules(t)

	tests := []struct {
		name        string
		balance     decimal.Decimal
		overdueDays int
		want        customerdomain.Category
		matched     bool
	}{
		{"large old debt lands in delta", dec(600000), 90, customerdomain.CategoryDelta, true},
		{"exactly on delta thresholds", dec(500000), 60, customerdomain.CategoryDelta, true},
		{"mid debt lands in gamma", dec(150000), 45, customerdomain.CategoryGamma, true},
		{"big balance but barely late is gamma", dec(600000), 30, customerdomain.CategoryGamma, true},
		{"any overdue balance is at least beta", dec(100), 1, customerdomain.CategoryBeta, true},
		{"nothing overdue matches no rule", dec(250000), 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := Evaluate(rules, tt.balance, tt.overdueDays)
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	// Two overlapping rules; the lower priority index must win even though
	// the second also matches.
	rules := []CategoryRule{
		{Priority: 1, MinBalance: decPtr(100), TargetCategory: customerdomain.CategoryGamma},
		{Priority: 2, MinBalance: decPtr(0), TargetCategory: customerdomain.CategoryBeta},
	}

	got, matched := Evaluate(rules, dec(500), 0)
	require.True(t, matched)
	assert.Equal(t, customerdomain.CategoryGamma, got)
}

func TestRuleMatchesInclusiveBounds(t *testing.T) {
	rule := CategoryRule{
		MinBalance:     decPtr(100),
		MaxBalance:     decPtr(200),
		MinOverdueDays: intPtr(10),
		MaxOverdueDays: intPtr(20),
	}

	assert.True(t, rule.Matches(dec(100), 10))
	assert.True(t, rule.Matches(dec(200), 20))
	assert.False(t, rule.Matches(dec(99), 15))
	assert.False(t, rule.Matches(dec(201), 15))
	assert.False(t, rule.Matches(dec(150), 9))
	assert.False(t, rule.Matches(dec(150), 21))
}

func TestRuleMatchesUnboundedSides(t *testing.T) {
	rule := CategoryRule{MinOverdueDays: intPtr(1)}

	assert.True(t, rule.Matches(dec(0), 1))
	assert.True(t, rule.Matches(decimal.NewFromInt(-500), 999), "nil balance bounds accept anything")
	assert.False(t, rule.Matches(dec(1000000), 0))
}

func TestRulesFromPolicyDropsUnknownTargets(t *testing.T) {
	rules := RulesFromPolicy([]config.DefaultCategoryRule{
		{Priority: 1, TargetCategory: "DELTA"},
		{Priority: 2, TargetCategory: "bogus"},
		{Priority: 3, TargetCategory: "beta"},
	})

	require.Len(t, rules, 2)
	assert.Equal(t, customerdomain.CategoryDelta, rules[0].TargetCategory)
	assert.Equal(t, customerdomain.CategoryBeta, rules[1].TargetCategory)
}
