package llm

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAnalysis(t *testing.T) {
	result := MockAnalysis()

	assert.Equal(t, "Vintage Chair", result.Name)
	assert.Equal(t, "Furniture", result.Category)
	assert.Equal(t, ConditionGood, result.Condition)
	assert.True(t, decimal.NewFromInt(45).Equal(result.EstimatedValue))
	assert.Equal(t, 0.75, result.ConfidenceScore)
}

func TestMockAnalysis_Deterministic(t *testing.T) {
	first := MockAnalysis()
	second := MockAnalysis()
	assert.Equal(t, first, second)

	// Each call returns its own value.
	first.Name = "changed"
	assert.Equal(t, "Vintage Chair", MockAnalysis().Name)
}

func TestMockAnalyzer_IgnoresInput(t *testing.T) {
	var a Analyzer = MockAnalyzer{}
	result, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, MockAnalysis(), result)
}

func TestParseCondition(t *testing.T) {
	for _, c := range Conditions {
		assert.Equal(t, c, ParseCondition(string(c)))
	}
	assert.Equal(t, ConditionGood, ParseCondition(""))
	assert.Equal(t, ConditionGood, ParseCondition("Excellent"))
}

func TestAnalysisPrompt(t *testing.T) {
	assert.Contains(t, analysisPrompt, "return ONLY valid JSON")
	assert.Contains(t, analysisPrompt, "new, likeNew, excellent, good, fair, poor")
	assert.Contains(t, analysisPrompt, "Home & Garden")
	assert.Contains(t, analysisPrompt, "Use realistic resale values (not retail).")
}
