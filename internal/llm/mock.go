package llm

import (
	"context"

	"github.com/shopspring/decimal"
)

// MockAnalysis returns a canned analysis result. It performs no I/O and
// returns an equal, freshly allocated value on every call.
func MockAnalysis() *AnalysisResult {
	return &AnalysisResult{
		Name:            "Vintage Chair",
		Category:        "Furniture",
		Condition:       ConditionGood,
		EstimatedValue:  decimal.NewFromInt(45),
		ConfidenceScore: 0.75,
		Description:     "Classic wooden chair with minor wear. Sturdy construction. Good for dining or accent piece.",
		Insights:        "Comparable items sell for $40-60. Condition affects value. Local pickup recommended.",
	}
}

// MockAnalyzer is an Analyzer for environments where live calls are
// undesirable. It never fails.
type MockAnalyzer struct{}

// Analyze implements the Analyzer interface.
func (MockAnalyzer) Analyze(ctx context.Context, imageData []byte) (*AnalysisResult, error) {
	return MockAnalysis(), nil
}
