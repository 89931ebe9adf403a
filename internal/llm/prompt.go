package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

const (
	maxNameLength       = 50
	maxInsightsWords    = 50
	descriptionMinWords = 100
	descriptionMaxWords = 200
)

const analysisPromptTemplate = `
	Analyze this item and return ONLY valid JSON in this exact format:
	{
	  "name": "brief item name (max %d chars)",
	  "category": "one of: %s",
	  "condition": "one of: %s",
	  "estimatedValue": 25.00,
	  "confidenceScore": 0.85,
	  "description": "detailed description for marketplace listings (%d-%d words)",
	  "insights": "brief analysis of value and condition (%d words max)"
	}
	Use realistic resale values (not retail). Be conservative with estimates.
`

// analysisPrompt is the instruction sent alongside every photo.
var analysisPrompt = buildAnalysisPrompt()

func buildAnalysisPrompt() string {
	conditions := make([]string, len(Conditions))
	for i, c := range Conditions {
		conditions[i] = string(c)
	}
	return strings.TrimSpace(dedent.Dedent(fmt.Sprintf(analysisPromptTemplate,
		maxNameLength,
		strings.Join(Categories, ", "),
		strings.Join(conditions, ", "),
		descriptionMinWords, descriptionMaxWords,
		maxInsightsWords,
	)))
}
