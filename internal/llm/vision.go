package llm

import (
	"context"

	"github.com/shopspring/decimal"
)

// Condition is the physical condition grade of an analyzed item.
type Condition string

const (
	ConditionNew       Condition = "new"
	ConditionLikeNew   Condition = "likeNew"
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

// Conditions lists every condition grade from best to worst.
var Conditions = []Condition{
	ConditionNew,
	ConditionLikeNew,
	ConditionExcellent,
	ConditionGood,
	ConditionFair,
	ConditionPoor,
}

// ParseCondition maps a raw condition string onto the closed set of grades.
// Anything unrecognized becomes ConditionGood.
func ParseCondition(s string) Condition {
	for _, c := range Conditions {
		if string(c) == s {
			return c
		}
	}
	return ConditionGood
}

// Categories is the vocabulary the model is asked to choose from. It is a
// prompting hint only: parsed results may carry any category string.
var Categories = []string{
	"Furniture",
	"Electronics",
	"Clothing",
	"Books",
	"Home & Garden",
	"Toys & Games",
	"Sports & Outdoors",
	"Tools",
	"Other",
}

// AnalysisResult is the validated identification and valuation of an item.
type AnalysisResult struct {
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Condition       Condition       `json:"condition"`
	EstimatedValue  decimal.Decimal `json:"estimatedValue"`
	ConfidenceScore float64         `json:"confidenceScore"`
	Description     string          `json:"description"`
	Insights        string          `json:"insights"`
}

// Analyzer can analyze a photo of an item and value it for resale.
type Analyzer interface {
	// Analyze takes JPEG image data and returns the identified item.
	Analyze(ctx context.Context, imageData []byte) (*AnalysisResult, error)
}

// CredentialHolder is implemented by analyzers that authenticate against a
// remote service.
type CredentialHolder interface {
	SetCredential(value string)
	Credential() string
}
