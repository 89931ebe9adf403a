package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultConfidenceScore = 0.5

// chatEnvelope is the outer chat completions response. Only the fields the
// parser reads are modeled.
type chatEnvelope struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ParseResponse extracts the analysis result from the raw body of a
// successful chat completions response.
func ParseResponse(body []byte) (*AnalysisResult, error) {
	content, _, err := parseEnvelope(body)
	if err != nil {
		return nil, err
	}
	return ParseContent(content)
}

func parseEnvelope(body []byte) (string, *chatUsage, error) {
	var env chatEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, newError(KindInvalidResponseFormat, fmt.Errorf("failed to decode envelope: %w", err))
	}
	if len(env.Choices) == 0 {
		return "", nil, newError(KindInvalidResponseFormat, errors.New("envelope has no choices"))
	}
	content := env.Choices[0].Message.Content
	if content == nil {
		return "", nil, newError(KindInvalidResponseFormat, errors.New("first choice has no message content"))
	}
	return *content, env.Usage, nil
}

// extractJSONObject returns the text between the first '{' and the last '}'
// of text, inclusive.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseContent builds an analysis result from model output that embeds a
// JSON object, possibly surrounded by prose.
func ParseContent(content string) (*AnalysisResult, error) {
	jsonStr, ok := extractJSONObject(content)
	if !ok {
		return nil, newError(KindInvalidResponseFormat, errors.New("no JSON object found in content"))
	}

	fields, err := decodeObject(jsonStr)
	if err != nil {
		return nil, newError(KindInvalidResponseFormat, fmt.Errorf("failed to parse embedded JSON: %w", err))
	}

	name, okName := fields["name"].(string)
	category, okCategory := fields["category"].(string)
	condition, okCondition := fields["condition"].(string)
	if !okName || !okCategory || !okCondition {
		return nil, newError(KindIncompleteResponse, missingFields(okName, okCategory, okCondition))
	}

	return &AnalysisResult{
		Name:            name,
		Category:        category,
		Condition:       ParseCondition(condition),
		EstimatedValue:  decimalField(fields, "estimatedValue"),
		ConfidenceScore: floatField(fields, "confidenceScore", defaultConfidenceScore),
		Description:     stringField(fields, "description"),
		Insights:        stringField(fields, "insights"),
	}, nil
}

// decodeObject decodes exactly one JSON object, keeping numbers as
// json.Number so monetary values survive without float rounding.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after object")
	}
	return fields, nil
}

func missingFields(name, category, condition bool) error {
	var missing []string
	if !name {
		missing = append(missing, "name")
	}
	if !category {
		missing = append(missing, "category")
	}
	if !condition {
		missing = append(missing, "condition")
	}
	return fmt.Errorf("missing or non-string fields: %s", strings.Join(missing, ", "))
}

func decimalField(fields map[string]any, key string) decimal.Decimal {
	n, ok := fields[key].(json.Number)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func floatField(fields map[string]any, key string, def float64) float64 {
	n, ok := fields[key].(json.Number)
	if !ok {
		return def
	}
	f, err := n.Float64()
	if err != nil {
		return def
	}
	return f
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
