package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiOpts configures a GeminiAnalyzer. Zero values select defaults.
type GeminiOpts struct {
	// BaseURL overrides the Gemini API base URL.
	BaseURL    string
	Model      string
	Credential string
	Timeout    time.Duration
	Retry      RetryPolicy
	HTTPClient *http.Client
}

// GeminiAnalyzer values items with Google's Gemini API.
type GeminiAnalyzer struct {
	credentialBox
	baseURL    string
	model      string
	timeout    time.Duration
	retry      RetryPolicy
	httpClient *http.Client
}

// NewGeminiAnalyzer creates a Gemini-based analyzer.
func NewGeminiAnalyzer(opts GeminiOpts) *GeminiAnalyzer {
	g := &GeminiAnalyzer{
		baseURL:    opts.BaseURL,
		model:      DefaultGeminiModel,
		timeout:    DefaultRequestTimeout,
		retry:      opts.Retry,
		httpClient: opts.HTTPClient,
	}
	if opts.Model != "" {
		g.model = opts.Model
	}
	if opts.Timeout > 0 {
		g.timeout = opts.Timeout
	}
	if g.retry.MaxAttempts == 0 {
		g.retry = DefaultRetryPolicy()
	}
	g.SetCredential(opts.Credential)
	return g
}

// Analyze implements the Analyzer interface using Gemini.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, imageData []byte) (*AnalysisResult, error) {
	credential := g.Credential()
	if credential == "" {
		return nil, newError(KindCredentialMissing, nil)
	}

	logger := log.With().
		Str("requestID", uuid.NewString()).
		Str("model", g.model).
		Logger()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analysisPrompt),
			genai.NewPartFromBytes(imageData, "image/jpeg"),
		}, genai.RoleUser),
	}
	start := time.Now()

	result, err := retry(ctx, g.retry, func(ctx context.Context, attempt int) (*AnalysisResult, error) {
		res, err := g.attempt(ctx, credential, contents, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("maxAttempts", g.retry.attempts()).
				Msg("analysis attempt failed")
		}
		return res, err
	})
	if err != nil {
		logFailure(logger, err, start)
		return nil, err
	}

	logger.Info().
		Str("name", result.Name).
		Str("condition", string(result.Condition)).
		Str("estimatedValue", result.EstimatedValue.String()).
		Dur("elapsed", time.Since(start)).
		Msg("item analyzed")

	return result, nil
}

// CacheScope identifies the model for result caching.
func (g *GeminiAnalyzer) CacheScope() string {
	return "gemini:" + g.model
}

func (g *GeminiAnalyzer) attempt(ctx context.Context, credential string, contents []*genai.Content, logger zerolog.Logger) (*AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      credential,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.baseURL},
	})
	if err != nil {
		return nil, newError(KindUnknown, err)
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: maxResponseTokens,
	})
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if result.UsageMetadata != nil {
		logger.Info().
			Int32("inputTokens", result.UsageMetadata.PromptTokenCount).
			Int32("outputTokens", result.UsageMetadata.CandidatesTokenCount).
			Int32("totalTokens", result.UsageMetadata.TotalTokenCount).
			Msg("vision llm call")
	}

	text := result.Text()
	if text == "" {
		return nil, newError(KindInvalidResponseFormat, errors.New("no text in Gemini response"))
	}

	parsed, err := ParseContent(text)
	if err != nil {
		logger.Debug().Str("content", truncate(text, 512)).Msg("unparseable model output")
		return nil, err
	}
	return parsed, nil
}

// classifyGeminiError maps errors returned by the genai client onto the
// analysis failure kinds.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return newError(KindNetwork, err)
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
		return &Error{Kind: KindInvalidCredential, StatusCode: apiErr.Code, Err: err}
	// Gemini reports a bad key as 400 INVALID_ARGUMENT.
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
		return &Error{Kind: KindInvalidCredential, StatusCode: apiErr.Code, Err: err}
	case apiErr.Code == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, StatusCode: apiErr.Code, Err: err}
	default:
		return &Error{Kind: KindServerError, StatusCode: apiErr.Code, Err: err}
	}
}
