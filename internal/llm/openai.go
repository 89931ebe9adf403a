package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultRequestTimeout = 10 * time.Second

	maxResponseTokens = 500
	temperature       = 0.7
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// OpenAIOpts configures an OpenAIAnalyzer. Zero values select defaults.
type OpenAIOpts struct {
	Endpoint   string
	Model      string
	Credential string
	// Timeout bounds each attempt, not the whole analysis.
	Timeout time.Duration
	Retry   RetryPolicy
}

// OpenAIAnalyzer values items through an OpenAI compatible chat completions
// endpoint.
type OpenAIAnalyzer struct {
	credentialBox
	endpoint   string
	model      string
	retry      RetryPolicy
	httpClient *resty.Client
}

// NewOpenAIAnalyzer creates an analyzer for the chat completions endpoint
// described by opts.
func NewOpenAIAnalyzer(opts OpenAIOpts) *OpenAIAnalyzer {
	o := &OpenAIAnalyzer{
		endpoint: DefaultOpenAIEndpoint,
		model:    DefaultOpenAIModel,
		retry:    opts.Retry,
	}
	if opts.Endpoint != "" {
		o.endpoint = opts.Endpoint
	}
	if opts.Model != "" {
		o.model = opts.Model
	}
	if o.retry.MaxAttempts == 0 {
		o.retry = DefaultRetryPolicy()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	o.SetCredential(opts.Credential)

	o.httpClient = resty.New().
		SetDebug(false).
		SetDisableWarn(true).
		SetLogger(newRestyLogger()).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		})

	return o
}

// Analyze implements the Analyzer interface.
func (o *OpenAIAnalyzer) Analyze(ctx context.Context, imageData []byte) (*AnalysisResult, error) {
	credential := o.Credential()
	if credential == "" {
		return nil, newError(KindCredentialMissing, nil)
	}

	logger := log.With().
		Str("requestID", uuid.NewString()).
		Str("model", o.model).
		Logger()

	body := newChatRequest(o.model, imageData)
	start := time.Now()

	result, err := retry(ctx, o.retry, func(ctx context.Context, attempt int) (*AnalysisResult, error) {
		res, err := o.attempt(ctx, credential, body, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("maxAttempts", o.retry.attempts()).
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

// CacheScope identifies the endpoint and model for result caching.
func (o *OpenAIAnalyzer) CacheScope() string {
	return "openai:" + o.endpoint + ":" + o.model
}

func newChatRequest(model string, imageData []byte) *chatRequest {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)
	return &chatRequest{
		Model: model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: analysisPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens:   maxResponseTokens,
		Temperature: temperature,
	}
}

func (o *OpenAIAnalyzer) attempt(ctx context.Context, credential string, body *chatRequest, logger zerolog.Logger) (*AnalysisResult, error) {
	if err := validateEndpoint(o.endpoint); err != nil {
		return nil, err
	}

	res, err := o.httpClient.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetBody(body).
		Post(o.endpoint)
	if err != nil {
		return nil, newError(KindNetwork, err)
	}
	if res.RawResponse == nil {
		return nil, newError(KindInvalidResponse, errors.New("no HTTP response"))
	}

	switch status := res.StatusCode(); status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, statusError(KindInvalidCredential, status)
	case http.StatusTooManyRequests:
		return nil, statusError(KindRateLimited, status)
	default:
		logger.Debug().Int("status", status).Str("body", truncate(res.String(), 512)).Msg("unexpected status from endpoint")
		return nil, statusError(KindServerError, status)
	}

	content, usage, err := parseEnvelope(res.Body())
	if err != nil {
		return nil, err
	}
	if usage != nil {
		logger.Info().
			Int64("inputTokens", usage.PromptTokens).
			Int64("outputTokens", usage.CompletionTokens).
			Int64("totalTokens", usage.TotalTokens).
			Msg("vision llm call")
	}

	result, err := ParseContent(content)
	if err != nil {
		logger.Debug().Str("content", truncate(content, 512)).Msg("unparseable model output")
		return nil, err
	}
	return result, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return newError(KindInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newError(KindInvalidURL, fmt.Errorf("unsupported endpoint %q", endpoint))
	}
	return nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
