package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raine/turnover/internal/llm"
)

const (
	kindBadRequest    = "bad_request"
	kindInternalError = "internal_error"
)

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string     `json:"kind"`
	Message string     `json:"message"`
	Action  llm.Action `json:"action"`
	// StatusCode is the status returned by the upstream analysis service.
	StatusCode int `json:"statusCode,omitempty"`
}

// statusForKind maps an analysis failure to the status returned to the app.
func statusForKind(kind llm.Kind) int {
	switch kind {
	case llm.KindCredentialMissing:
		return http.StatusPreconditionRequired
	case llm.KindRateLimited:
		return http.StatusTooManyRequests
	case llm.KindInvalidCredential, llm.KindServerError, llm.KindInvalidResponse,
		llm.KindInvalidResponseFormat, llm.KindIncompleteResponse:
		return http.StatusBadGateway
	case llm.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondAnalysisError(c *gin.Context, err error) {
	kind := llm.KindOf(err)
	detail := errorDetail{
		Kind:    kind.String(),
		Message: llm.Message(err),
		Action:  kind.Action(),
	}
	var e *llm.Error
	if errors.As(err, &e) {
		detail.StatusCode = e.StatusCode
	}
	c.JSON(statusForKind(kind), errorResponse{Error: detail})
}

// respondFailure reports a failure that did not come from the analyzer.
func respondFailure(c *gin.Context, status int, message string) {
	kind := kindBadRequest
	if status >= http.StatusInternalServerError {
		kind = kindInternalError
	}
	c.JSON(status, errorResponse{Error: errorDetail{
		Kind:    kind,
		Message: message,
		Action:  llm.ActionNone,
	}})
}
