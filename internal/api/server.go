// Package api exposes item analysis over HTTP for the mobile app.
package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/turnover/internal/credential"
	"github.com/raine/turnover/internal/llm"
	"github.com/rs/zerolog/log"
)

// MaxImageSize is the largest photo accepted for analysis.
const MaxImageSize = 10 << 20

var errImageTooLarge = errors.New("image too large")

// Server serves the analysis API.
type Server struct {
	analyzer llm.Analyzer
	keyring  *credential.Keyring
	engine   *gin.Engine
}

// NewServer creates the API server. keyring may be nil when the analyzer
// needs no credential; the credential routes are then not registered.
func NewServer(analyzer llm.Analyzer, keyring *credential.Keyring) *Server {
	s := &Server{
		analyzer: analyzer,
		keyring:  keyring,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/analyze/sample", s.handleSample)

	if s.keyring != nil {
		v1.GET("/credential", s.handleGetCredential)
		v1.PUT("/credential", s.handlePutCredential)
		v1.DELETE("/credential", s.handleDeleteCredential)
	}
}

func (s *Server) handleAnalyze(c *gin.Context) {
	image, err := readImage(c)
	if errors.Is(err, errImageTooLarge) {
		respondFailure(c, http.StatusRequestEntityTooLarge, "Image is too large.")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to read image from request")
		respondFailure(c, http.StatusBadRequest, "Could not read image.")
		return
	}
	if len(image) == 0 {
		respondFailure(c, http.StatusBadRequest, "Image is empty.")
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), image)
	if err != nil {
		respondAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSample(c *gin.Context) {
	c.JSON(http.StatusOK, llm.MockAnalysis())
}

type credentialStatus struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
}

func (s *Server) handleGetCredential(c *gin.Context) {
	c.JSON(http.StatusOK, credentialStatus{
		Provider:   s.keyring.Provider(),
		Configured: s.keyring.Configured(),
	})
}

type putCredentialRequest struct {
	Credential string `json:"credential" binding:"required"`
}

func (s *Server) handlePutCredential(c *gin.Context) {
	var req putCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "A credential is required.")
		return
	}
	if err := s.keyring.Save(strings.TrimSpace(req.Credential)); err != nil {
		log.Error().Err(err).Msg("failed to save credential")
		respondFailure(c, http.StatusInternalServerError, "Could not save the credential.")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteCredential(c *gin.Context) {
	if err := s.keyring.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear credential")
		respondFailure(c, http.StatusInternalServerError, "Could not remove the credential.")
		return
	}
	c.Status(http.StatusNoContent)
}

// readImage reads the photo either from the multipart field "image" or from
// the raw request body.
func readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageSize+1<<20)

	var r io.Reader = c.Request.Body
	mediaType, _, _ := mime.ParseMediaType(c.ContentType())
	if mediaType == "multipart/form-data" {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, tooLargeOr(err)
		}
		if fh.Size > MaxImageSize {
			return nil, errImageTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, tooLargeOr(err)
	}
	if len(data) > MaxImageSize {
		return nil, errImageTooLarge
	}
	return data, nil
}

func tooLargeOr(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errImageTooLarge
	}
	return err
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
