package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/raine/turnover/internal/storage"
	"github.com/rs/zerolog/log"
)

// AnalysisCache persists analysis results by image hash.
type AnalysisCache interface {
	GetAnalysisCache(imageHash string) (*storage.AnalysisCacheEntry, error)
	SetAnalysisCache(imageHash string, entry *storage.AnalysisCacheEntry) error
}

// CachedAnalyzer wraps an Analyzer with SQLite caching.
type CachedAnalyzer struct {
	inner Analyzer
	cache AnalysisCache
}

// NewCachedAnalyzer creates a cached analyzer.
func NewCachedAnalyzer(inner Analyzer, cache AnalysisCache) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, cache: cache}
}

// cacheScoped is implemented by analyzers whose results depend on the
// backend and model that produced them.
type cacheScoped interface {
	CacheScope() string
}

// hashImage keys a cache entry by scope and image bytes, so results from one
// backend or model are never served for another.
func hashImage(scope string, imageData []byte) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write(imageData)
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze implements the Analyzer interface with caching. Cache failures are
// logged and never fail the analysis. An inner analyzer without a credential
// fails before the cache is consulted.
func (c *CachedAnalyzer) Analyze(ctx context.Context, imageData []byte) (*AnalysisResult, error) {
	if holder, ok := c.inner.(CredentialHolder); ok && holder.Credential() == "" {
		return nil, newError(KindCredentialMissing, nil)
	}

	var scope string
	if scoped, ok := c.inner.(cacheScoped); ok {
		scope = scoped.CacheScope()
	}
	hash := hashImage(scope, imageData)

	if c.cache != nil {
		cached, err := c.cache.GetAnalysisCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check analysis cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
			return resultFromCacheEntry(cached), nil
		}
	}

	result, err := c.inner.Analyze(ctx, imageData)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetAnalysisCache(hash, cacheEntryFromResult(result)); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached analysis result")
		}
	}

	return result, nil
}

func resultFromCacheEntry(e *storage.AnalysisCacheEntry) *AnalysisResult {
	return &AnalysisResult{
		Name:            e.Name,
		Category:        e.Category,
		Condition:       ParseCondition(e.Condition),
		EstimatedValue:  e.EstimatedValue,
		ConfidenceScore: e.ConfidenceScore,
		Description:     e.Description,
		Insights:        e.Insights,
	}
}

func cacheEntryFromResult(r *AnalysisResult) *storage.AnalysisCacheEntry {
	return &storage.AnalysisCacheEntry{
		Name:            r.Name,
		Category:        r.Category,
		Condition:       string(r.Condition),
		EstimatedValue:  r.EstimatedValue,
		ConfidenceScore: r.ConfidenceScore,
		Description:     r.Description,
		Insights:        r.Insights,
	}
}
