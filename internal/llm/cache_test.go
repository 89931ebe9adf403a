package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/raine/turnover/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*storage.AnalysisCacheEntry
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*storage.AnalysisCacheEntry)}
}

func (m *memoryCache) GetAnalysisCache(imageHash string) (*storage.AnalysisCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[imageHash], nil
}

func (m *memoryCache) SetAnalysisCache(imageHash string, entry *storage.AnalysisCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[imageHash] = entry
	return nil
}

type countingAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingAnalyzer) Analyze(ctx context.Context, imageData []byte) (*AnalysisResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return MockAnalysis(), nil
}

func TestCachedAnalyzer_HitSkipsInner(t *testing.T) {
	inner := &countingAnalyzer{}
	cache := newMemoryCache()
	a := NewCachedAnalyzer(inner, cache)

	first, err := a.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.Name, second.Name)
	assert.True(t, first.EstimatedValue.Equal(second.EstimatedValue))
	assert.Equal(t, first.Condition, second.Condition)
	assert.Len(t, cache.entries, 1)
}

func TestCachedAnalyzer_DifferentImagesMiss(t *testing.T) {
	inner := &countingAnalyzer{}
	a := NewCachedAnalyzer(inner, newMemoryCache())

	_, _ = a.Analyze(context.Background(), []byte("one"))
	_, _ = a.Analyze(context.Background(), []byte("two"))

	assert.Equal(t, 2, inner.calls)
}

func TestCachedAnalyzer_FailuresAreNotCached(t *testing.T) {
	inner := &countingAnalyzer{err: ErrRateLimited}
	cache := newMemoryCache()
	a := NewCachedAnalyzer(inner, cache)

	_, err := a.Analyze(context.Background(), []byte("photo"))
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Empty(t, cache.entries)
}

func TestCachedAnalyzer_CacheErrorFallsThrough(t *testing.T) {
	inner := &countingAnalyzer{}
	cache := newMemoryCache()
	cache.getErr = errors.New("disk on fire")
	a := NewCachedAnalyzer(inner, cache)

	result, err := a.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)
	assert.Equal(t, "Vintage Chair", result.Name)
	assert.Equal(t, 1, inner.calls)
}

// keyedAnalyzer is a countingAnalyzer with a credential and a cache scope.
type keyedAnalyzer struct {
	countingAnalyzer
	credentialBox
	scope string
}

func (k *keyedAnalyzer) Analyze(ctx context.Context, imageData []byte) (*AnalysisResult, error) {
	if k.Credential() == "" {
		return nil, newError(KindCredentialMissing, nil)
	}
	return k.countingAnalyzer.Analyze(ctx, imageData)
}

func (k *keyedAnalyzer) CacheScope() string {
	return k.scope
}

func TestCachedAnalyzer_ClearedCredentialSkipsCache(t *testing.T) {
	inner := &keyedAnalyzer{scope: "openai:gpt-4o-mini"}
	inner.SetCredential("sk-test")
	cache := newMemoryCache()
	a := NewCachedAnalyzer(inner, cache)

	_, err := a.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)

	inner.SetCredential("")
	result, err := a.Analyze(context.Background(), []byte("photo"))

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrCredentialMissing))
	assert.Equal(t, 1, inner.calls)
}

func TestCachedAnalyzer_ScopeSeparatesBackends(t *testing.T) {
	cache := newMemoryCache()

	openai := &keyedAnalyzer{scope: "openai:gpt-4o-mini"}
	openai.SetCredential("sk-test")
	_, err := NewCachedAnalyzer(openai, cache).Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)

	gemini := &keyedAnalyzer{scope: "gemini:gemini-2.5-flash"}
	gemini.SetCredential("gm-key")
	_, err = NewCachedAnalyzer(gemini, cache).Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)

	assert.Equal(t, 1, gemini.calls)
	assert.Len(t, cache.entries, 2)
}

func TestCacheScope(t *testing.T) {
	o := NewOpenAIAnalyzer(OpenAIOpts{Model: "gpt-4o"})
	g := NewGeminiAnalyzer(GeminiOpts{})

	assert.Equal(t, "openai:"+DefaultOpenAIEndpoint+":gpt-4o", o.CacheScope())
	assert.Equal(t, "gemini:"+DefaultGeminiModel, g.CacheScope())
}

func TestHashImage(t *testing.T) {
	assert.Equal(t, hashImage("s", []byte("a")), hashImage("s", []byte("a")))
	assert.NotEqual(t, hashImage("s", []byte("a")), hashImage("s", []byte("b")))
	assert.NotEqual(t, hashImage("openai", []byte("a")), hashImage("gemini", []byte("a")))
	assert.Len(t, hashImage("", nil), 64)
}
