package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/raine/turnover/config"
	"github.com/raine/turnover/internal/credential"
	"github.com/raine/turnover/internal/llm"
	"github.com/raine/turnover/internal/storage"
	"github.com/rs/zerolog/log"
)

const analysisCacheMaxAge = 30 * 24 * time.Hour

// app bundles the long-lived objects shared by the commands.
type app struct {
	analyzer llm.Analyzer
	keyring  *credential.Keyring
	store    storage.Store
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// newApp constructs the analyzer selected by cfg, backed by the credential
// store. The mock provider needs neither store nor credential.
func newApp(cfg *config.Config) (*app, error) {
	if cfg.Provider == config.ProviderMock {
		log.Info().Msg("using mock analyzer")
		return &app{analyzer: llm.MockAnalyzer{}}, nil
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	base := newRemoteAnalyzer(cfg)
	keyring := credential.NewKeyring(string(cfg.Provider), store, base)

	stored, err := keyring.Load()
	if err != nil {
		store.Close()
		return nil, err
	}
	if cfg.SeedCredential != "" && cfg.SeedCredential != stored {
		if err := keyring.Save(cfg.SeedCredential); err != nil {
			store.Close()
			return nil, err
		}
	}

	if n, err := store.PruneAnalysisCache(analysisCacheMaxAge); err != nil {
		log.Warn().Err(err).Msg("failed to prune analysis cache")
	} else if n > 0 {
		log.Info().Int64("removed", n).Msg("pruned analysis cache")
	}

	return &app{
		analyzer: llm.NewCachedAnalyzer(base, store),
		keyring:  keyring,
		store:    store,
	}, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("TURNOVER_SECRET_KEY is not set")
	}
	key, err := storage.DeriveKey(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath, key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")
	return store, nil
}

type remoteAnalyzer interface {
	llm.Analyzer
	llm.CredentialHolder
}

func newRemoteAnalyzer(cfg *config.Config) remoteAnalyzer {
	policy := llm.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.RetryDelay,
		RetryIf:     llm.RetryAll,
	}
	if cfg.RetryPolicy == config.RetryPolicyTransient {
		policy.RetryIf = llm.RetryTransient
	}

	if cfg.Provider == config.ProviderGemini {
		log.Info().Str("model", cfg.Model).Msg("using gemini analyzer")
		return llm.NewGeminiAnalyzer(llm.GeminiOpts{
			BaseURL: cfg.Endpoint,
			Model:   cfg.Model,
			Timeout: cfg.RequestTimeout,
			Retry:   policy,
		})
	}

	log.Info().Str("model", cfg.Model).Msg("using openai analyzer")
	return llm.NewOpenAIAnalyzer(llm.OpenAIOpts{
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		Timeout:  cfg.RequestTimeout,
		Retry:    policy,
	})
}
