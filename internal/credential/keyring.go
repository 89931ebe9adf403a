// Package credential keeps the API credential of an analysis provider in
// sync between persistent storage and the analyzers that use it.
package credential

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Persister stores credentials across process restarts.
type Persister interface {
	GetCredential(provider string) (string, error)
	SetCredential(provider, value string) error
	DeleteCredential(provider string) error
}

// Target receives the current credential.
type Target interface {
	SetCredential(value string)
}

// Keyring caches the credential of one provider in memory. The cache is
// filled by Load and replaced only by Save or Clear.
type Keyring struct {
	provider string
	store    Persister
	targets  []Target

	// writeMu orders store writes with cache updates.
	writeMu sync.Mutex

	mu     sync.RWMutex
	cached string
}

// NewKeyring creates a keyring for provider backed by store. Every target is
// updated whenever the credential is loaded or saved.
func NewKeyring(provider string, store Persister, targets ...Target) *Keyring {
	return &Keyring{provider: provider, store: store, targets: targets}
}

// Load reads the persisted credential into the cache and pushes it to the
// targets. A missing credential is not an error.
func (k *Keyring) Load() (string, error) {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	value, err := k.store.GetCredential(k.provider)
	if err != nil {
		return "", fmt.Errorf("failed to load %s credential: %w", k.provider, err)
	}

	k.set(value)
	log.Info().Str("provider", k.provider).Bool("configured", value != "").Msg("credential loaded")
	return value, nil
}

// Save persists value and makes it the current credential. Saving an empty
// value is the same as Clear.
func (k *Keyring) Save(value string) error {
	if value == "" {
		return k.Clear()
	}

	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if err := k.store.SetCredential(k.provider, value); err != nil {
		return fmt.Errorf("failed to save %s credential: %w", k.provider, err)
	}

	k.set(value)
	log.Info().Str("provider", k.provider).Msg("credential saved")
	return nil
}

// Clear removes the persisted credential.
func (k *Keyring) Clear() error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if err := k.store.DeleteCredential(k.provider); err != nil {
		return fmt.Errorf("failed to delete %s credential: %w", k.provider, err)
	}

	k.set("")
	log.Info().Str("provider", k.provider).Msg("credential cleared")
	return nil
}

// Get returns the cached credential.
func (k *Keyring) Get() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cached
}

// Configured reports whether a non-empty credential is cached.
func (k *Keyring) Configured() bool {
	return k.Get() != ""
}

// Provider returns the provider name the keyring is bound to.
func (k *Keyring) Provider() string {
	return k.provider
}

func (k *Keyring) set(value string) {
	k.mu.Lock()
	k.cached = value
	for _, t := range k.targets {
		t.SetCredential(value)
	}
	k.mu.Unlock()
}
