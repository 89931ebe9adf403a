package llm

import "sync"

// credentialBox holds an API credential that may be swapped while analyses
// are in flight. Each analysis reads it once at the start.
type credentialBox struct {
	mu    sync.RWMutex
	value string
}

// SetCredential stores the credential used by subsequent analyses. The value
// is not validated.
func (c *credentialBox) SetCredential(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

// Credential returns the stored credential, or "" if none is set.
func (c *credentialBox) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}
