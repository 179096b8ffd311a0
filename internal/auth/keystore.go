// Package auth implements the service-account keystore and token verifier
// (component C7). Grounded on the release pipeline's GitHub-token handling
// style (typed failure kinds, fail-fast validation) and
// apps/ReleaseParty/backend/internal/api/server.go's JSON file loading
// idiom, generalized to a reloadable keystore.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// KeyEntry is one row of the keystore file: `{kid, principal, roles,
// secret, expires_at?}`.
type KeyEntry struct {
	KeyID     string     `json:"kid"`
	Principal string     `json:"principal"`
	Roles     []string   `json:"roles"`
	Secret    string     `json:"secret"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Keystore is the read-mostly set of signing keys, reloadable at runtime.
// Lookups take a shared read lock; Reload swaps the snapshot under a
// brief write lock, matching the read-mostly policy of §5.
type Keystore struct {
	mu   sync.RWMutex
	path string
	byID map[string]KeyEntry
}

// LoadKeystore reads the JSON array at path into a new Keystore.
func LoadKeystore(path string) (*Keystore, error) {
	ks := &Keystore{path: path}
	if err := ks.Reload(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Reload re-reads the keystore file in place, e.g. on SIGHUP.
func (k *Keystore) Reload() error {
	data, err := os.ReadFile(k.path)
	if err != nil {
		return fmt.Errorf("auth: read keystore: %w", err)
	}
	var entries []KeyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("auth: parse keystore: %w", err)
	}
	byID := make(map[string]KeyEntry, len(entries))
	for _, e := range entries {
		byID[e.KeyID] = e
	}

	k.mu.Lock()
	k.byID = byID
	k.mu.Unlock()
	return nil
}

// Lookup returns the entry for kid. A retired or never-issued kid returns
// ok=false, which Verify surfaces as UnknownKey.
func (k *Keystore) Lookup(kid string) (KeyEntry, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.byID[kid]
	return e, ok
}
