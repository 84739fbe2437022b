// Package registry provides clients for resolving agent public keys from an
// external key registry by key_id.
package registry

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when the registry has no record for a key_id.
var ErrKeyNotFound = errors.New("registry: key not found")

// KeyRecord is the public-key material and metadata the registry serves for
// a single key_id.
type KeyRecord struct {
	KeyID       string `json:"key_id"`
	Algorithm   string `json:"algorithm"`
	IsActive    string `json:"is_active"`
	PublicKey   string `json:"public_key"`
	Description string `json:"description,omitempty"`
	AgentID     int64  `json:"agent_id,omitempty"`
	AgentName   string `json:"agent_name,omitempty"`
	AgentDomain string `json:"agent_domain,omitempty"`
}

// Active reports whether the record's is_active field carries the literal
// string "true" — any other value, including absence, is inactive.
func (k *KeyRecord) Active() bool {
	return k.IsActive == "true"
}

// Client fetches KeyRecords by key_id. Implementations must perform at most
// one outbound fetch per call and must not cache negative (not-found)
// results, since a key may legitimately appear in a later deploy.
type Client interface {
	FetchKey(ctx context.Context, keyID string) (*KeyRecord, error)

	// Backend names the concrete registry backend, for metrics labeling.
	Backend() string
}
