package encryption

import "crypto/subtle"

// Mode names the policy for plaintext requests while encryption is
// enabled. Strict rejects them; best-effort lets them through. A
// payload that fails authentication is rejected in both modes.
type Mode string

const (
	ModeStrict     Mode = "strict"
	ModeBestEffort Mode = "best-effort"
)

// KeyRegistry is the single source of truth for whether encryption is
// required and which key hash is active. Pure predicate over
// configuration fixed at startup; safe for concurrent use.
type KeyRegistry struct {
	enabled bool
	keyHash string
	mode    Mode
}

// NewKeyRegistry builds a registry from deployment configuration.
// An empty mode defaults to strict.
func NewKeyRegistry(enabled bool, keyHash string, mode Mode) *KeyRegistry {
	if mode == "" {
		mode = ModeStrict
	}
	return &KeyRegistry{enabled: enabled, keyHash: keyHash, mode: mode}
}

// Enabled reports whether encryption is required server-wide.
func (r *KeyRegistry) Enabled() bool {
	return r.enabled
}

// Mode returns the configured plaintext-fallback policy.
func (r *KeyRegistry) Mode() Mode {
	return r.mode
}

// Configured reports whether a key hash is set, regardless of whether
// the supplied one matches.
func (r *KeyRegistry) Configured() bool {
	return r.keyHash != ""
}

// KeyHash returns the configured key-identifier. Callers use it for
// key derivation only after Validate has passed.
func (r *KeyRegistry) KeyHash() string {
	return r.keyHash
}

// Validate checks a client-declared key hash against the configured
// one. Always succeeds when encryption is disabled. Comparison is
// constant-time to avoid leaking the match position.
func (r *KeyRegistry) Validate(keyHash string) error {
	if !r.enabled {
		return nil
	}
	if r.keyHash == "" {
		return ErrKeyNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(r.keyHash)) != 1 {
		return ErrInvalidKey
	}
	return nil
}
