package encryption

import "errors"

// Sentinel errors for the cipher and key registry. Handlers map these
// onto the wire: ErrKeyNotConfigured is a deployment problem (5xx),
// the rest are client problems (4xx). ErrAuthenticationFailed is kept
// separate from ErrMalformedPayload because a bad tag can mean
// tampering and is logged distinctly.
var (
	ErrKeyNotConfigured     = errors.New("encryption enabled but no key hash configured")
	ErrInvalidKey           = errors.New("invalid encryption key hash")
	ErrMalformedPayload     = errors.New("malformed encrypted payload")
	ErrAuthenticationFailed = errors.New("payload authentication failed")
	ErrNotEnabled           = errors.New("encryption is not enabled")
)
