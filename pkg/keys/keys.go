// Package keys validates memcached keys against the ASCII protocol's
// lexical rules before they ever reach the wire.
//
// A valid key has length 1-250 and contains no space, NUL, CR, or LF.
// Validation runs once per user-supplied key; a rejected key never causes
// wire traffic and never affects the other keys in the same batch.
package keys

import "github.com/cachemir/mc/pkg/mcerr"

// MaxLength is the largest key the ASCII protocol accepts.
const MaxLength = 250

// Validate checks key against the protocol's lexical rules. It returns nil
// for a valid key and a *mcerr.Error with code InvalidKeyErr otherwise.
func Validate(key string) error {
	if len(key) == 0 || len(key) > MaxLength {
		return mcerr.New(mcerr.InvalidKeyErr, key, nil)
	}
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case ' ', 0, '\r', '\n':
			return mcerr.New(mcerr.InvalidKeyErr, key, nil)
		}
	}
	return nil
}

// WithPrefix prepends prefix to key exactly once; StripPrefix is its
// inverse. pkg/client calls WithPrefix on every key it sends, so that
// prefixed and non-prefixed clients never see each other's keys.
func WithPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + key
}

// StripPrefix removes prefix from key if present, returning key unchanged
// otherwise. It never double-strips: at most one copy of prefix is removed.
func StripPrefix(prefix, key string) string {
	if prefix == "" || len(key) < len(prefix) {
		return key
	}
	if key[:len(prefix)] != prefix {
		return key
	}
	return key[len(prefix):]
}
