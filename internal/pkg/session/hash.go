// internal/pkg/session/hash.go
package session

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashToken derives the session_token_hash stored next to every session.
// The hash is what travels between nodes; raw tokens never leave the
// directory or the socket that presented them.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ShortHash is a log-friendly prefix of a token hash.
func ShortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
