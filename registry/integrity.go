package registry

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifyContentHash reports whether artifact's SHA-256 digest matches
// expectedHash (hex-encoded), using a constant-time comparison so the
// check cannot leak timing information about where a mismatch occurs.
func VerifyContentHash(artifact []byte, expectedHash string) bool {
	sum := sha256.Sum256(artifact)
	actual := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expectedHash)) == 1
}
