package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// pageDigest hashes a page fingerprint together with the render settings.
// The fingerprint is length-prefixed, so no fingerprint can imitate the
// settings that follow it.
func pageDigest(fingerprint string, opts PageKeyOpts) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s|w=%d|bg=%d", len(fingerprint), fingerprint, opts.Width, opts.Background)
	return hex.EncodeToString(h.Sum(nil))
}
