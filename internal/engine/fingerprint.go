package engine

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint computes a stable hash over the raw submitted content, before
// any extraction or normalization. Identical submissions map to the same key
// even when upstream extraction is flaky, which is what downstream trending
// aggregation de-duplicates on. Kind is mixed in so the same string submitted
// as text and as a link count separately.
func Fingerprint(kind InputKind, rawContent string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{'|'})
	h.Write([]byte(rawContent))
	return fmt.Sprintf("%x", h.Sum(nil))
}
