package segment

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// DeriveID maps (document path, sequence number) to a stable 63-bit positive
// integer: the first 8 bytes of sha256("path_seq") with the sign bit cleared.
// Re-ingesting the same document always reproduces the same ids, which lets
// the text store alone detect duplicates across process restarts.
func DeriveID(path string, sequence int) int64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", path, sequence)))
	id := binary.BigEndian.Uint64(sum[:8])
	return int64(id & (1<<63 - 1))
}

// DeriveHash returns the sha256 hex digest of text. It is the dedup key:
// independent of DeriveID, so identical content arriving under a different
// (path, sequence) pair is still recognized as a duplicate.
func DeriveHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
