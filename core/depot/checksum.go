package depot

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// computeChecksum returns the content digest used for dedup and integrity
// checks. Hashing runs outside any layer lock.
func computeChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// dedupKey scopes duplicate detection to one layer and session.
type dedupKey struct {
	layer   string
	session string
	digest  string
}

// checksumIndex maps content digests to file ids within their dedup scope.
type checksumIndex struct {
	mu      sync.RWMutex
	entries map[dedupKey]string
}

func newChecksumIndex() *checksumIndex {
	return &checksumIndex{entries: make(map[dedupKey]string)}
}

func (c *checksumIndex) lookup(layer, session, digest string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[dedupKey{layer: layer, session: session, digest: digest}]
	return id, ok
}

func (c *checksumIndex) register(layer, session, digest, fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dedupKey{layer: layer, session: session, digest: digest}] = fileID
}

// forget removes a digest mapping, but only when it still points at the given
// file. A later store of the same content under a new id keeps its entry.
func (c *checksumIndex) forget(layer, session, digest, fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := dedupKey{layer: layer, session: session, digest: digest}
	if c.entries[key] == fileID {
		delete(c.entries, key)
	}
}
