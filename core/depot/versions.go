package depot

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// versionEntry pairs version metadata with its content snapshot. Snapshots
// live in memory for the lifetime of the engine instance.
type versionEntry struct {
	meta    Version
	content []byte
}

// versionStore keeps the per-file, append-only, capped version chains.
// Numbers are assigned contiguously from 1 and evicted strictly from the
// lowest number, so a chain is always a contiguous run ending at the newest.
type versionStore struct {
	mu     sync.RWMutex
	chains map[string][]versionEntry
}

func newVersionStore() *versionStore {
	return &versionStore{chains: make(map[string][]versionEntry)}
}

// create appends a snapshot and enforces the cap. The cap is applied at
// creation time only, so shrinking it never trims existing chains until the
// next version is created. The entry just created is never evicted.
func (v *versionStore) create(fileID string, content []byte, digest, createdBy, description string, maxPerFile int, now time.Time) Version {
	v.mu.Lock()
	defer v.mu.Unlock()

	chain := v.chains[fileID]
	next := 1
	if n := len(chain); n > 0 {
		next = chain[n-1].meta.Number + 1
	}
	entry := versionEntry{
		meta: Version{
			ID:          uuid.NewString(),
			FileID:      fileID,
			Number:      next,
			Size:        int64(len(content)),
			Checksum:    digest,
			CreatedBy:   createdBy,
			Description: description,
			CreatedAt:   now,
		},
		content: append([]byte(nil), content...),
	}
	chain = append(chain, entry)
	if maxPerFile > 0 {
		for len(chain) > maxPerFile {
			chain = chain[1:]
		}
	}
	v.chains[fileID] = chain
	return entry.meta
}

// get returns one version's metadata and a copy of its content.
func (v *versionStore) get(fileID string, number int) (Version, []byte, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, entry := range v.chains[fileID] {
		if entry.meta.Number == number {
			return entry.meta, append([]byte(nil), entry.content...), true
		}
	}
	return Version{}, nil, false
}

// history returns the retained chain ascending by number.
func (v *versionStore) history(fileID string) []Version {
	v.mu.RLock()
	defer v.mu.RUnlock()
	chain := v.chains[fileID]
	out := make([]Version, len(chain))
	for i, entry := range chain {
		out[i] = entry.meta
	}
	return out
}

// newest returns the highest retained version number, zero when none exist.
func (v *versionStore) newest(fileID string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	chain := v.chains[fileID]
	if len(chain) == 0 {
		return 0
	}
	return chain[len(chain)-1].meta.Number
}

func (v *versionStore) count(fileID string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.chains[fileID])
}

func (v *versionStore) totalCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	total := 0
	for _, chain := range v.chains {
		total += len(chain)
	}
	return total
}

// drop removes a file's entire chain.
func (v *versionStore) drop(fileID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.chains, fileID)
}
