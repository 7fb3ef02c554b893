package depot

import "sync"

// maxOperations bounds the audit trail. Once full, the oldest entries are
// dropped first.
const maxOperations = 1000

// operationLog is the bounded, append-only audit trail. Appends are ordered
// by completion time of the operation that produced them.
type operationLog struct {
	mu      sync.Mutex
	entries []Operation
	limit   int
}

func newOperationLog(limit int) *operationLog {
	if limit <= 0 {
		limit = maxOperations
	}
	return &operationLog{limit: limit}
}

func (l *operationLog) append(op Operation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, op)
	if excess := len(l.entries) - l.limit; excess > 0 {
		l.entries = append(l.entries[:0], l.entries[excess:]...)
	}
}

// history returns up to limit entries, newest first. A non-positive limit
// returns everything retained.
func (l *operationLog) history(limit int) []Operation {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Operation, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.entries[n-1-i]
	}
	return out
}

func (l *operationLog) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
