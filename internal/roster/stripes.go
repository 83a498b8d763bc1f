package roster

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const lockStripes = 64

// stripedLock serializes commit and publish per employee id without a lock per record.
// Unrelated ids may share a stripe.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(id uuid.UUID) func() {
	m := &l.stripes[xxhash.Sum64(id[:])%lockStripes]
	m.Lock()
	return m.Unlock
}
