package checkout

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	defaultResubmitCapacity = 100_000
	resubmitFPR             = 0.001
)

// resubmitWatch remembers which line ids were already sent to the Order API.
// It only observes: a hit is logged and counted, the order is still sent.
// False positives are possible at resubmitFPR.
type resubmitWatch struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func newResubmitWatch(capacity uint) *resubmitWatch {
	if capacity == 0 {
		return nil
	}
	return &resubmitWatch{filter: bloom.NewWithEstimates(capacity, resubmitFPR)}
}

// seen records id and reports whether it was (probably) recorded before.
func (w *resubmitWatch) seen(id string) bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filter.TestAndAddString(id)
}
