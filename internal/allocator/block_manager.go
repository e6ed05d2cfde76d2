// Package allocator manages the temporary LBA region as a free-range list.
// Temporary spill files are few and long-lived between allocation events, so
// first-fit with merge-on-free keeps state minimal at O(n) per operation.
package allocator

import (
	"sort"
	"sync"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// TemporaryBlockManager hands out contiguous LBA extents from the temporary
// region. The free list is kept sorted by start and fully coalesced: no two
// entries touch.
type TemporaryBlockManager struct {
	mu     sync.Mutex
	region types.LBARange
	free   []types.LBARange
}

// NewTemporaryBlockManager covers [start, end) with a single free range.
func NewTemporaryBlockManager(start, end types.LBA) *TemporaryBlockManager {
	region := types.LBARange{Start: start, End: end}
	return &TemporaryBlockManager{
		region: region,
		free:   []types.LBARange{region},
	}
}

// Region returns the extent the manager was created over.
func (m *TemporaryBlockManager) Region() types.LBARange {
	return m.region
}

// Allocate returns a contiguous extent of exactly nrBlocks LBAs, first-fit
// over the free list. The chosen range is trimmed from its low end, so ties
// resolve to the lowest start. Returns ErrNoSpace when no single free range
// is large enough.
func (m *TemporaryBlockManager) Allocate(nrBlocks uint64) (types.LBARange, error) {
	if nrBlocks == 0 {
		return types.LBARange{}, types.NewError(types.ErrOutOfRange, "")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.free {
		if r.Blocks() < nrBlocks {
			continue
		}

		allocated := types.LBARange{Start: r.Start, End: r.Start + types.LBA(nrBlocks)}
		if r.Blocks() == nrBlocks {
			m.free = append(m.free[:i], m.free[i+1:]...)
		} else {
			m.free[i].Start = allocated.End
		}
		return allocated, nil
	}

	return types.LBARange{}, types.NewError(types.ErrNoSpace, "")
}

// Free returns an extent to the free list, preserving sort order and merging
// with a touching neighbour on either side.
func (m *TemporaryBlockManager) Free(r types.LBARange) {
	if r.Empty() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.free), func(j int) bool {
		return m.free[j].Start >= r.Start
	})

	m.free = append(m.free, types.LBARange{})
	copy(m.free[i+1:], m.free[i:])
	m.free[i] = r

	// Merge right, then left.
	if i+1 < len(m.free) && m.free[i].End == m.free[i+1].Start {
		m.free[i].End = m.free[i+1].End
		m.free = append(m.free[:i+1], m.free[i+2:]...)
	}
	if i > 0 && m.free[i-1].End == m.free[i].Start {
		m.free[i-1].End = m.free[i].End
		m.free = append(m.free[:i], m.free[i+1:]...)
	}
}

// Available returns the number of free blocks summed over the free list.
func (m *TemporaryBlockManager) Available() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total uint64
	for _, r := range m.free {
		total += r.Blocks()
	}
	return total
}

// Reset returns the manager to its initial state: one free range covering
// the whole region. Outstanding allocations are forgotten.
func (m *TemporaryBlockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.free = []types.LBARange{m.region}
}

// FreeRanges returns a snapshot of the free list, sorted by start.
func (m *TemporaryBlockManager) FreeRanges() []types.LBARange {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.LBARange, len(m.free))
	copy(out, m.free)
	return out
}
