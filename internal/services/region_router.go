// Package services wires the filesystem core together: path classification,
// region frontiers, byte-to-LBA translation, file handles, and the top-level
// filesystem facade.
package services

import (
	"strings"
	"sync/atomic"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

const (
	// PathPrefix is the URI scheme every path handled by this filesystem
	// carries.
	PathPrefix = "nvmefs://"

	// TempDirPath is the logical directory of temporary spill files.
	TempDirPath = "nvmefs:///tmp"

	// SuperblockPath is the sentinel addressing the metadata block at LBA 0.
	SuperblockPath = "nvmefs://.global_metadata"
)

// ClassifyPath maps a path to the region it addresses. First match wins:
// the superblock sentinel, then /tmp, then the .wal suffix, then .db.
func ClassifyPath(path string) types.PathKind {
	switch {
	case path == SuperblockPath:
		return types.PathKindSuperblock
	case strings.Contains(path, "/tmp"):
		return types.PathKindTemporary
	case strings.HasSuffix(path, ".wal"):
		return types.PathKindWAL
	case strings.Contains(path, ".db"):
		return types.PathKindDatabase
	default:
		return types.PathKindInvalid
	}
}

// CanHandlePath reports whether a path belongs to this filesystem at all.
func CanHandlePath(path string) bool {
	return strings.HasPrefix(path, PathPrefix)
}

// regionRouter owns the region partition of a loaded namespace and the two
// atomic write frontiers. Frontier advance is a CAS loop, so the frontier
// ends up at the maximum end-LBA over all successful writes regardless of
// completion order.
type regionRouter struct {
	dbRegion  types.LBARange
	walRegion types.LBARange
	tmpRegion types.LBARange

	dbFrontier  atomic.Uint64
	walFrontier atomic.Uint64
}

func newRegionRouter(sb *types.Superblock, geometry types.DeviceGeometry) *regionRouter {
	r := &regionRouter{
		dbRegion:  sb.DatabaseRegion(),
		walRegion: sb.WALRegion(),
		tmpRegion: sb.TemporaryRegion(geometry),
	}
	r.dbFrontier.Store(uint64(sb.DBFrontier))
	r.walFrontier.Store(uint64(sb.WALFrontier))
	return r
}

// region returns the LBA extent a path kind addresses. The superblock is its
// own single-block region.
func (r *regionRouter) region(kind types.PathKind) types.LBARange {
	switch kind {
	case types.PathKindDatabase:
		return r.dbRegion
	case types.PathKindWAL:
		return r.walRegion
	case types.PathKindTemporary:
		return r.tmpRegion
	case types.PathKindSuperblock:
		return types.LBARange{Start: types.SuperblockLBA, End: types.SuperblockLBA + 1}
	default:
		return types.LBARange{}
	}
}

// checkBounds rejects any run that exits its region.
func (r *regionRouter) checkBounds(kind types.PathKind, path string, start types.LBA, count uint64) error {
	if !r.region(kind).Contains(start, count) {
		return types.NewError(types.ErrOutOfRange, path)
	}
	return nil
}

func (r *regionRouter) frontierCell(kind types.PathKind) *atomic.Uint64 {
	if kind == types.PathKindWAL {
		return &r.walFrontier
	}
	return &r.dbFrontier
}

// frontier returns the next-free LBA of the DB or WAL region.
func (r *regionRouter) frontier(kind types.PathKind) types.LBA {
	return types.LBA(r.frontierCell(kind).Load())
}

// advanceFrontier raises the frontier to end if it is not already past it.
// Concurrent writers race through CAS; a loser that is already surpassed
// simply stops.
func (r *regionRouter) advanceFrontier(kind types.PathKind, end types.LBA) {
	cell := r.frontierCell(kind)
	for {
		current := cell.Load()
		if uint64(end) <= current {
			return
		}
		if cell.CompareAndSwap(current, uint64(end)) {
			return
		}
	}
}

// truncateFrontier lowers the frontier to target. Raising through this path
// is refused; growth only happens through writes.
func (r *regionRouter) truncateFrontier(kind types.PathKind, target types.LBA) {
	cell := r.frontierCell(kind)
	for {
		current := cell.Load()
		if uint64(target) >= current {
			return
		}
		if cell.CompareAndSwap(current, uint64(target)) {
			return
		}
	}
}

// resetWALFrontier rewinds the WAL to empty; the effect of removing the WAL
// file.
func (r *regionRouter) resetWALFrontier() {
	r.walFrontier.Store(uint64(r.walRegion.Start))
}

// snapshot writes the current frontiers into sb for persistence.
func (r *regionRouter) snapshot(sb *types.Superblock) {
	sb.DBFrontier = types.LBA(r.dbFrontier.Load())
	sb.WALFrontier = types.LBA(r.walFrontier.Load())
}
