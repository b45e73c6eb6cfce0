package build

import (
	"github.com/Priyanshu23/robt/entry"
	"github.com/Priyanshu23/robt/flush"
	"github.com/Priyanshu23/robt/robterr"
)

// LevelItem is the (first_key, fpos) separator pair one pipeline level
// hands to the level above it. IsLeaf propagates whether Fpos addresses
// a Z-block or an M-block, so the topmost caller can tell a single-leaf
// tree (root is the leaf itself) from a true multi-level tree without
// re-reading anything.
type LevelItem struct {
	Key    []byte
	Fpos   uint64
	IsLeaf bool
}

// Level is one stage of the builder pipeline: it yields one separator
// per call, consuming as much of the level below as fits in one block.
type Level interface {
	Next() (*LevelItem, error)
}

// BuildLevel packs MZ or MM pointer entries referring to the level
// below it into fixed-size blocks. BuildMZ and BuildMM from the
// original design are the same algorithm over two different entry
// kinds, so one type serves both — including the single-entry-block
// forwarding optimization, applied uniformly at every level so that a
// single-leaf tree's root collapses all the way down to that leaf's own
// block position, matching the "root may be the leaf itself" invariant.
type BuildLevel struct {
	blocksize int
	iflush    *flush.Flusher
	src       Level
	pushed    *LevelItem
}

// NewBuildLevel wraps src, packing its output into pointer blocks of
// blocksize bytes via iflush.
func NewBuildLevel(blocksize int, iflush *flush.Flusher, src Level) *BuildLevel {
	return &BuildLevel{blocksize: blocksize, iflush: iflush, src: src}
}

// makeEntry tags the pointer by what it addresses, not by which level
// packed it: a forwarded single-leaf item can bubble into any layer, and
// the reader picks z_blocksize vs m_blocksize off this tag.
func makeEntry(item *LevelItem) entry.Entry {
	if item.IsLeaf {
		return entry.NewMZ(item.Key, item.Fpos)
	}
	return entry.NewMM(item.Key, item.Fpos)
}

func (lv *BuildLevel) Next() (*LevelItem, error) {
	var items []*LevelItem
	runningLen := 0
	for {
		var item *LevelItem
		var err error
		if lv.pushed != nil {
			item = lv.pushed
			lv.pushed = nil
		} else {
			item, err = lv.src.Next()
			if err != nil {
				return nil, err
			}
		}
		if item == nil {
			break
		}

		candidateLen := makeEntry(item).EncodedLen()
		if 1+runningLen+candidateLen+1 > lv.blocksize {
			if len(items) == 0 {
				return nil, robterr.At(robterr.Invalid, "pointer entry exceeds block size %d", lv.blocksize)
			}
			lv.pushed = item
			break
		}

		items = append(items, item)
		runningLen += candidateLen
	}

	if len(items) == 0 {
		return nil, nil
	}

	if len(items) == 1 {
		only := items[0]
		return &LevelItem{Key: only.Key, Fpos: only.Fpos, IsLeaf: only.IsLeaf}, nil
	}

	entries := make([]entry.Entry, len(items))
	for i, it := range items {
		entries[i] = makeEntry(it)
	}
	encoded, err := entry.EncodeBlock(entries, lv.blocksize)
	if err != nil {
		return nil, err
	}
	// The level below has been posting its own blocks through the same
	// flusher while we packed, so the block's position is only known now.
	fpos := lv.iflush.CurrentFpos()
	if err := lv.iflush.Post(encoded); err != nil {
		return nil, err
	}
	return &LevelItem{Key: items[0].Key, Fpos: fpos, IsLeaf: false}, nil
}
