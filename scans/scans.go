// Package scans implements the iterator adapters the builder pipeline
// wraps a source with: BuildScan (stats accumulation plus one-item
// push-back), BitmappedScan (bloom accumulation) and CompactScan (cutoff
// based purge). All three satisfy kv.Source, so they compose and can
// themselves be wrapped.
package scans

import (
	"time"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/kv"
)

// BuildScan wraps a source, tracking build statistics and providing a
// one-slot push-back used by BuildZZ when an entry does not fit in the
// block currently being packed.
type BuildScan struct {
	src      kv.Source
	pushed   *kv.Record
	start    time.Time
	seqno    uint64
	nCount   uint64
	nDeleted uint64
}

// NewBuildScan wraps src, starting the wall-clock build timer.
func NewBuildScan(src kv.Source) *BuildScan {
	return &BuildScan{src: src, start: time.Now()}
}

// Push buffers r to be returned by the very next call to Next. At most
// one record may be buffered at a time.
func (b *BuildScan) Push(r *kv.Record) { b.pushed = r }

// Next returns the pushed-back record if one is pending, otherwise pulls
// and accounts for the next record from the wrapped source.
func (b *BuildScan) Next() (*kv.Record, error) {
	if b.pushed != nil {
		r := b.pushed
		b.pushed = nil
		return r, nil
	}
	r, err := b.src.Next()
	if err != nil || r == nil {
		return r, err
	}
	if r.Value.Seqno > b.seqno {
		b.seqno = r.Value.Seqno
	}
	for _, d := range r.Deltas {
		if d.Seqno > b.seqno {
			b.seqno = d.Seqno
		}
	}
	b.nCount++
	if r.Value.Deleted {
		b.nDeleted++
	}
	return r, nil
}

// Stats is the accumulated build-time bookkeeping, taken at completion.
type Stats struct {
	BuildTimeNs int64
	EpochNs     int64
	Seqno       uint64
	NCount      uint64
	NDeleted    uint64
}

// Unwrap returns the final build statistics. Call it only after Next has
// drained the source to completion.
func (b *BuildScan) Unwrap() Stats {
	return Stats{
		BuildTimeNs: time.Since(b.start).Nanoseconds(),
		EpochNs:     b.start.UnixNano(),
		Seqno:       b.seqno,
		NCount:      b.nCount,
		NDeleted:    b.nDeleted,
	}
}

// BitmappedScan wraps a source, inserting every observed key into a
// bloom.Filter as it passes through.
type BitmappedScan struct {
	src    kv.Source
	bitmap bloom.Filter
}

// NewBitmappedScan wraps src, accumulating keys into bitmap.
func NewBitmappedScan(src kv.Source, bitmap bloom.Filter) *BitmappedScan {
	return &BitmappedScan{src: src, bitmap: bitmap}
}

func (b *BitmappedScan) Next() (*kv.Record, error) {
	r, err := b.src.Next()
	if err != nil || r == nil {
		return r, err
	}
	b.bitmap.Add(r.Key)
	return r, nil
}

// Unwrap returns the accumulated bitmap and the wrapped source.
func (b *BitmappedScan) Unwrap() (bloom.Filter, kv.Source) { return b.bitmap, b.src }

// CompactScan wraps a source, applying a Cutoff policy to every record
// and yielding only survivors.
type CompactScan struct {
	src    kv.Source
	cutoff kv.Cutoff
}

// NewCompactScan wraps src, purging each record against cutoff.
func NewCompactScan(src kv.Source, cutoff kv.Cutoff) *CompactScan {
	return &CompactScan{src: src, cutoff: cutoff}
}

func (c *CompactScan) Next() (*kv.Record, error) {
	for {
		r, err := c.src.Next()
		if err != nil || r == nil {
			return r, err
		}
		if out := c.cutoff.Purge(r); out != nil {
			return out, nil
		}
	}
}
