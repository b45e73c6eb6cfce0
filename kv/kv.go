// Package kv defines the record shapes that flow through the builder and
// reader pipelines: values, deltas, their native/reference duality, range
// bounds and cutoff policies. These are the "external collaborator" shapes
// the rest of robt is built around.
package kv

// Value holds one version of a record: its payload, the sequence number it
// was written at, and whether it represents a deletion (a tombstone).
type Value struct {
	Seqno   uint64
	Deleted bool
	Payload []byte // nil when Deleted
}

// Delta is a historical version, stored as a reverse-diff against the
// next-newer value. Deltas inside one ZZ entry are ordered newest-first.
type Delta struct {
	Seqno   uint64
	Deleted bool
	Payload []byte
}

// Record is one logical row delivered by a source iterator or returned by
// a reader: a key, its current value, and its ordered delta history
// (newest first). Deltas is empty unless delta tracking is enabled and
// versions were requested.
type Record struct {
	Key    []byte
	Value  Value
	Deltas []Delta
}

// Source is the external, pre-sorted iterator of Records that a Builder
// consumes. Implementations must yield strictly ascending keys. Next
// returns (nil, nil) to signal clean end of stream.
type Source interface {
	Next() (*Record, error)
}

// SliceSource adapts an in-memory, already-sorted slice of Records into a
// Source, useful for tests and for small in-memory companion indices.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource returns a Source over records, which must already be in
// strictly ascending key order.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next() (*Record, error) {
	if s.pos >= len(s.records) {
		return nil, nil
	}
	r := s.records[s.pos]
	s.pos++
	return &r, nil
}

// BoundKind identifies whether an endpoint of a Bound is open, the
// interval includes it, or excludes it.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

// Bound is one endpoint of a range query.
type Bound struct {
	Kind BoundKind
	Key  []byte
}

// Range describes a forward range query's two endpoints. Start and End
// independently default to Unbounded.
type Range struct {
	Start Bound
	End   Bound
}

// CutoffKind selects one of the three compaction retention policies.
type CutoffKind int

const (
	// CutoffMono drops deleted entries and strips deltas from the rest.
	CutoffMono CutoffKind = iota
	// CutoffLsm drops entries at or below Bound and strips old deltas.
	CutoffLsm
	// CutoffTombstone applies the Lsm numeric test only to deleted entries.
	CutoffTombstone
)

// Cutoff is a seqno-based retention policy consumed by compaction.
type Cutoff struct {
	Kind BoundKind // Unbounded, Included (<=), or Excluded (<) — meaningless for Mono
	Seqno uint64
	kind  CutoffKind
}

// Mono returns the Mono cutoff policy.
func Mono() Cutoff { return Cutoff{kind: CutoffMono} }

// Lsm returns an Lsm cutoff policy. kind must be Included, Excluded, or
// Unbounded (Unbounded drops every entry).
func Lsm(kind BoundKind, seqno uint64) Cutoff {
	return Cutoff{Kind: kind, Seqno: seqno, kind: CutoffLsm}
}

// Tombstone returns a Tombstone cutoff policy, same numeric test as Lsm
// but applied only to deleted entries.
func Tombstone(kind BoundKind, seqno uint64) Cutoff {
	return Cutoff{Kind: kind, Seqno: seqno, kind: CutoffTombstone}
}

// dropsBelow reports whether seqno n is at or below the cutoff bound,
// i.e. whether it should be discarded by an Lsm/Tombstone numeric test.
func (c Cutoff) dropsBelow(n uint64) bool {
	switch c.Kind {
	case Unbounded:
		return true
	case Included:
		return n <= c.Seqno
	case Excluded:
		return n < c.Seqno
	default:
		return true
	}
}

// Purge applies this cutoff to one record, returning the surviving
// record (possibly with deltas stripped) or nil if the whole entry is
// dropped. Purge never mutates its input.
func (c Cutoff) Purge(r *Record) *Record {
	switch c.kind {
	case CutoffMono:
		if r.Value.Deleted {
			return nil
		}
		return &Record{Key: r.Key, Value: r.Value}
	case CutoffLsm:
		if c.dropsBelow(r.Value.Seqno) {
			return nil
		}
		out := &Record{Key: r.Key, Value: r.Value}
		for _, d := range r.Deltas {
			if !c.dropsBelow(d.Seqno) {
				out.Deltas = append(out.Deltas, d)
			}
		}
		return out
	case CutoffTombstone:
		if !r.Value.Deleted {
			return r
		}
		if c.dropsBelow(r.Value.Seqno) {
			return nil
		}
		out := &Record{Key: r.Key, Value: r.Value}
		for _, d := range r.Deltas {
			if !c.dropsBelow(d.Seqno) {
				out.Deltas = append(out.Deltas, d)
			}
		}
		return out
	default:
		return r
	}
}
