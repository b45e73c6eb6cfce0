// Package memtable provides an in-memory, ordered skip list used as a
// mutable companion to an immutable robt index: writes land here first,
// keyed by key and tagged with their seqno, and are later bulk-loaded into a fresh robt index via
// Source. It is not itself persisted — its only export is the sorted
// kv.Source a builder consumes. Nodes store a *kv.Record with its full
// seqno/delta history; Upsert and Delete build the delta chain at
// insertion time.
package memtable

import (
	"iter"
	"math/rand"

	"github.com/Priyanshu23/robt/kv"
)

const maxLevel = 32

// node is one skip-list entry: key is the string form of the record's
// raw key, used for ordering; record is the current value plus its
// delta history.
type node struct {
	key     string
	record  *kv.Record
	forward []*node
}

func newNode(key string, record *kv.Record, levels int) *node {
	return &node{key: key, record: record, forward: make([]*node, levels+1)}
}

// Index is a mutable, ordered companion to an immutable robt index. Its
// keys are arbitrary byte strings; its values are *kv.Record, carrying
// the current value plus (when deltaOk) the accumulated delta history
// from every prior Upsert/Delete of that key.
type Index struct {
	head    *node
	levels  int
	size    int
	deltaOk bool
}

// NewIndex creates an empty companion index. When deltaOk is true, a
// key's prior value is retained as a Delta on every subsequent
// Upsert/Delete rather than being discarded.
func NewIndex(deltaOk bool) *Index {
	return &Index{head: newNode("", nil, 0), levels: -1, deltaOk: deltaOk}
}

func getRandomLevel() int {
	level := 0
	for rand.Int31()&1 == 0 && level < maxLevel {
		level++
	}
	return level
}

func (ix *Index) adjustLevels(level int) {
	temp := ix.head.forward
	ix.head = newNode("", nil, level)
	ix.levels = level
	copy(ix.head.forward, temp)
}

// find returns the node keyed exactly key, if present.
func (ix *Index) find(key string) (*node, bool) {
	curr := ix.head
	for level := ix.levels; level >= 0; level-- {
		for {
			if curr.forward[level] == nil || curr.forward[level].key > key {
				break
			} else if curr.forward[level].key == key {
				return curr.forward[level], true
			}
			curr = curr.forward[level]
		}
	}
	return nil, false
}

// Get returns the current record for key, if any.
func (ix *Index) Get(key []byte) (*kv.Record, bool) {
	n, ok := ix.find(string(key))
	if !ok {
		return nil, false
	}
	return n.record, true
}

// priorDelta turns existing's current value into the Delta a new
// Upsert/Delete of the same key should prepend, or nil when delta
// tracking is off or there is no existing record. The new Delta carries
// the prior value's full payload, not a diff against the new value.
func (ix *Index) priorDelta(existing *kv.Record) []kv.Delta {
	if existing == nil || !ix.deltaOk {
		return nil
	}
	d := kv.Delta{Seqno: existing.Value.Seqno, Deleted: existing.Value.Deleted, Payload: existing.Value.Payload}
	return append([]kv.Delta{d}, existing.Deltas...)
}

// put inserts or overwrites the record at key, growing the skip list's
// level count as needed.
func (ix *Index) put(key string, record *kv.Record) {
	newLevel := getRandomLevel()
	if newLevel > ix.levels {
		ix.adjustLevels(newLevel)
	}

	updates := make([]*node, ix.levels+1)
	x := ix.head

	for level := ix.levels; level >= 0; level-- {
		for x.forward[level] != nil && x.forward[level].key < key {
			x = x.forward[level]
		}
		updates[level] = x
	}

	if x.forward[0] != nil && x.forward[0].key == key {
		x.forward[0].record = record
		return
	}

	n := newNode(key, record, newLevel)
	for level := 0; level <= newLevel; level++ {
		n.forward[level] = updates[level].forward[level]
		updates[level].forward[level] = n
	}
	ix.size++
}

// Upsert records a live value for key at seqno.
func (ix *Index) Upsert(key []byte, seqno uint64, payload []byte) {
	existing, _ := ix.Get(key)
	rec := &kv.Record{
		Key:    append([]byte(nil), key...),
		Value:  kv.Value{Seqno: seqno, Payload: append([]byte(nil), payload...)},
		Deltas: ix.priorDelta(existing),
	}
	ix.put(string(key), rec)
}

// Delete records a tombstone for key at seqno.
func (ix *Index) Delete(key []byte, seqno uint64) {
	existing, _ := ix.Get(key)
	rec := &kv.Record{
		Key:    append([]byte(nil), key...),
		Value:  kv.Value{Seqno: seqno, Deleted: true},
		Deltas: ix.priorDelta(existing),
	}
	ix.put(string(key), rec)
}

// Len reports the number of distinct keys held.
func (ix *Index) Len() int { return ix.size }

// Iterator walks every record in ascending key order.
func (ix *Index) Iterator() iter.Seq[*kv.Record] {
	return func(yield func(*kv.Record) bool) {
		curr := ix.head
		for curr.forward[0] != nil {
			if !yield(curr.forward[0].record) {
				return
			}
			curr = curr.forward[0]
		}
	}
}

// Source returns the index's current contents as a kv.Source yielding
// records in strictly ascending key order, the form robt.Build expects.
// The returned source is a one-shot snapshot of the index at the moment
// Source is called; later writes to ix do not affect it.
func (ix *Index) Source() kv.Source {
	var snap []*kv.Record
	for rec := range ix.Iterator() {
		snap = append(snap, rec)
	}
	next, stop := iter.Pull(func(yield func(*kv.Record) bool) {
		for _, rec := range snap {
			if !yield(rec) {
				return
			}
		}
	})
	return &indexSource{next: next, stop: stop}
}

type indexSource struct {
	next func() (*kv.Record, bool)
	stop func()
	done bool
}

func (s *indexSource) Next() (*kv.Record, error) {
	if s.done {
		return nil, nil
	}
	rec, ok := s.next()
	if !ok {
		s.done = true
		s.stop()
		return nil, nil
	}
	return rec, nil
}
