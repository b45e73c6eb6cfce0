package robt

import (
	"bytes"
	"sort"

	"github.com/Priyanshu23/robt/entry"
	"github.com/Priyanshu23/robt/kv"
)

// Iter is a stack-of-block-slices range iterator. The top of the stack
// holds the current leaf slice; each layer below holds a parent's
// remaining siblings, grandparent's remaining siblings, and so on — a
// pop either yields a value (leaf entry) or loads and pushes a block
// (pointer entry). Reverse iteration stores every pushed layer already
// reversed, so the same pop-from-front logic serves both directions.
type Iter struct {
	r            *Reader
	stack        [][]entry.Entry
	reverse      bool
	withVersions bool
	term         kv.Bound
	done         bool
}

func reverseEntries(in []entry.Entry) []entry.Entry {
	out := make([]entry.Entry, len(in))
	for i, e := range in {
		out[len(in)-1-i] = e
	}
	return out
}

func floorIdx(entries []entry.Entry, key []byte) int {
	idx := sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].Key, key) > 0
	})
	return idx - 1
}

func floorExclIdx(entries []entry.Entry, key []byte) int {
	idx := sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].Key, key) >= 0
	})
	return idx - 1
}

func ceilIdx(entries []entry.Entry, key []byte) int {
	return sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].Key, key) >= 0
	})
}

func ceilExclIdx(entries []entry.Entry, key []byte) int {
	return sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].Key, key) > 0
	})
}

// pivotIndex locates the descent/start index within one block. At
// intermediate levels Excluded behaves like Included: a separator equal
// to the bound may still point to a leaf whose interior keys exceed it,
// so the real test only fires once we reach leaf entries.
func pivotIndex(cur []entry.Entry, bound kv.Bound, reverse, isLeaf bool) int {
	if !isLeaf {
		switch bound.Kind {
		case kv.Unbounded:
			if !reverse {
				return 0
			}
			return len(cur) - 1
		default:
			if !reverse {
				idx := floorIdx(cur, bound.Key)
				if idx < 0 {
					idx = 0
				}
				return idx
			}
			return floorIdx(cur, bound.Key)
		}
	}

	switch bound.Kind {
	case kv.Unbounded:
		if !reverse {
			return 0
		}
		return len(cur) - 1
	case kv.Included:
		if !reverse {
			return ceilIdx(cur, bound.Key)
		}
		return floorIdx(cur, bound.Key)
	case kv.Excluded:
		if !reverse {
			return ceilExclIdx(cur, bound.Key)
		}
		return floorExclIdx(cur, bound.Key)
	default:
		return 0
	}
}

// Iter builds a range iterator over rng, descending from the root to the
// leaf containing (or first exceeding/preceding) its starting bound.
func (r *Reader) Iter(rng kv.Range, reverse, withVersions bool) (*Iter, error) {
	descendBound, termBound := rng.Start, rng.End
	if reverse {
		descendBound, termBound = rng.End, rng.Start
	}

	it := &Iter{r: r, reverse: reverse, withVersions: withVersions, term: termBound}

	cur := r.root
	isLeaf := r.stats.RootIsLeaf

	for {
		idx := pivotIndex(cur, descendBound, reverse, isLeaf)

		if isLeaf {
			var head []entry.Entry
			if !reverse {
				if idx >= 0 && idx < len(cur) {
					head = append([]entry.Entry(nil), cur[idx:]...)
				}
			} else if idx >= 0 {
				head = reverseEntries(cur[:idx+1])
			}
			it.pushLayer(head)
			return it, nil
		}

		if idx < 0 || idx >= len(cur) {
			// Bound lies entirely outside this subtree: nothing to yield.
			return it, nil
		}

		if !reverse {
			it.pushLayer(append([]entry.Entry(nil), cur[idx+1:]...))
		} else {
			it.pushLayer(reverseEntries(cur[:idx]))
		}

		pivot := cur[idx]
		childIsLeaf := pivot.Kind == entry.KindMZ
		children, err := r.readBlock(pivot.Fpos, childIsLeaf)
		if err != nil {
			return nil, err
		}
		cur = children
		isLeaf = childIsLeaf
	}
}

func (it *Iter) pushLayer(layer []entry.Entry) {
	if len(layer) > 0 {
		it.stack = append(it.stack, layer)
	}
}

func (it *Iter) popHead() (entry.Entry, bool) {
	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]
		if len(top) == 0 {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		head := top[0]
		it.stack[len(it.stack)-1] = top[1:]
		return head, true
	}
	return entry.Entry{}, false
}

func (it *Iter) violatesTerm(key []byte) bool {
	switch it.term.Kind {
	case kv.Unbounded:
		return false
	case kv.Included:
		if !it.reverse {
			return bytes.Compare(key, it.term.Key) > 0
		}
		return bytes.Compare(key, it.term.Key) < 0
	case kv.Excluded:
		if !it.reverse {
			return bytes.Compare(key, it.term.Key) >= 0
		}
		return bytes.Compare(key, it.term.Key) <= 0
	default:
		return false
	}
}

// Next returns the next record in range order, or (nil, nil) once the
// range is exhausted.
func (it *Iter) Next() (*kv.Record, error) {
	if it.done {
		return nil, nil
	}
	for {
		e, ok := it.popHead()
		if !ok {
			it.done = true
			return nil, nil
		}
		switch e.Kind {
		case entry.KindZZ:
			if it.violatesTerm(e.Key) {
				it.stack = nil
				it.done = true
				return nil, nil
			}
			return it.r.materialize(e, it.withVersions)
		default:
			isLeaf := e.Kind == entry.KindMZ
			children, err := it.r.readBlock(e.Fpos, isLeaf)
			if err != nil {
				return nil, err
			}
			if it.reverse {
				children = reverseEntries(children)
			}
			it.pushLayer(children)
		}
	}
}
