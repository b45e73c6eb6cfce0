package scans

import (
	"testing"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/kv"
)

func TestBuildScanAccumulatesStats(t *testing.T) {
	src := kv.NewSliceSource([]kv.Record{
		{Key: []byte("a"), Value: kv.Value{Seqno: 1}},
		{Key: []byte("b"), Value: kv.Value{Seqno: 3, Deleted: true}},
		{Key: []byte("c"), Value: kv.Value{Seqno: 2}, Deltas: []kv.Delta{{Seqno: 5}}},
	})
	bs := NewBuildScan(src)

	for i := 0; i < 3; i++ {
		if _, err := bs.Next(); err != nil {
			t.Fatal(err)
		}
	}
	r, err := bs.Next()
	if err != nil || r != nil {
		t.Fatalf("expected clean end of stream, got (%+v, %v)", r, err)
	}

	stats := bs.Unwrap()
	if stats.NCount != 3 {
		t.Fatalf("expected NCount 3, got %d", stats.NCount)
	}
	if stats.NDeleted != 1 {
		t.Fatalf("expected NDeleted 1, got %d", stats.NDeleted)
	}
	if stats.Seqno != 5 {
		t.Fatalf("expected max seqno 5 (from a delta), got %d", stats.Seqno)
	}
}

func TestBuildScanPushBack(t *testing.T) {
	src := kv.NewSliceSource([]kv.Record{
		{Key: []byte("a"), Value: kv.Value{Seqno: 1}},
		{Key: []byte("b"), Value: kv.Value{Seqno: 2}},
	})
	bs := NewBuildScan(src)

	first, err := bs.Next()
	if err != nil {
		t.Fatal(err)
	}
	bs.Push(first)

	again, err := bs.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(again.Key) != "a" {
		t.Fatalf("expected pushed-back record to be returned first, got %q", again.Key)
	}

	// Pushing back must not re-account into the running stats.
	second, err := bs.Next()
	if err != nil || string(second.Key) != "b" {
		t.Fatalf("expected to resume from the source after the push-back, got %+v, %v", second, err)
	}
	if bs.Unwrap().NCount != 2 {
		t.Fatalf("expected NCount 2 (push-back must not double count), got %d", bs.Unwrap().NCount)
	}
}

func TestBitmappedScanAccumulatesKeys(t *testing.T) {
	src := kv.NewSliceSource([]kv.Record{
		{Key: []byte("x"), Value: kv.Value{Seqno: 1}},
	})
	bitmap := bloom.New(100)
	bs := NewBitmappedScan(src, bitmap)

	if _, err := bs.Next(); err != nil {
		t.Fatal(err)
	}
	if !bitmap.Contains([]byte("x")) {
		t.Fatal("expected key to have been added to the bitmap")
	}

	got, inner := bs.Unwrap()
	if got != bitmap {
		t.Fatal("expected Unwrap to return the same bitmap instance")
	}
	if inner == nil {
		t.Fatal("expected Unwrap to return the wrapped source")
	}
}

func TestCompactScanSkipsPurgedRecords(t *testing.T) {
	src := kv.NewSliceSource([]kv.Record{
		{Key: []byte("a"), Value: kv.Value{Seqno: 1, Deleted: true}},
		{Key: []byte("b"), Value: kv.Value{Seqno: 2}},
	})
	cs := NewCompactScan(src, kv.Mono())

	r, err := cs.Next()
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || string(r.Key) != "b" {
		t.Fatalf("expected the tombstone skipped and 'b' returned, got %+v", r)
	}

	r, err = cs.Next()
	if err != nil || r != nil {
		t.Fatalf("expected clean end of stream, got (%+v, %v)", r, err)
	}
}
