package robt

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/kv"
)

func makeRecords(n int) []kv.Record {
	recs := make([]kv.Record, 0, n)
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key%03d", i))
		seqno := uint64(i + 1)
		deleted := i%7 == 0 && i != 0
		var payload []byte
		var deltas []kv.Delta
		if deleted {
			deltas = []kv.Delta{{Seqno: seqno - 1, Payload: []byte(fmt.Sprintf("payload-%03d-old", i))}}
		} else {
			payload = []byte(fmt.Sprintf("payload-%03d", i))
			if i%5 == 0 && i != 0 {
				deltas = []kv.Delta{{Seqno: seqno - 1, Payload: []byte(fmt.Sprintf("payload-%03d-old", i))}}
			}
		}
		recs = append(recs, kv.Record{
			Key:    key,
			Value:  kv.Value{Seqno: seqno, Deleted: deleted, Payload: payload},
			Deltas: deltas,
		})
	}
	return recs
}

func buildTestIndex(t *testing.T, dir, name string, n int) Stats {
	t.Helper()
	cfg := NewConfig(
		WithZBlocksize(256),
		WithMBlocksize(256),
		WithDeltaOk(true),
		WithValueInVlog(true),
	)
	src := kv.NewSliceSource(makeRecords(n))
	bitmap := bloom.New(uint(n) * 2)
	stats, err := Build(dir, name, cfg, src, []byte("app-meta"), bitmap)
	if err != nil {
		t.Fatal(err)
	}
	return stats
}

func TestBuildAndGet(t *testing.T) {
	dir := t.TempDir()
	stats := buildTestIndex(t, dir, "widgets", 40)

	if stats.NCount != 40 {
		t.Fatalf("expected NCount 40, got %d", stats.NCount)
	}
	// i in {7,14,21,28,35} are deleted by i%7==0 && i!=0
	if stats.NDeleted != 5 {
		t.Fatalf("expected NDeleted 5, got %d", stats.NDeleted)
	}
	if stats.VlogFile == "" {
		t.Fatal("expected a value-log file to have been persisted")
	}

	r, err := Open(dir, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	rec, err := r.Get([]byte("key010"), true)
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.Value.Payload) != "payload-010" {
		t.Fatalf("unexpected payload: %q", rec.Value.Payload)
	}

	deleted, err := r.Get([]byte("key007"), true)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted.Value.Deleted {
		t.Fatal("expected key007 to be a tombstone")
	}
	if len(deleted.Deltas) != 1 || string(deleted.Deltas[0].Payload) != "payload-007-old" {
		t.Fatalf("unexpected delta history: %+v", deleted.Deltas)
	}

	if _, err := r.Get([]byte("nonexistent"), false); err == nil {
		t.Fatal("expected KeyNotFound for a missing key")
	}

	if !r.MightContain([]byte("key010")) {
		t.Fatal("expected the bitmap to report key010 as possibly present")
	}
}

func TestIterForwardReverseAndRange(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "widgets", 30)

	r, err := Open(dir, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	it, err := r.Iter(kv.Range{}, false, false)
	if err != nil {
		t.Fatal(err)
	}
	var forward []string
	for {
		rec, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if rec == nil {
			break
		}
		forward = append(forward, string(rec.Key))
	}
	if len(forward) != 30 {
		t.Fatalf("expected 30 keys, got %d", len(forward))
	}
	for i := 1; i < len(forward); i++ {
		if forward[i-1] >= forward[i] {
			t.Fatalf("forward iteration not strictly ascending at %d: %s >= %s", i, forward[i-1], forward[i])
		}
	}

	revIt, err := r.Iter(kv.Range{}, true, false)
	if err != nil {
		t.Fatal(err)
	}
	var reverse []string
	for {
		rec, err := revIt.Next()
		if err != nil {
			t.Fatal(err)
		}
		if rec == nil {
			break
		}
		reverse = append(reverse, string(rec.Key))
	}
	if len(reverse) != len(forward) {
		t.Fatalf("expected reverse to yield the same count, got %d", len(reverse))
	}
	for i, k := range reverse {
		if k != forward[len(forward)-1-i] {
			t.Fatalf("reverse order mismatch at %d: got %s, want %s", i, k, forward[len(forward)-1-i])
		}
	}

	rng := kv.Range{
		Start: kv.Bound{Kind: kv.Included, Key: []byte("key010")},
		End:   kv.Bound{Kind: kv.Excluded, Key: []byte("key015")},
	}
	boundedIt, err := r.Iter(rng, false, false)
	if err != nil {
		t.Fatal(err)
	}
	var bounded []string
	for {
		rec, err := boundedIt.Next()
		if err != nil {
			t.Fatal(err)
		}
		if rec == nil {
			break
		}
		bounded = append(bounded, string(rec.Key))
	}
	want := []string{"key010", "key011", "key012", "key013", "key014"}
	if len(bounded) != len(want) {
		t.Fatalf("expected %v, got %v", want, bounded)
	}
	for i := range want {
		if bounded[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, bounded)
		}
	}
}

func TestCompactMonoDropsTombstones(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "widgets", 40)

	cfg := NewConfig(WithZBlocksize(256), WithMBlocksize(256))
	stats, err := Compact(dir, "widgets", dir, "widgets-compacted", cfg, nil, kv.Mono())
	if err != nil {
		t.Fatal(err)
	}
	if stats.NCount != 35 {
		t.Fatalf("expected 35 surviving records after dropping 5 tombstones, got %d", stats.NCount)
	}
	if stats.NDeleted != 0 {
		t.Fatalf("expected 0 deleted records after Mono compaction, got %d", stats.NDeleted)
	}

	r, err := Open(dir, "widgets-compacted")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.Get([]byte("key007"), false); err == nil {
		t.Fatal("expected key007's tombstone to have been purged")
	}
	rec, err := r.Get([]byte("key010"), false)
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.Value.Payload) != "payload-010" {
		t.Fatalf("unexpected surviving payload: %q", rec.Value.Payload)
	}
}

func TestValidatePassesOnFreshBuild(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "widgets", 25)

	if err := Validate(dir, "widgets"); err != nil {
		t.Fatalf("expected a freshly built index to validate cleanly, got %v", err)
	}
}

func TestPurgeRetriesWhileOpenThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "widgets", 10)

	r, err := Open(dir, "widgets")
	if err != nil {
		t.Fatal(err)
	}

	if err := Purge(dir, "widgets"); err == nil {
		t.Fatal("expected Purge to fail while a reader holds the shared lock")
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if err := Purge(dir, "widgets"); err != nil {
		t.Fatalf("expected Purge to succeed once the reader is closed, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "widgets-robt.indx")); !os.IsNotExist(err) {
		t.Fatal("expected the index file to have been removed")
	}
}
