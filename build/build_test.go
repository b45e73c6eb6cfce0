package build

import (
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/robt/entry"
	"github.com/Priyanshu23/robt/flush"
	"github.com/Priyanshu23/robt/kv"
	"github.com/Priyanshu23/robt/vlog"
)

func openFlushers(t *testing.T, dir string) (*flush.Flusher, *flush.Flusher) {
	t.Helper()
	iflush, err := flush.New(filepath.Join(dir, "idx"), true, 4)
	if err != nil {
		t.Fatal(err)
	}
	vflush, err := flush.New(filepath.Join(dir, "vlog"), true, 4)
	if err != nil {
		t.Fatal(err)
	}
	return iflush, vflush
}

// A single record must collapse the tree all the way to its own leaf
// block: the root is the leaf, not a pointer chain to it.
func TestRunSingleRecordCollapsesToLeafRoot(t *testing.T) {
	dir := t.TempDir()
	iflush, vflush := openFlushers(t, dir)

	src := kv.NewSliceSource([]kv.Record{
		{Key: []byte("only"), Value: kv.Value{Seqno: 1, Payload: []byte("value")}},
	})

	cfg := Config{ZBlocksize: 4096, MBlocksize: 4096, VBlocksize: 4096, DeltaOk: true}
	result, err := Run(cfg, src, iflush, vflush)
	if err != nil {
		t.Fatal(err)
	}
	if !result.RootIsLeaf {
		t.Fatal("expected the root to be the leaf block itself")
	}
	if result.RootFpos != 0 {
		t.Fatalf("expected root fpos 0 (the only block flushed), got %d", result.RootFpos)
	}
	if result.Stats.NCount != 1 {
		t.Fatalf("expected NCount 1, got %d", result.Stats.NCount)
	}

	if _, err := iflush.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := vflush.Close(); err != nil {
		t.Fatal(err)
	}
}

// Forcing exactly one entry per leaf block with multiple records must
// produce a real MZ pointer block above them, so the root is no longer
// a leaf.
func TestRunMultipleLeavesProducesPointerRoot(t *testing.T) {
	dir := t.TempDir()
	iflush, vflush := openFlushers(t, dir)

	records := []kv.Record{
		{Key: []byte("aaa"), Value: kv.Value{Seqno: 1, Payload: []byte("v1")}},
		{Key: []byte("bbb"), Value: kv.Value{Seqno: 2, Payload: []byte("v2")}},
		{Key: []byte("ccc"), Value: kv.Value{Seqno: 3, Payload: []byte("v3")}},
	}
	src := kv.NewSliceSource(records)

	sample := entry.NewZZ(records[0].Key, records[0].Value.Seqno, false, vlog.Decoded{Native: records[0].Value.Payload}, nil)
	zBlocksize := 1 + sample.EncodedLen() + 1 // room for exactly one entry

	cfg := Config{ZBlocksize: zBlocksize, MBlocksize: 4096, VBlocksize: 4096, DeltaOk: true}
	result, err := Run(cfg, src, iflush, vflush)
	if err != nil {
		t.Fatal(err)
	}
	if result.RootIsLeaf {
		t.Fatal("expected a real pointer block above 3 single-entry leaves")
	}
	if result.Stats.NCount != 3 {
		t.Fatalf("expected NCount 3, got %d", result.Stats.NCount)
	}

	if _, err := iflush.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := vflush.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunEmptySourceIsInvalid(t *testing.T) {
	dir := t.TempDir()
	iflush, vflush := openFlushers(t, dir)
	defer iflush.Close()
	defer vflush.Close()

	src := kv.NewSliceSource(nil)
	cfg := Config{ZBlocksize: 4096, MBlocksize: 4096, VBlocksize: 4096, DeltaOk: true}
	if _, err := Run(cfg, src, iflush, vflush); err == nil {
		t.Fatal("expected an error building from an empty source")
	}
}
