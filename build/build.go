// Package build implements the bottom-up packed builder pipeline:
// BuildZZ packs leaves and spills values/deltas to the value-log, and
// BuildLevel packs pointer blocks over the level below, stacked up to
// MaxIntermediateLevels deep. Each level is an iterator yielding one
// (first_key, fpos) separator per block it writes.
package build

import (
	"github.com/Priyanshu23/robt/flush"
	"github.com/Priyanshu23/robt/kv"
	"github.com/Priyanshu23/robt/robterr"
	"github.com/Priyanshu23/robt/scans"
)

// MaxIntermediateLevels bounds how many BuildLevel layers the pipeline
// stacks above BuildZZ. 28 layers of pointer blocks cover any
// practically representable tree at any realistic block size; it is a
// safety cap, not a tuning knob.
const MaxIntermediateLevels = 28

// Config carries the block-packing knobs a build needs. It is a subset
// of robt.Config, kept separate so this package does not import robt
// (which imports build).
type Config struct {
	ZBlocksize  int
	MBlocksize  int
	VBlocksize  int
	DeltaOk     bool
	ValueInVlog bool
}

// Result is everything the façade layer needs to stamp into Stats and
// the meta-block trailer once a build completes.
type Result struct {
	RootFpos   uint64
	RootIsLeaf bool
	Stats      scans.Stats
}

// Run drives one full build: src is the already-ordered input (wrapped
// by the caller in whatever scans adapters the façade layer
// (BitmappedScan, CompactScan) needs; Run itself wraps it in a
// BuildScan), iflush and vflush are the already-opened index and
// value-log flushers.
func Run(cfg Config, src kv.Source, iflush, vflush *flush.Flusher) (Result, error) {
	buildScan := scans.NewBuildScan(src)

	var level Level = NewBuildZZ(cfg, buildScan, iflush, vflush)
	for i := 0; i < MaxIntermediateLevels; i++ {
		level = NewBuildLevel(cfg.MBlocksize, iflush, level)
	}

	var items []*LevelItem
	for {
		item, err := level.Next()
		if err != nil {
			return Result{}, err
		}
		if item == nil {
			break
		}
		items = append(items, item)
	}

	stats := buildScan.Unwrap()

	if len(items) == 0 {
		return Result{}, robterr.At(robterr.Invalid, "build: source produced no entries")
	}
	if len(items) != 1 {
		return Result{}, robterr.At(robterr.Fatal, "build: tree exceeded %d intermediate levels", MaxIntermediateLevels)
	}

	return Result{RootFpos: items[0].Fpos, RootIsLeaf: items[0].IsLeaf, Stats: stats}, nil
}
