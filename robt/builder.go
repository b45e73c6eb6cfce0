package robt

import (
	"os"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/build"
	"github.com/Priyanshu23/robt/flush"
	"github.com/Priyanshu23/robt/kv"
	"github.com/Priyanshu23/robt/robterr"
	"github.com/Priyanshu23/robt/scans"
)

// Build runs a from-scratch build: src must yield records in strictly
// ascending key order. bitmap may be nil, in which case a NoBitmap is
// used (every key always tests as present). appMetadata is an opaque
// blob stamped into the meta-block unexamined.
func Build(dir, name string, cfg Config, src kv.Source, appMetadata []byte, bitmap bloom.Filter) (Stats, error) {
	return buildIndex(dir, name, cfg, src, appMetadata, bitmap, true)
}

// BuildIncremental runs a build whose value-log continues appending
// after an existing vlog file's current length rather than starting
// fresh, matching the original builder's initial()/incremental() split:
// pre-existing value-log bytes are never touched. The index file itself
// is always written fresh — ROBT indices are immutable once built, so
// "incremental" only ever refers to the shared value-log.
func BuildIncremental(dir, name string, cfg Config, src kv.Source, appMetadata []byte, bitmap bloom.Filter) (Stats, error) {
	return buildIndex(dir, name, cfg, src, appMetadata, bitmap, false)
}

func buildIndex(dir, name string, cfg Config, src kv.Source, appMetadata []byte, bitmap bloom.Filter, freshVlog bool) (Stats, error) {
	if bitmap == nil {
		bitmap = bloom.NewNoBitmap()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Stats{}, robterr.Wrap(robterr.IOError, err, "failed to create %s", dir)
	}

	iflush, err := flush.New(indexPath(dir, name), true, cfg.FlushQueueSize)
	if err != nil {
		return Stats{}, err
	}

	vPath := vlogPath(dir, name)
	vflush, err := flush.New(vPath, freshVlog, cfg.FlushQueueSize)
	if err != nil {
		iflush.Close()
		return Stats{}, err
	}
	nAbytes := vflush.CurrentFpos()

	bitmapped := scans.NewBitmappedScan(src, bitmap)
	buildCfg := build.Config{
		ZBlocksize:  cfg.ZBlocksize,
		MBlocksize:  cfg.MBlocksize,
		VBlocksize:  cfg.VBlocksize,
		DeltaOk:     cfg.DeltaOk,
		ValueInVlog: cfg.ValueInVlog,
	}

	result, buildErr := build.Run(buildCfg, bitmapped, iflush, vflush)

	vlogLen, vErr := vflush.Close()
	if buildErr == nil {
		buildErr = vErr
	}
	if buildErr != nil {
		iflush.Close()
		return Stats{}, buildErr
	}

	stats := Stats{
		Name:        name,
		ZBlocksize:  cfg.ZBlocksize,
		MBlocksize:  cfg.MBlocksize,
		VBlocksize:  cfg.VBlocksize,
		DeltaOk:     cfg.DeltaOk,
		ValueInVlog: cfg.ValueInVlog,
		NCount:      result.Stats.NCount,
		NDeleted:    result.Stats.NDeleted,
		Seqno:       result.Stats.Seqno,
		NAbytes:     nAbytes,
		BuildTimeNs: result.Stats.BuildTimeNs,
		EpochNs:     result.Stats.EpochNs,
		RootIsLeaf:  result.RootIsLeaf,
	}
	if vlogLen > 0 {
		stats.VlogFile = NewVLogFileName(name).String()
	} else if !cfg.needsVlogFile() {
		os.Remove(vPath)
	}

	metaBytes, err := encodeMetaBlock(appMetadata, stats, bitmap, result.RootFpos)
	if err != nil {
		iflush.Close()
		return Stats{}, err
	}
	if err := iflush.Post(metaBytes); err != nil {
		iflush.Close()
		return Stats{}, err
	}
	if _, err := iflush.Close(); err != nil {
		return Stats{}, err
	}

	return stats, nil
}
