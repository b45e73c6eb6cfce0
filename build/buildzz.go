package build

import (
	"github.com/Priyanshu23/robt/entry"
	"github.com/Priyanshu23/robt/flush"
	"github.com/Priyanshu23/robt/robterr"
	"github.com/Priyanshu23/robt/scans"
	"github.com/Priyanshu23/robt/vlog"
)

// BuildZZ packs leaf (Z) blocks: it pulls records from a BuildScan,
// reshapes each value and its deltas (dropping deltas if DeltaOk is
// false, converting to value-log references if ValueInVlog is true),
// encodes the resulting ZZ entry, and either appends it to the block
// being packed or — if it no longer fits — pushes the original,
// unconverted record back onto the BuildScan and flushes what it has.
type BuildZZ struct {
	cfg    Config
	src    *scans.BuildScan
	iflush *flush.Flusher
	vflush *flush.Flusher
}

// NewBuildZZ constructs a leaf packer over src.
func NewBuildZZ(cfg Config, src *scans.BuildScan, iflush, vflush *flush.Flusher) *BuildZZ {
	return &BuildZZ{cfg: cfg, src: src, iflush: iflush, vflush: vflush}
}

// convert reshapes one value/delta payload into its envelope form. When
// valueInVlog is false the payload stays Native and nothing is appended
// to the value-log.
func (z *BuildZZ) convert(payload []byte, vfpos uint64) (vlog.Decoded, []byte) {
	if !z.cfg.ValueInVlog {
		return vlog.Decoded{Native: payload}, nil
	}
	ref, toAppend := vlog.ToReference(payload, vfpos)
	return vlog.Decoded{IsReference: true, Ref: ref}, toAppend
}

func (z *BuildZZ) Next() (*LevelItem, error) {
	fpos := z.iflush.CurrentFpos()
	vfpos := z.vflush.CurrentFpos()

	var zEntries []entry.Entry
	var vblock []byte
	if z.cfg.VBlocksize > 0 {
		vblock = make([]byte, 0, z.cfg.VBlocksize)
	}
	var firstKey []byte
	runningLen := 0

	for {
		rec, err := z.src.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}

		deltas := rec.Deltas
		if !z.cfg.DeltaOk {
			deltas = nil
		}

		candidateVfpos := vfpos
		valueEnv, valueAppend := z.convert(rec.Value.Payload, candidateVfpos)
		candidateVfpos += uint64(len(valueAppend))

		deltaEntries := make([]entry.DeltaEntry, 0, len(deltas))
		var deltaAppend []byte
		for _, d := range deltas {
			dEnv, dAppend := z.convert(d.Payload, candidateVfpos)
			candidateVfpos += uint64(len(dAppend))
			deltaAppend = append(deltaAppend, dAppend...)
			deltaEntries = append(deltaEntries, entry.DeltaEntry{Seqno: d.Seqno, Deleted: d.Deleted, Value: dEnv})
		}

		e := entry.NewZZ(rec.Key, rec.Value.Seqno, rec.Value.Deleted, valueEnv, deltaEntries)
		candidateLen := e.EncodedLen()

		if 1+runningLen+candidateLen+1 > z.cfg.ZBlocksize {
			if len(zEntries) == 0 {
				return nil, robterr.At(robterr.Invalid, "entry for key exceeds z_blocksize %d", z.cfg.ZBlocksize)
			}
			z.src.Push(rec)
			break
		}

		zEntries = append(zEntries, e)
		runningLen += candidateLen
		vblock = append(vblock, valueAppend...)
		vblock = append(vblock, deltaAppend...)
		vfpos = candidateVfpos
		if firstKey == nil {
			firstKey = rec.Key
		}
	}

	if len(zEntries) == 0 {
		return nil, nil
	}

	encoded, err := entry.EncodeBlock(zEntries, z.cfg.ZBlocksize)
	if err != nil {
		return nil, err
	}

	// Value-log bytes are posted before the index block that references
	// them, so every reference is flushed by the time its pointer is.
	if len(vblock) > 0 {
		if err := z.vflush.Post(vblock); err != nil {
			return nil, err
		}
	}
	if err := z.iflush.Post(encoded); err != nil {
		return nil, err
	}

	return &LevelItem{Key: firstKey, Fpos: fpos, IsLeaf: true}, nil
}
