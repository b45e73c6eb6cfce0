package robt

import (
	"bytes"
	"os"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/internal/lock"
	"github.com/Priyanshu23/robt/kv"
	"github.com/Priyanshu23/robt/robterr"
	"github.com/Priyanshu23/robt/scans"
)

// IterVersions is the full-history counterpart to Iter(rng, reverse,
// false): it returns every delta alongside each record's current value,
// matching the original reader's iter()/iter_versions() split.
func (r *Reader) IterVersions(rng kv.Range, reverse bool) (*Iter, error) {
	return r.Iter(rng, reverse, true)
}

// Compact streams every version of every record out of the index named
// srcName through a CompactScan applying cutoff, building a brand new
// index named dstName. The source index is left untouched and
// independently purgeable afterward.
func Compact(srcDir, srcName, dstDir, dstName string, cfg Config, bitmap bloom.Filter, cutoff kv.Cutoff) (Stats, error) {
	r, err := Open(srcDir, srcName)
	if err != nil {
		return Stats{}, err
	}
	defer r.Close()

	it, err := r.IterVersions(kv.Range{}, false)
	if err != nil {
		return Stats{}, err
	}

	compacted := scans.NewCompactScan(it, cutoff)
	return Build(dstDir, dstName, cfg, compacted, r.AppMetadata(), bitmap)
}

// Purge attempts to delete the index (and, if present, its value-log).
// It requires an exclusive lock on every file involved; if any file is
// still held by a reader or an in-flight flush, Purge returns a Retry
// error and deletes nothing.
func Purge(dir, name string) error {
	idxPath := indexPath(dir, name)
	idxFile, err := os.OpenFile(idxPath, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return robterr.At(robterr.Invalid, "no index file named %q in %s", name, dir)
		}
		return robterr.Wrap(robterr.IOError, err, "failed to open %s", idxPath)
	}
	defer idxFile.Close()

	if err := lock.Exclusive(idxFile); err != nil {
		return err
	}
	defer lock.Unlock(idxFile)

	vp := vlogPath(dir, name)
	var vlogFile *os.File
	if fileExists(vp) {
		vlogFile, err = os.OpenFile(vp, os.O_RDWR, 0o644)
		if err != nil {
			return robterr.Wrap(robterr.IOError, err, "failed to open %s", vp)
		}
		defer vlogFile.Close()

		if err := lock.Exclusive(vlogFile); err != nil {
			return err
		}
		defer lock.Unlock(vlogFile)
	}

	if err := os.Remove(idxPath); err != nil {
		return robterr.Wrap(robterr.IOError, err, "failed to remove %s", idxPath)
	}
	if vlogFile != nil {
		if err := os.Remove(vp); err != nil {
			return robterr.Wrap(robterr.IOError, err, "failed to remove %s", vp)
		}
	}
	return nil
}

// Validate performs a full forward iteration, checking the index's
// structural invariants: strictly ascending keys, every delta's seqno
// strictly less than its value's seqno, the observed maximum seqno at
// most stats.Seqno, and the observed count/deleted-count matching Stats
// exactly.
func Validate(dir, name string) error {
	r, err := Open(dir, name)
	if err != nil {
		return err
	}
	defer r.Close()

	it, err := r.IterVersions(kv.Range{}, false)
	if err != nil {
		return err
	}

	var prevKey []byte
	var count, deleted, maxSeqno uint64
	for {
		rec, err := it.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		if prevKey != nil && bytes.Compare(rec.Key, prevKey) <= 0 {
			return robterr.At(robterr.Invalid, "validate: keys not strictly ascending at %x", rec.Key)
		}
		prevKey = rec.Key

		if rec.Value.Seqno > maxSeqno {
			maxSeqno = rec.Value.Seqno
		}
		for _, d := range rec.Deltas {
			if d.Seqno >= rec.Value.Seqno {
				return robterr.At(robterr.Invalid, "validate: delta seqno %d not less than value seqno %d", d.Seqno, rec.Value.Seqno)
			}
			if d.Seqno > maxSeqno {
				maxSeqno = d.Seqno
			}
		}

		count++
		if rec.Value.Deleted {
			deleted++
		}
	}

	if maxSeqno > r.stats.Seqno {
		return robterr.At(robterr.Invalid, "validate: max seqno %d exceeds stats.seqno %d", maxSeqno, r.stats.Seqno)
	}
	if count != r.stats.NCount {
		return robterr.At(robterr.Invalid, "validate: count %d != stats.n_count %d", count, r.stats.NCount)
	}
	if deleted != r.stats.NDeleted {
		return robterr.At(robterr.Invalid, "validate: deleted %d != stats.n_deleted %d", deleted, r.stats.NDeleted)
	}
	return nil
}
