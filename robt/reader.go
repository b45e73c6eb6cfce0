package robt

import (
	"bytes"
	"os"
	"sort"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/entry"
	"github.com/Priyanshu23/robt/internal/ioutil"
	"github.com/Priyanshu23/robt/internal/lock"
	"github.com/Priyanshu23/robt/kv"
	"github.com/Priyanshu23/robt/robterr"
	"github.com/Priyanshu23/robt/vlog"
)

// Reader serves point lookups and range iteration against one immutable
// index. It holds shared advisory locks on both files for its entire
// lifetime; Close releases them.
type Reader struct {
	dir, name string

	indexFile *os.File
	vlogFile  *os.File

	stats       Stats
	bitmap      bloom.Filter
	appMetadata []byte
	root        []entry.Entry
}

// Open locates the index file named name under dir, opens it (and its
// value-log, if one was persisted) under a shared lock, and loads the
// root block into memory.
func Open(dir, name string) (*Reader, error) {
	path, ok, err := findIndexFile(dir, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, robterr.At(robterr.Invalid, "no index file named %q in %s", name, dir)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, robterr.Wrap(robterr.IOError, err, "failed to open %s", path)
	}
	if err := lock.Shared(f); err != nil {
		f.Close()
		return nil, err
	}

	r, err := loadReader(dir, name, f)
	if err != nil {
		lock.Unlock(f)
		f.Close()
		return nil, err
	}
	return r, nil
}

func loadReader(dir, name string, f *os.File) (*Reader, error) {
	meta, err := readMetaBlock(f)
	if err != nil {
		return nil, err
	}
	stats, err := UnmarshalStats(meta.Stats)
	if err != nil {
		return nil, err
	}
	bitmap, err := bloom.FromBytes(meta.Bitmap)
	if err != nil {
		return nil, err
	}

	rootBlockSize := stats.MBlocksize
	if stats.RootIsLeaf {
		rootBlockSize = stats.ZBlocksize
	}
	rootBlock := make([]byte, rootBlockSize)
	if err := ioutil.ReadFullAt(f, rootBlock, int64(meta.Root)); err != nil {
		return nil, err
	}
	rootEntries, err := entry.DecodeBlock(rootBlock)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		dir:         dir,
		name:        name,
		indexFile:   f,
		stats:       stats,
		bitmap:      bitmap,
		appMetadata: meta.AppMetadata,
		root:        rootEntries,
	}

	if stats.VlogFile != "" {
		vf, err := os.Open(vlogPath(dir, name))
		if err != nil {
			return nil, robterr.Wrap(robterr.IOError, err, "failed to open value-log for %q", name)
		}
		if err := lock.Shared(vf); err != nil {
			vf.Close()
			return nil, err
		}
		r.vlogFile = vf
	}

	return r, nil
}

// Clone reopens both files with fresh descriptors (and fresh shared
// locks) but shares the already-decoded root block, stats and bitmap
// with the original; all three are immutable after open, so the clone
// is an independent Reader lifetime without a second meta parse.
func (r *Reader) Clone() (*Reader, error) {
	f, err := os.Open(indexPath(r.dir, r.name))
	if err != nil {
		return nil, robterr.Wrap(robterr.IOError, err, "failed to reopen index for %q", r.name)
	}
	if err := lock.Shared(f); err != nil {
		f.Close()
		return nil, err
	}

	clone := &Reader{
		dir:         r.dir,
		name:        r.name,
		indexFile:   f,
		stats:       r.stats,
		bitmap:      r.bitmap,
		appMetadata: r.appMetadata,
		root:        r.root,
	}

	if r.vlogFile != nil {
		vf, err := os.Open(vlogPath(r.dir, r.name))
		if err != nil {
			lock.Unlock(f)
			f.Close()
			return nil, robterr.Wrap(robterr.IOError, err, "failed to reopen value-log for %q", r.name)
		}
		if err := lock.Shared(vf); err != nil {
			vf.Close()
			lock.Unlock(f)
			f.Close()
			return nil, err
		}
		clone.vlogFile = vf
	}

	return clone, nil
}

// Stats returns the persisted build statistics.
func (r *Reader) Stats() Stats { return r.stats }

// AppMetadata returns the opaque application metadata blob stamped into
// the index at build time.
func (r *Reader) AppMetadata() []byte { return r.appMetadata }

// MightContain consults the persisted bitmap before a caller pays for a
// Get; false means the key is definitely absent, true means it might be
// present (or always, for a NoBitmap-backed index).
func (r *Reader) MightContain(key []byte) bool { return r.bitmap.Contains(key) }

// Close releases the shared locks and closes both underlying files.
func (r *Reader) Close() error {
	var firstErr error
	if err := lock.Unlock(r.indexFile); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.indexFile.Close(); err != nil && firstErr == nil {
		firstErr = robterr.Wrap(robterr.IOError, err, "failed to close index file")
	}
	if r.vlogFile != nil {
		if err := lock.Unlock(r.vlogFile); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := r.vlogFile.Close(); err != nil && firstErr == nil {
			firstErr = robterr.Wrap(robterr.IOError, err, "failed to close value-log file")
		}
	}
	return firstErr
}

// readBlock loads the m-block or z-block at fpos.
func (r *Reader) readBlock(fpos uint64, isLeaf bool) ([]entry.Entry, error) {
	size := r.stats.MBlocksize
	if isLeaf {
		size = r.stats.ZBlocksize
	}
	buf := make([]byte, size)
	if err := ioutil.ReadFullAt(r.indexFile, buf, int64(fpos)); err != nil {
		return nil, err
	}
	return entry.DecodeBlock(buf)
}

// floor returns the index of the rightmost entry whose key is <= target,
// or -1 if every entry's key is greater than target.
func floor(entries []entry.Entry, target []byte) int {
	idx := sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].Key, target) > 0
	})
	return idx - 1
}

func (r *Reader) materialize(e entry.Entry, withVersions bool) (*kv.Record, error) {
	payload, err := r.resolve(e.Value)
	if err != nil {
		return nil, err
	}
	rec := &kv.Record{
		Key: append([]byte(nil), e.Key...),
		Value: kv.Value{
			Seqno:   e.Seqno,
			Deleted: e.Deleted,
			Payload: payload,
		},
	}
	if withVersions {
		for _, d := range e.Deltas {
			dp, err := r.resolve(d.Value)
			if err != nil {
				return nil, err
			}
			rec.Deltas = append(rec.Deltas, kv.Delta{Seqno: d.Seqno, Deleted: d.Deleted, Payload: dp})
		}
	}
	return rec, nil
}

func (r *Reader) resolve(v vlog.Decoded) ([]byte, error) {
	if !v.IsReference {
		return v.Native, nil
	}
	if r.vlogFile == nil {
		return nil, robterr.At(robterr.Fatal, "entry references value-log but none is open")
	}
	return vlog.FromReference(r.vlogFile, v.Ref)
}

// Get performs a point lookup. withVersions controls whether the
// returned record carries its delta history or just its current value.
func (r *Reader) Get(key []byte, withVersions bool) (*kv.Record, error) {
	current := r.root
	for {
		idx := floor(current, key)
		if idx < 0 {
			return nil, robterr.At(robterr.KeyNotFound, "key not found")
		}
		e := current[idx]
		switch e.Kind {
		case entry.KindMM:
			next, err := r.readBlock(e.Fpos, false)
			if err != nil {
				return nil, err
			}
			current = next
		case entry.KindMZ:
			next, err := r.readBlock(e.Fpos, true)
			if err != nil {
				return nil, err
			}
			current = next
		case entry.KindZZ:
			if !bytes.Equal(e.Key, key) {
				return nil, robterr.At(robterr.KeyNotFound, "key not found")
			}
			return r.materialize(e, withVersions)
		}
	}
}
