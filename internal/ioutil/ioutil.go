// Package ioutil provides short-read/short-write safe file helpers used
// throughout robt. A short read or write is an invariant violation, not
// a retryable condition, and surfaces as a Fatal error.
package ioutil

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/Priyanshu23/robt/robterr"
)

// WriteFull writes all of data to w, returning a Fatal error if the
// underlying writer accepts fewer bytes than requested without itself
// returning an error (a short write).
func WriteFull(w io.Writer, data []byte) error {
	n, err := w.Write(data)
	if err != nil {
		return robterr.Wrap(robterr.IOError, err, "write failed")
	}
	if n != len(data) {
		return robterr.At(robterr.Fatal, "short write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// PutUint64 appends a big-endian uint64 to w.
func PutUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return WriteFull(w, buf[:])
}

// PutUint32 appends a big-endian uint32 to w.
func PutUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return WriteFull(w, buf[:])
}

// ReadFullAt reads exactly len(buf) bytes from f at off, returning a
// Fatal error whenever fewer bytes are read, including a read that
// starts at or past the end of the file.
func ReadFullAt(f *os.File, buf []byte, off int64) error {
	n, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return robterr.Wrap(robterr.IOError, err, "read failed at offset %d", off)
	}
	if n != len(buf) {
		return robterr.At(robterr.Fatal, "short read at offset %d: got %d of %d bytes", off, n, len(buf))
	}
	return nil
}

// FileSize returns the current size of an open file.
func FileSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, robterr.Wrap(robterr.IOError, err, "stat failed")
	}
	return fi.Size(), nil
}
