// Package bloom defines the persisted membership-structure capability
// used by the bitmap meta-block, with two implementations: a real bloom
// filter backed by bits-and-blooms/bloom/v3 and a NoBitmap fallback
// that always reports a match.
package bloom

import (
	"bytes"
	"encoding/binary"

	"github.com/Priyanshu23/robt/robterr"
	bbloom "github.com/bits-and-blooms/bloom/v3"
)

// Filter is the bitmap capability a Builder accumulates keys into during
// a build and a Reader consults before a potentially wasteful descent.
type Filter interface {
	Add(key []byte)
	Contains(key []byte) bool
	Bytes() ([]byte, error)
	Len() int
}

const defaultFalsePositiveRate = 0.01

// bloomFilter adapts bits-and-blooms/bloom/v3 to the Filter interface,
// persisting K and Cap alongside the bit array.
type bloomFilter struct {
	f *bbloom.BloomFilter
}

// New creates a Filter sized for expectedItems keys at the default false
// positive rate.
func New(expectedItems uint) Filter {
	return &bloomFilter{f: bbloom.NewWithEstimates(expectedItems, defaultFalsePositiveRate)}
}

func (b *bloomFilter) Add(key []byte) { b.f.Add(key) }

func (b *bloomFilter) Contains(key []byte) bool { return b.f.Test(key) }

func (b *bloomFilter) Len() int { return int(b.f.Cap()) }

// Bytes serializes K and Cap ahead of the bit array, so a restored
// filter hashes exactly like the one that was persisted.
func (b *bloomFilter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(b.f.K())); err != nil {
		return nil, robterr.Wrap(robterr.IOError, err, "bloom: failed to write K")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(b.f.Cap())); err != nil {
		return nil, robterr.Wrap(robterr.IOError, err, "bloom: failed to write cap")
	}
	if _, err := b.f.WriteTo(&buf); err != nil {
		return nil, robterr.Wrap(robterr.IOError, err, "bloom: failed to write bit array")
	}
	return buf.Bytes(), nil
}

// FromBytes reconstructs a Filter previously produced by Bytes. An empty
// slice reconstructs to a NoBitmap (always-true) filter, matching a build
// where bitmap tracking was disabled but the meta slot is still present.
func FromBytes(data []byte) (Filter, error) {
	if len(data) == 0 {
		return NewNoBitmap(), nil
	}
	if len(data) < 8 {
		return nil, robterr.At(robterr.FailCodec, "bloom: truncated header")
	}
	f := &bbloom.BloomFilter{}
	if _, err := f.ReadFrom(bytes.NewReader(data[8:])); err != nil {
		return nil, robterr.Wrap(robterr.FailCodec, err, "bloom: failed to parse bit array")
	}
	return &bloomFilter{f: f}, nil
}

// noBitmap is the zero-dependency fallback: it never reports a key as
// absent, so callers always fall through to the real block descent.
type noBitmap struct{}

// NewNoBitmap returns a Filter that tracks nothing and always returns
// true from Contains.
func NewNoBitmap() Filter { return noBitmap{} }

func (noBitmap) Add([]byte)             {}
func (noBitmap) Contains([]byte) bool   { return true }
func (noBitmap) Len() int               { return 0 }
func (noBitmap) Bytes() ([]byte, error) { return nil, nil }
