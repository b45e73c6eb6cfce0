// Package entry implements the on-disk Entry tagged union (MM, MZ, ZZ)
// and the fixed-size block framing around it. This is the core codec
// the whole tree format is built on: every field is length- or
// tag-prefixed, so a decoder needs no out-of-band schema.
package entry

import (
	"encoding/binary"

	"github.com/Priyanshu23/robt/robterr"
	"github.com/Priyanshu23/robt/vlog"
)

// Ver1 is the entry format version embedded in every encoded entry.
const Ver1 uint32 = 1

// Kind discriminates the three Entry shapes.
type Kind uint8

const (
	// KindMM is an intermediate-to-intermediate pointer.
	KindMM Kind = iota
	// KindMZ is an intermediate-to-leaf pointer.
	KindMZ
	// KindZZ is a leaf entry carrying a value and its delta history.
	KindZZ
)

// DeltaEntry is one historical version attached to a ZZ entry.
type DeltaEntry struct {
	Seqno   uint64
	Deleted bool
	Value   vlog.Decoded
}

// Entry is the tagged union stored inside a block. Fpos is meaningful
// only for KindMM/KindMZ; Seqno, Deleted, Value and Deltas only for
// KindZZ.
type Entry struct {
	Kind    Kind
	Key     []byte
	Fpos    uint64
	Seqno   uint64
	Deleted bool
	Value   vlog.Decoded
	Deltas  []DeltaEntry
}

// NewMM builds an intermediate-to-intermediate pointer entry.
func NewMM(key []byte, fpos uint64) Entry {
	return Entry{Kind: KindMM, Key: key, Fpos: fpos}
}

// NewMZ builds an intermediate-to-leaf pointer entry.
func NewMZ(key []byte, fpos uint64) Entry {
	return Entry{Kind: KindMZ, Key: key, Fpos: fpos}
}

// NewZZ builds a leaf entry from a value and its deltas, both already in
// native-or-reference envelope form.
func NewZZ(key []byte, seqno uint64, deleted bool, value vlog.Decoded, deltas []DeltaEntry) Entry {
	return Entry{Kind: KindZZ, Key: key, Seqno: seqno, Deleted: deleted, Value: value, Deltas: deltas}
}

func encodeValueEnvelope(v vlog.Decoded) []byte {
	if v.IsReference {
		return vlog.EncodeReference(v.Ref)
	}
	return vlog.EncodeNative(v.Native)
}

// EncodedLen returns the exact byte length Encode(e) would produce,
// without allocating, so callers can test whether an entry fits a block
// before paying for the encode.
func (e Entry) EncodedLen() int {
	n := 4 + 1 + 4 + len(e.Key) // version + kind + key-len + key
	switch e.Kind {
	case KindMM, KindMZ:
		n += 8
	case KindZZ:
		n += 8 + 1 // seqno + deleted
		if e.Value.IsReference {
			n += vlog.ReferenceLen
		} else {
			n += vlog.EncodedLen(e.Value.Native)
		}
		n += 4 // delta count
		for _, d := range e.Deltas {
			n += 8 + 1
			if d.Value.IsReference {
				n += vlog.ReferenceLen
			} else {
				n += vlog.EncodedLen(d.Value.Native)
			}
		}
	}
	return n
}

// Encode serializes e into its self-describing binary form.
func (e Entry) Encode() []byte {
	buf := make([]byte, 0, e.EncodedLen())
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], Ver1)
	buf = append(buf, hdr[:]...)
	buf = append(buf, byte(e.Kind))

	var klen [4]byte
	binary.BigEndian.PutUint32(klen[:], uint32(len(e.Key)))
	buf = append(buf, klen[:]...)
	buf = append(buf, e.Key...)

	switch e.Kind {
	case KindMM, KindMZ:
		var fp [8]byte
		binary.BigEndian.PutUint64(fp[:], e.Fpos)
		buf = append(buf, fp[:]...)
	case KindZZ:
		var seqno [8]byte
		binary.BigEndian.PutUint64(seqno[:], e.Seqno)
		buf = append(buf, seqno[:]...)
		if e.Deleted {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, encodeValueEnvelope(e.Value)...)

		var ndeltas [4]byte
		binary.BigEndian.PutUint32(ndeltas[:], uint32(len(e.Deltas)))
		buf = append(buf, ndeltas[:]...)
		for _, d := range e.Deltas {
			binary.BigEndian.PutUint64(seqno[:], d.Seqno)
			buf = append(buf, seqno[:]...)
			if d.Deleted {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			buf = append(buf, encodeValueEnvelope(d.Value)...)
		}
	}
	return buf
}

// Decode parses one Entry from the head of buf, returning the entry and
// the number of bytes consumed.
func Decode(buf []byte) (Entry, int, error) {
	if len(buf) < 4 {
		return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated version tag")
	}
	ver := binary.BigEndian.Uint32(buf[0:4])
	if ver != Ver1 {
		return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: unsupported version %d", ver)
	}
	off := 4
	if len(buf) < off+1 {
		return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated kind tag")
	}
	kind := Kind(buf[off])
	off++

	if len(buf) < off+4 {
		return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated key length")
	}
	klen := int(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	if len(buf) < off+klen {
		return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated key")
	}
	key := make([]byte, klen)
	copy(key, buf[off:off+klen])
	off += klen

	e := Entry{Kind: kind, Key: key}

	switch kind {
	case KindMM, KindMZ:
		if len(buf) < off+8 {
			return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated fpos")
		}
		e.Fpos = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
	case KindZZ:
		if len(buf) < off+9 {
			return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated zz header")
		}
		e.Seqno = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
		e.Deleted = buf[off] != 0
		off++

		dec, n, err := vlog.Decode(buf[off:])
		if err != nil {
			return Entry{}, 0, err
		}
		e.Value = dec
		off += n

		if len(buf) < off+4 {
			return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated delta count")
		}
		ndeltas := int(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4

		e.Deltas = make([]DeltaEntry, 0, ndeltas)
		for i := 0; i < ndeltas; i++ {
			if len(buf) < off+9 {
				return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: truncated delta header")
			}
			dseqno := binary.BigEndian.Uint64(buf[off : off+8])
			off += 8
			ddeleted := buf[off] != 0
			off++

			ddec, dn, err := vlog.Decode(buf[off:])
			if err != nil {
				return Entry{}, 0, err
			}
			off += dn
			e.Deltas = append(e.Deltas, DeltaEntry{Seqno: dseqno, Deleted: ddeleted, Value: ddec})
		}
	default:
		return Entry{}, 0, robterr.At(robterr.FailCodec, "entry: unknown kind tag %d", kind)
	}

	return e, off, nil
}
