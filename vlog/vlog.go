// Package vlog implements the native/reference duality for values and
// deltas: a payload either travels inline inside an index block (Native)
// or lives at a {fpos, length} position in a sidecar value-log file
// (Reference). One envelope form serves both values and deltas.
package vlog

import (
	"encoding/binary"
	"os"

	"github.com/Priyanshu23/robt/internal/ioutil"
	"github.com/Priyanshu23/robt/robterr"
)

// ValueVer1 and DeltaVer1 name the envelope format version. They are not
// written into the envelopes themselves; the version a decoder checks is
// the Ver1 tag of the entry that encloses them.
const (
	ValueVer1 uint32 = 1
	DeltaVer1 uint32 = 1
)

type kind uint8

const (
	kindNative kind = iota
	kindReference
)

// Ref is a descriptor standing in for a payload stored in the value-log
// file: Length bytes starting at absolute offset Fpos.
type Ref struct {
	Fpos   uint64
	Length uint32
}

// ToReference serializes payload for append to the value-log, returning
// the descriptor to embed in the index block and the exact bytes to
// append. Length always equals len(bytesToAppend): the value-log
// carries the raw payload bytes verbatim, with no additional framing.
func ToReference(payload []byte, fpos uint64) (Ref, []byte) {
	return Ref{Fpos: fpos, Length: uint32(len(payload))}, payload
}

// FromReference reads back the payload addressed by ref from the
// value-log file.
func FromReference(vlog *os.File, ref Ref) ([]byte, error) {
	buf := make([]byte, ref.Length)
	if ref.Length == 0 {
		return buf, nil
	}
	if err := ioutil.ReadFullAt(vlog, buf, int64(ref.Fpos)); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeNative frames payload as an inline envelope: kind byte, 4-byte
// length, payload bytes.
func EncodeNative(payload []byte) []byte {
	buf := make([]byte, 1+4+len(payload))
	buf[0] = byte(kindNative)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

// EncodeReference frames ref as a reference envelope: kind byte, 8-byte
// fpos, 4-byte length.
func EncodeReference(ref Ref) []byte {
	buf := make([]byte, 1+8+4)
	buf[0] = byte(kindReference)
	binary.BigEndian.PutUint64(buf[1:9], ref.Fpos)
	binary.BigEndian.PutUint32(buf[9:13], ref.Length)
	return buf
}

// Decoded is the result of decoding one envelope: exactly one of Native
// or Ref is meaningful, selected by IsReference.
type Decoded struct {
	IsReference bool
	Native      []byte
	Ref         Ref
}

// Decode parses one envelope from the head of buf, returning the decoded
// value and the number of bytes consumed.
func Decode(buf []byte) (Decoded, int, error) {
	if len(buf) < 1 {
		return Decoded{}, 0, robterr.At(robterr.FailCodec, "envelope: empty buffer")
	}
	switch kind(buf[0]) {
	case kindNative:
		if len(buf) < 5 {
			return Decoded{}, 0, robterr.At(robterr.FailCodec, "native envelope: truncated length")
		}
		n := binary.BigEndian.Uint32(buf[1:5])
		end := 5 + int(n)
		if len(buf) < end {
			return Decoded{}, 0, robterr.At(robterr.FailCodec, "native envelope: truncated payload")
		}
		payload := make([]byte, n)
		copy(payload, buf[5:end])
		return Decoded{Native: payload}, end, nil
	case kindReference:
		if len(buf) < 13 {
			return Decoded{}, 0, robterr.At(robterr.FailCodec, "reference envelope: truncated")
		}
		ref := Ref{
			Fpos:   binary.BigEndian.Uint64(buf[1:9]),
			Length: binary.BigEndian.Uint32(buf[9:13]),
		}
		return Decoded{IsReference: true, Ref: ref}, 13, nil
	default:
		return Decoded{}, 0, robterr.At(robterr.FailCodec, "envelope: unknown kind tag %d", buf[0])
	}
}

// EncodedLen returns the byte length EncodeNative(payload) would
// produce, without allocating.
func EncodedLen(payload []byte) int { return 1 + 4 + len(payload) }

// ReferenceLen is the fixed byte length of an encoded reference envelope.
const ReferenceLen = 1 + 8 + 4
