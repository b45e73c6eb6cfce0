package entry

import "github.com/Priyanshu23/robt/robterr"

// ArrayBeginMarker and BreakMarker frame every block: a block is the
// begin marker, the concatenated encoded entries, the break marker,
// then zero padding out to the configured block size. The byte values
// are CBOR's indefinite-array framing markers.
const (
	ArrayBeginMarker byte = 0x9f
	BreakMarker      byte = 0xff
)

// EncodeBlock frames entries into a block of exactly blockSize bytes.
// It is a build-time Invalid error for the framed entries plus markers to
// exceed blockSize; callers (the builder levels) are responsible for
// never handing EncodeBlock more entries than fit.
func EncodeBlock(entries []Entry, blockSize int) ([]byte, error) {
	if len(entries) == 0 {
		return nil, robterr.At(robterr.Invalid, "block: cannot encode zero entries")
	}
	buf := make([]byte, 0, blockSize)
	buf = append(buf, ArrayBeginMarker)
	for _, e := range entries {
		buf = append(buf, e.Encode()...)
	}
	buf = append(buf, BreakMarker)
	if len(buf) > blockSize {
		return nil, robterr.At(robterr.Invalid, "block: %d bytes of entries exceed block size %d", len(buf), blockSize)
	}
	padded := make([]byte, blockSize)
	copy(padded, buf)
	return padded, nil
}

// DecodeBlock parses every entry out of a framed block, tolerating the
// trailing zero padding: decoding stops the instant the break marker is
// seen.
func DecodeBlock(block []byte) ([]Entry, error) {
	if len(block) == 0 || block[0] != ArrayBeginMarker {
		return nil, robterr.At(robterr.FailCodec, "block: missing array-begin marker")
	}
	var entries []Entry
	off := 1
	for {
		if off >= len(block) {
			return nil, robterr.At(robterr.FailCodec, "block: missing break marker")
		}
		if block[off] == BreakMarker {
			break
		}
		e, n, err := Decode(block[off:])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		off += n
	}
	if len(entries) == 0 {
		return nil, robterr.At(robterr.FailCodec, "block: zero entries")
	}
	return entries, nil
}
