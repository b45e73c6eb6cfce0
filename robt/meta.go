package robt

import (
	"encoding/binary"
	"os"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/internal/ioutil"
	"github.com/Priyanshu23/robt/robterr"
)

// Marker is the fixed fingerprint written into every index file's
// meta-block and checked on open; a mismatch (or a truncated file that
// can't even produce one) means the file is not a valid robt index.
var Marker = []byte("robt-index-v1\x00\x00\x00")

// metaBlockAlign is the padding granularity of the meta-block.
const metaBlockAlign = 4096

// trailerLen is the fixed 16-byte {offset_from_end, payload_length}
// footer at the very end of the file.
const trailerLen = 16

type metaPayload struct {
	AppMetadata []byte
	Stats       []byte
	Bitmap      []byte
	Root        uint64
	Marker      []byte
}

func putBlob(buf []byte, blob []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(blob)))
	buf = append(buf, l[:]...)
	buf = append(buf, blob...)
	return buf
}

func getBlob(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, robterr.At(robterr.FailCodec, "meta: truncated blob length")
	}
	n := int(binary.BigEndian.Uint32(buf[0:4]))
	if len(buf) < 4+n {
		return nil, 0, robterr.At(robterr.FailCodec, "meta: truncated blob")
	}
	blob := make([]byte, n)
	copy(blob, buf[4:4+n])
	return blob, 4 + n, nil
}

// encodeMetaPayload serializes the ordered [AppMetadata, Stats, Bitmap,
// Root, Marker] array, unpadded.
func encodeMetaPayload(p metaPayload) []byte {
	var buf []byte
	buf = putBlob(buf, p.AppMetadata)
	buf = putBlob(buf, p.Stats)
	buf = putBlob(buf, p.Bitmap)
	var root [8]byte
	binary.BigEndian.PutUint64(root[:], p.Root)
	buf = append(buf, root[:]...)
	buf = putBlob(buf, p.Marker)
	return buf
}

func decodeMetaPayload(buf []byte) (metaPayload, error) {
	var p metaPayload
	var n int
	var err error

	p.AppMetadata, n, err = getBlob(buf)
	if err != nil {
		return p, err
	}
	buf = buf[n:]

	p.Stats, n, err = getBlob(buf)
	if err != nil {
		return p, err
	}
	buf = buf[n:]

	p.Bitmap, n, err = getBlob(buf)
	if err != nil {
		return p, err
	}
	buf = buf[n:]

	if len(buf) < 8 {
		return p, robterr.At(robterr.FailCodec, "meta: truncated root fpos")
	}
	p.Root = binary.BigEndian.Uint64(buf[0:8])
	buf = buf[8:]

	p.Marker, _, err = getBlob(buf)
	if err != nil {
		return p, err
	}
	return p, nil
}

// encodeMetaBlock builds the padded meta-block plus its trailing 16-byte
// trailer as a single byte slice, ready to be posted as the final
// block(s) of the index file through the same Flusher that wrote every
// block before it.
func encodeMetaBlock(appMetadata []byte, stats Stats, bitmap bloom.Filter, root uint64) ([]byte, error) {
	statsBytes, err := stats.MarshalBinary()
	if err != nil {
		return nil, err
	}
	bitmapBytes, err := bitmap.Bytes()
	if err != nil {
		return nil, err
	}

	payload := encodeMetaPayload(metaPayload{
		AppMetadata: appMetadata,
		Stats:       statsBytes,
		Bitmap:      bitmapBytes,
		Root:        root,
		Marker:      Marker,
	})

	// The trailer occupies the final 16 bytes of the padded block itself,
	// so the whole meta region stays a multiple of the alignment and the
	// stored offset is a plain seek-from-end distance.
	blockLen := len(payload) + trailerLen
	if rem := blockLen % metaBlockAlign; rem != 0 {
		blockLen += metaBlockAlign - rem
	}
	out := make([]byte, blockLen)
	copy(out, payload)

	binary.BigEndian.PutUint64(out[blockLen-trailerLen:blockLen-8], uint64(blockLen))
	binary.BigEndian.PutUint64(out[blockLen-8:blockLen], uint64(len(payload)))
	return out, nil
}

// readMetaBlock locates and parses the trailer and meta payload at the
// tail of f, validating the marker.
func readMetaBlock(f *os.File) (metaPayload, error) {
	size, err := ioutil.FileSize(f)
	if err != nil {
		return metaPayload{}, err
	}
	if size < trailerLen {
		return metaPayload{}, robterr.At(robterr.InvalidFile, "file too small to contain a trailer")
	}

	var trailer [trailerLen]byte
	if err := ioutil.ReadFullAt(f, trailer[:], size-trailerLen); err != nil {
		return metaPayload{}, err
	}
	blockLen := binary.BigEndian.Uint64(trailer[0:8])
	payloadLen := binary.BigEndian.Uint64(trailer[8:16])

	metaStart := size - int64(blockLen)
	if metaStart < 0 || int64(payloadLen)+trailerLen > int64(blockLen) {
		return metaPayload{}, robterr.At(robterr.InvalidFile, "corrupt meta trailer")
	}

	payload := make([]byte, payloadLen)
	if err := ioutil.ReadFullAt(f, payload, metaStart); err != nil {
		return metaPayload{}, err
	}

	p, err := decodeMetaPayload(payload)
	if err != nil {
		return metaPayload{}, err
	}
	if string(p.Marker) != string(Marker) {
		return metaPayload{}, robterr.At(robterr.InvalidFile, "marker mismatch: not a robt index file")
	}
	return p, nil
}
