package entry

import (
	"testing"

	"github.com/Priyanshu23/robt/robterr"
)

func TestEncodeDecodeBlockRoundTrip(t *testing.T) {
	entries := []Entry{
		NewMZ([]byte("a"), 100),
		NewMZ([]byte("m"), 200),
		NewMZ([]byte("z"), 300),
	}

	block, err := EncodeBlock(entries, 256)
	if err != nil {
		t.Fatal(err)
	}
	if len(block) != 256 {
		t.Fatalf("expected exactly 256 bytes, got %d", len(block))
	}

	got, err := DecodeBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i, e := range got {
		if string(e.Key) != string(entries[i].Key) || e.Fpos != entries[i].Fpos {
			t.Fatalf("entry %d mismatch: %+v", i, e)
		}
	}
}

func TestEncodeBlockRejectsEmpty(t *testing.T) {
	if _, err := EncodeBlock(nil, 256); !robterr.Is(err, robterr.Invalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
}

func TestEncodeBlockRejectsOversize(t *testing.T) {
	entries := []Entry{NewMZ([]byte("a-very-long-key-that-will-not-fit"), 1)}
	if _, err := EncodeBlock(entries, 8); !robterr.Is(err, robterr.Invalid) {
		t.Fatalf("expected Invalid for oversize block, got %v", err)
	}
}

func TestDecodeBlockRejectsMissingBeginMarker(t *testing.T) {
	block := make([]byte, 16)
	if _, err := DecodeBlock(block); !robterr.Is(err, robterr.FailCodec) {
		t.Fatalf("expected FailCodec, got %v", err)
	}
}
