package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/robt/robterr"
)

func openTemp(t *testing.T) (*os.File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locked")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	return f, path
}

func TestSharedLocksDoNotExcludeEachOther(t *testing.T) {
	f1, path := openTemp(t)
	defer f1.Close()
	f2, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	if err := Shared(f1); err != nil {
		t.Fatal(err)
	}
	defer Unlock(f1)
	if err := Shared(f2); err != nil {
		t.Fatalf("expected a second shared lock to succeed, got %v", err)
	}
	defer Unlock(f2)
}

func TestExclusiveRetriesAgainstHeldLock(t *testing.T) {
	f1, path := openTemp(t)
	defer f1.Close()
	f2, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	if err := Shared(f1); err != nil {
		t.Fatal(err)
	}
	defer Unlock(f1)

	err = Exclusive(f2)
	if err == nil {
		t.Fatal("expected exclusive lock to fail while a shared lock is held")
	}
	if !robterr.Is(err, robterr.Retry) {
		t.Fatalf("expected Retry kind, got %v", err)
	}
}

func TestExclusiveSucceedsWhenUnlocked(t *testing.T) {
	f, _ := openTemp(t)
	defer f.Close()

	if err := Exclusive(f); err != nil {
		t.Fatal(err)
	}
	if err := Unlock(f); err != nil {
		t.Fatal(err)
	}
}
