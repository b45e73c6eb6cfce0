package robt

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/Priyanshu23/robt/robterr"
)

const (
	indexSuffix = "-robt.indx"
	vlogSuffix  = "-robt.vlog"
)

var (
	indexFilePattern = regexp.MustCompile(`^(.+)-robt\.indx$`)
	vlogFilePattern  = regexp.MustCompile(`^(.+)-robt\.vlog$`)
)

// IndexFileName is the on-disk name of an index file, recoverable back
// to its logical name.
type IndexFileName string

// NewIndexFileName builds the on-disk index file name for a logical name.
func NewIndexFileName(name string) IndexFileName {
	return IndexFileName(name + indexSuffix)
}

// Name recovers the logical name this file name was built from, or an
// error if it does not look like an index file name.
func (n IndexFileName) Name() (string, error) {
	m := indexFilePattern.FindStringSubmatch(string(n))
	if m == nil {
		return "", robterr.At(robterr.Invalid, "%q is not a robt index file name", string(n))
	}
	return m[1], nil
}

func (n IndexFileName) String() string { return string(n) }

// VLogFileName is the on-disk name of a value-log file.
type VLogFileName string

// NewVLogFileName builds the on-disk value-log file name for a logical
// name.
func NewVLogFileName(name string) VLogFileName {
	return VLogFileName(name + vlogSuffix)
}

// Name recovers the logical name this file name was built from, or an
// error if it does not look like a value-log file name.
func (n VLogFileName) Name() (string, error) {
	m := vlogFilePattern.FindStringSubmatch(string(n))
	if m == nil {
		return "", robterr.At(robterr.Invalid, "%q is not a robt value-log file name", string(n))
	}
	return m[1], nil
}

func (n VLogFileName) String() string { return string(n) }

// findIndexFile scans dir for an index file whose logical name is name.
func findIndexFile(dir, name string) (string, bool, error) {
	want := NewIndexFileName(name).String()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, robterr.Wrap(robterr.IOError, err, "failed to scan %s", dir)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if e.Name() == want {
			return filepath.Join(dir, e.Name()), true, nil
		}
	}
	return "", false, nil
}

func vlogPath(dir, name string) string {
	return filepath.Join(dir, NewVLogFileName(name).String())
}

func indexPath(dir, name string) string {
	return filepath.Join(dir, NewIndexFileName(name).String())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
