// Command robtcli drives a robt index from the shell: build one from a
// newline-delimited key/value file, look up a single key, or walk the
// whole index in either direction. It is a demonstration harness, not a
// production server.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/Priyanshu23/robt/bloom"
	"github.com/Priyanshu23/robt/kv"
	"github.com/Priyanshu23/robt/robt"
)

// Command mirrors the dispatch style of a CLI subcommand set: one verb,
// parsed flags, one action.
type Command int

const (
	CommandUnknown Command = iota
	CommandBuild
	CommandGet
	CommandIter
	CommandCompact
	CommandPurge
	CommandValidate
)

func parseCommand(s string) Command {
	switch s {
	case "build":
		return CommandBuild
	case "get":
		return CommandGet
	case "iter":
		return CommandIter
	case "compact":
		return CommandCompact
	case "purge":
		return CommandPurge
	case "validate":
		return CommandValidate
	default:
		return CommandUnknown
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := parseCommand(os.Args[1])
	args := os.Args[2:]

	var err error
	switch cmd {
	case CommandBuild:
		err = runBuild(args)
	case CommandGet:
		err = runGet(args)
	case CommandIter:
		err = runIter(args)
	case CommandCompact:
		err = runCompact(args)
	case CommandPurge:
		err = runPurge(args)
	case CommandValidate:
		err = runValidate(args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "robtcli:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: robtcli <build|get|iter|compact|purge|validate> [flags]")
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	dir := fs.String("dir", ".", "index directory")
	name := fs.String("name", "", "index name")
	input := fs.String("input", "", "tab-separated key\\tvalue input file, sorted by key")
	deltaOk := fs.Bool("deltas", true, "retain delta history")
	valueInVlog := fs.Bool("vlog-values", false, "store values in the value-log instead of inline")
	withBloom := fs.Bool("bloom", true, "persist a bloom filter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *input == "" {
		return fmt.Errorf("build: -name and -input are required")
	}

	f, err := os.Open(*input)
	if err != nil {
		return err
	}
	defer f.Close()

	var bitmap bloom.Filter
	if *withBloom {
		bitmap = bloom.New(1 << 20)
	}

	cfg := robt.NewConfig(robt.WithDeltaOk(*deltaOk), robt.WithValueInVlog(*valueInVlog))
	src := &lineSource{sc: bufio.NewScanner(f)}

	stats, err := robt.Build(*dir, *name, cfg, src, nil, bitmap)
	if err != nil {
		return err
	}
	fmt.Println(stats.String())
	return nil
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dir := fs.String("dir", ".", "index directory")
	name := fs.String("name", "", "index name")
	key := fs.String("key", "", "key to look up")
	versions := fs.Bool("versions", false, "include delta history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *key == "" {
		return fmt.Errorf("get: -name and -key are required")
	}

	r, err := robt.Open(*dir, *name)
	if err != nil {
		return err
	}
	defer r.Close()

	rec, err := r.Get([]byte(*key), *versions)
	if err != nil {
		return err
	}
	fmt.Printf("seqno=%d deleted=%v payload=%q\n", rec.Value.Seqno, rec.Value.Deleted, rec.Value.Payload)
	for _, d := range rec.Deltas {
		fmt.Printf("  delta seqno=%d deleted=%v payload=%q\n", d.Seqno, d.Deleted, d.Payload)
	}
	return nil
}

func runIter(args []string) error {
	fs := flag.NewFlagSet("iter", flag.ExitOnError)
	dir := fs.String("dir", ".", "index directory")
	name := fs.String("name", "", "index name")
	reverse := fs.Bool("reverse", false, "iterate in descending key order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("iter: -name is required")
	}

	r, err := robt.Open(*dir, *name)
	if err != nil {
		return err
	}
	defer r.Close()

	it, err := r.Iter(kv.Range{}, *reverse, false)
	if err != nil {
		return err
	}
	for {
		rec, err := it.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		fmt.Printf("%s = %q\n", rec.Key, rec.Value.Payload)
	}
	return nil
}

func runCompact(args []string) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	dir := fs.String("dir", ".", "index directory")
	name := fs.String("name", "", "source index name")
	outName := fs.String("out", "", "destination index name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *outName == "" {
		return fmt.Errorf("compact: -name and -out are required")
	}

	cfg := robt.NewConfig()
	stats, err := robt.Compact(*dir, *name, *dir, *outName, cfg, nil, kv.Mono())
	if err != nil {
		return err
	}
	fmt.Println(stats.String())
	return nil
}

func runPurge(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	dir := fs.String("dir", ".", "index directory")
	name := fs.String("name", "", "index name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("purge: -name is required")
	}
	return robt.Purge(*dir, *name)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	dir := fs.String("dir", ".", "index directory")
	name := fs.String("name", "", "index name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("validate: -name is required")
	}
	if err := robt.Validate(*dir, *name); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// lineSource adapts a "key\tvalue" file, one record per line, into a
// kv.Source. Seqno is assigned by line position since the input carries
// none of its own.
type lineSource struct {
	sc   *bufio.Scanner
	seq  uint64
	line int
}

func (s *lineSource) Next() (*kv.Record, error) {
	for s.sc.Scan() {
		s.line++
		line := s.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		idx := bytes.IndexByte(line, '\t')
		if idx < 0 {
			return nil, fmt.Errorf("lineSource: line %d missing tab separator", s.line)
		}
		s.seq++
		key := append([]byte(nil), line[:idx]...)
		value := append([]byte(nil), line[idx+1:]...)
		return &kv.Record{Key: key, Value: kv.Value{Seqno: s.seq, Payload: value}}, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}
