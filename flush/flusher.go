// Package flush implements the bounded-queue background file writer:
// producers post blocks without waiting on disk I/O, backpressure kicks
// in once the queue fills, and a single dedicated goroutine drains it
// in FIFO order. One Flusher serializes all writes to one file, index
// or value-log alike.
package flush

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/Priyanshu23/robt/internal/ioutil"
	"github.com/Priyanshu23/robt/internal/lock"
	"github.com/Priyanshu23/robt/robterr"
)

// Flusher serializes appends to one file behind a bounded queue.
type Flusher struct {
	path string
	file *os.File

	mu     sync.Mutex
	ch     chan []byte
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup

	fpos atomic.Uint64

	workerDone chan struct{}
	workerErr  error
	finalLen   uint64
}

// New opens (or creates) the file at path and starts its background
// writer. create selects a fresh, truncated file (an initial build);
// when false the file is opened for append and CurrentFpos starts from
// its existing length (an incremental build continuing a value-log).
func New(path string, create bool, queueSize int) (*Flusher, error) {
	var (
		f   *os.File
		err error
	)
	if create {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	} else {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	}
	if err != nil {
		return nil, robterr.Wrap(robterr.IOError, err, "flusher: failed to open %s", path)
	}

	var startFpos int64
	if !create {
		if startFpos, err = ioutil.FileSize(f); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := lock.Shared(f); err != nil {
		f.Close()
		return nil, err
	}

	fl := &Flusher{
		path:       path,
		file:       f,
		ch:         make(chan []byte, queueSize),
		done:       make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	fl.fpos.Store(uint64(startFpos))

	go fl.loop()
	return fl, nil
}

// Post enqueues block for append, blocking if the queue is full. The
// returned error is nil unless the flusher has already been closed; a
// write failure in the worker does not fail Post and is reported by
// Close.
func (fl *Flusher) Post(block []byte) error {
	fl.mu.Lock()
	if fl.closed {
		fl.mu.Unlock()
		return robterr.At(robterr.Invalid, "flusher: post to %s after close", fl.path)
	}
	fl.wg.Add(1)
	fl.mu.Unlock()
	defer fl.wg.Done()

	fl.fpos.Add(uint64(len(block)))

	select {
	case fl.ch <- block:
		return nil
	case <-fl.done:
		return robterr.At(robterr.Invalid, "flusher: post to %s after close", fl.path)
	}
}

// CurrentFpos returns the producer-observed logical write position: the
// file's length at open plus every byte handed to Post so far, whether
// or not those bytes have reached disk yet. Builders compute references
// against this value, never against a post-flush confirmation.
func (fl *Flusher) CurrentFpos() uint64 { return fl.fpos.Load() }

// Close signals end-of-stream, waits for the worker to drain, fsync and
// release its lock, then returns the file's final length. Any write or
// sync failure encountered by the worker is returned here.
func (fl *Flusher) Close() (uint64, error) {
	fl.mu.Lock()
	if fl.closed {
		fl.mu.Unlock()
		return fl.finalLen, fl.workerErr
	}
	fl.closed = true
	close(fl.done)
	fl.mu.Unlock()

	fl.wg.Wait()
	close(fl.ch)
	<-fl.workerDone

	return fl.finalLen, fl.workerErr
}

func (fl *Flusher) loop() {
	defer close(fl.workerDone)

	aborted := false
	for block := range fl.ch {
		if aborted {
			continue
		}
		if err := ioutil.WriteFull(fl.file, block); err != nil {
			fl.workerErr = err
			aborted = true
		}
	}

	if !aborted {
		if err := fl.file.Sync(); err != nil {
			fl.workerErr = robterr.Wrap(robterr.IOError, err, "flusher: fsync failed on %s", fl.path)
		}
	}

	if err := lock.Unlock(fl.file); err != nil && fl.workerErr == nil {
		fl.workerErr = err
	}
	if sz, err := ioutil.FileSize(fl.file); err == nil {
		fl.finalLen = uint64(sz)
	}
	fl.file.Close()
}
