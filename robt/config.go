// Package robt is the index façade: Config/Stats, meta-block trailer,
// the Reader, and open/clone/compact/purge/validate. It ties together
// entry, vlog, flush, scans, build and bloom into one immutable,
// read-only B-tree index.
package robt

const (
	defaultZBlocksize     = 4096
	defaultMBlocksize     = 4096
	defaultVBlocksize     = 4096
	defaultFlushQueueSize = 64
)

// Config carries every knob a Builder needs, persisted into Stats so a
// reader can recover the exact settings a build used.
type Config struct {
	ZBlocksize     int
	MBlocksize     int
	VBlocksize     int
	DeltaOk        bool
	ValueInVlog    bool
	FlushQueueSize int
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithZBlocksize overrides the leaf block size.
func WithZBlocksize(n int) Option { return func(c *Config) { c.ZBlocksize = n } }

// WithMBlocksize overrides the intermediate block size.
func WithMBlocksize(n int) Option { return func(c *Config) { c.MBlocksize = n } }

// WithVBlocksize overrides the value-log append-buffer hint.
func WithVBlocksize(n int) Option { return func(c *Config) { c.VBlocksize = n } }

// WithDeltaOk toggles whether deltas are retained at all.
func WithDeltaOk(ok bool) Option { return func(c *Config) { c.DeltaOk = ok } }

// WithValueInVlog toggles whether values (and retained deltas) are
// spilled to the sidecar value-log instead of staying inline.
func WithValueInVlog(ok bool) Option { return func(c *Config) { c.ValueInVlog = ok } }

// WithFlushQueueSize overrides the bounded queue depth used by every
// Flusher a build opens.
func WithFlushQueueSize(n int) Option { return func(c *Config) { c.FlushQueueSize = n } }

// NewConfig returns the default Config with opts applied.
func NewConfig(opts ...Option) Config {
	c := Config{
		ZBlocksize:     defaultZBlocksize,
		MBlocksize:     defaultMBlocksize,
		VBlocksize:     defaultVBlocksize,
		DeltaOk:        true,
		ValueInVlog:    false,
		FlushQueueSize: defaultFlushQueueSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// needsVlogFile reports whether a build with this Config requires a
// value-log file at all. Deltas are converted to reference form by the
// same ValueInVlog flag as the primary value (build/buildzz.go), so
// deltas alone never cause a vlog write.
func (c Config) needsVlogFile() bool {
	return c.ValueInVlog
}
