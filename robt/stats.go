package robt

import (
	"encoding/json"

	"github.com/Priyanshu23/robt/robterr"
)

// Stats is the builder's configuration and bookkeeping, persisted in the
// Stats meta-block item so a reader (or an operator, via String) can
// recover everything about how an index was built. It is read back by
// Open, together with the root block.
type Stats struct {
	Name        string `json:"name"`
	ZBlocksize  int    `json:"z_blocksize"`
	MBlocksize  int    `json:"m_blocksize"`
	VBlocksize  int    `json:"v_blocksize"`
	DeltaOk     bool   `json:"delta_ok"`
	ValueInVlog bool   `json:"value_in_vlog"`
	VlogFile    string `json:"vlog_file,omitempty"`
	RootIsLeaf  bool   `json:"root_is_leaf"`

	NCount      uint64 `json:"n_count"`
	NDeleted    uint64 `json:"n_deleted"`
	Seqno       uint64 `json:"seqno"`
	NAbytes     uint64 `json:"n_abytes"`
	BuildTimeNs int64  `json:"build_time_ns"`
	EpochNs     int64  `json:"epoch_ns"`
}

// String renders Stats as JSON, so an operator can inspect an index
// from a log line or CLI output.
func (s Stats) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// MarshalBinary encodes Stats for embedding in the meta-block trailer.
func (s Stats) MarshalBinary() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, robterr.Wrap(robterr.FailCodec, err, "stats: failed to marshal")
	}
	return data, nil
}

// UnmarshalStats parses a Stats record previously produced by
// MarshalBinary/String.
func UnmarshalStats(data []byte) (Stats, error) {
	var s Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return Stats{}, robterr.Wrap(robterr.FailCodec, err, "stats: failed to unmarshal")
	}
	return s, nil
}
