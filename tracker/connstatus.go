// Package tracker is the connection/endpoint tracker (spec §4.4, C4): a
// state map with liveness flags, normalization, CIDR classification,
// afterglow, and delta computation.
//
// Grounded on original_source/collector/lib/ConnTracker.h and
// ConnTracker.cpp for the exact algorithm; grounded on the teacher's
// cache/cache.go for the Go idiom of swap-two-generations-and-diff
// bookkeeping.
package tracker

// activeFlag is the top bit of the packed 64-bit ConnStatus value.
const activeFlag = uint64(1) << 63

// ConnStatus is the packed {last_seen_micros: 63-bit, active: 1-bit} value
// of spec §3. It is kept as a single uint64 (rather than a
// {int64,bool} struct) specifically so MergeFrom can be a single max()
// comparison: because the active bit is the most significant bit, any
// active status outranks any inactive one regardless of timestamp, and
// among statuses with the same active-ness the later timestamp wins. This
// is original_source/ConnTracker.h's exact trick
// (`data_ = std::max(data_, other.data_)`). FetchConnState and
// FetchEndpointState use it when several raw entries normalize to the same
// key; Update itself goes through emplaceOrUpdateConn/emplaceOrUpdateEndpoint,
// which keep whichever status has the later timestamp.
type ConnStatus struct {
	data uint64
}

// NewConnStatus builds a status from a microsecond timestamp and an active
// flag.
func NewConnStatus(microtimestamp int64, active bool) ConnStatus {
	return ConnStatus{data: makeActive(uint64(microtimestamp), active)}
}

func makeActive(data uint64, active bool) uint64 {
	if active {
		return data | activeFlag
	}
	return data &^ activeFlag
}

// LastActiveTime returns the packed microsecond timestamp.
func (s ConnStatus) LastActiveTime() int64 {
	return int64(s.data &^ activeFlag)
}

// IsActive reports the packed active bit.
func (s ConnStatus) IsActive() bool {
	return s.data&activeFlag != 0
}

// WithStatus returns a copy of s with the active bit set to active.
func (s ConnStatus) WithStatus(active bool) ConnStatus {
	return ConnStatus{data: makeActive(s.data, active)}
}

// MergeFrom returns the merge of s and other: the greater of the two packed
// values, which (because the active bit is the MSB) means any active status
// beats any inactive one, and ties break on the later timestamp.
func (s ConnStatus) MergeFrom(other ConnStatus) ConnStatus {
	if other.data > s.data {
		return other
	}
	return s
}

func (s ConnStatus) Equal(other ConnStatus) bool { return s.data == other.data }
