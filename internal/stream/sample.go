package stream

import "github.com/srg/bioble/pkg/status"

// Sample is one raw headset packet as received from the receive characteristic.
type Sample struct {
	Data      []byte      // exactly the profile packet length
	Timestamp int64       // unix seconds at arrival, 0 for the empty sentinel
	Seq       uint64      // monotonic per queue, starting at 1
	Status    status.Code // OK for real packets, NoData for the sentinel
}

// NoData returns the sentinel handed out when nothing is queued: a zeroed
// buffer of packetLength bytes with timestamp 0.
func NoData(packetLength int) Sample {
	return Sample{
		Data:   make([]byte, packetLength),
		Status: status.NoData,
	}
}

// Empty reports whether s is the no-data sentinel.
func (s Sample) Empty() bool {
	return s.Status == status.NoData
}
