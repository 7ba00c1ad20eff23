package stream

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

const (
	// DefaultQueueCapacity holds roughly 20 seconds of a 200 Hz stream.
	DefaultQueueCapacity uint32 = 4096

	// MaxQueueCapacity guards against accidental misconfiguration.
	MaxQueueCapacity uint32 = 1024 * 1024
)

// QueueMetrics provides lock-free counters for a SampleQueue.
// All fields use atomic operations for thread-safe access
type QueueMetrics struct {
	Received    int64 // payloads handed to Ingest
	Enqueued    int64 // payloads accepted into the ring
	Malformed   int64 // payloads dropped for a wrong length
	Overwritten int64 // queued samples lost to overflow
	Dequeued    int64 // samples handed out by Pop
}

func (m *QueueMetrics) snapshot() QueueMetrics {
	return QueueMetrics{
		Received:    atomic.LoadInt64(&m.Received),
		Enqueued:    atomic.LoadInt64(&m.Enqueued),
		Malformed:   atomic.LoadInt64(&m.Malformed),
		Overwritten: atomic.LoadInt64(&m.Overwritten),
		Dequeued:    atomic.LoadInt64(&m.Dequeued),
	}
}

// SampleQueue is a bounded FIFO of fixed-size samples with overwrite-oldest
// semantics. One producer (the notification callback) and any number of
// pollers may use it concurrently; no method blocks.
type SampleQueue struct {
	buffer       mpmc.RichOverlappedRingBuffer[Sample]
	packetLength int
	capacity     uint32
	seq          atomic.Uint64
	pending      atomic.Int64
	metrics      QueueMetrics
}

// NewSampleQueue creates a queue that accepts only payloads of packetLength
// bytes. A zero capacity selects DefaultQueueCapacity.
func NewSampleQueue(capacity uint32, packetLength int) (*SampleQueue, error) {
	if packetLength <= 0 {
		return nil, fmt.Errorf("packet length must be > 0, got %d", packetLength)
	}
	if capacity == 0 {
		capacity = DefaultQueueCapacity
	}
	if capacity > MaxQueueCapacity {
		return nil, fmt.Errorf("queue capacity %d exceeds maximum %d", capacity, MaxQueueCapacity)
	}

	return &SampleQueue{
		buffer:       mpmc.NewOverlappedRingBuffer[Sample](capacity),
		packetLength: packetLength,
		capacity:     capacity,
	}, nil
}

// PacketLength returns the only payload length the queue accepts.
func (q *SampleQueue) PacketLength() int {
	return q.packetLength
}

// Cap returns the configured capacity.
func (q *SampleQueue) Cap() int {
	return int(q.capacity)
}

// Len returns the approximate number of queued samples.
func (q *SampleQueue) Len() int {
	n := q.pending.Load()
	switch {
	case n < 0:
		return 0
	case n > int64(q.capacity):
		return int(q.capacity)
	default:
		return int(n)
	}
}

// Ingest copies payload into a fresh sample stamped with at and enqueues it.
// Payloads whose length differs from the packet length are dropped and
// counted as malformed. It reports whether the payload was queued.
func (q *SampleQueue) Ingest(payload []byte, at time.Time) bool {
	atomic.AddInt64(&q.metrics.Received, 1)

	if len(payload) != q.packetLength {
		atomic.AddInt64(&q.metrics.Malformed, 1)
		return false
	}

	data := make([]byte, q.packetLength)
	copy(data, payload)

	sample := Sample{
		Data:      data,
		Timestamp: at.Unix(),
		Seq:       q.seq.Add(1),
	}

	overwrites, err := q.buffer.EnqueueM(sample)
	if err != nil {
		atomic.AddInt64(&q.metrics.Malformed, 1)
		return false
	}

	atomic.AddInt64(&q.metrics.Enqueued, 1)
	q.pending.Add(1)
	if overwrites > 0 {
		atomic.AddInt64(&q.metrics.Overwritten, int64(overwrites))
		q.pending.Add(-int64(overwrites))
	}
	return true
}

// Pop dequeues the oldest sample. ok is false when the queue is empty.
func (q *SampleQueue) Pop() (Sample, bool) {
	if q.buffer.IsEmpty() {
		return Sample{}, false
	}
	s, err := q.buffer.Dequeue()
	if err != nil {
		return Sample{}, false
	}

	atomic.AddInt64(&q.metrics.Dequeued, 1)
	q.pending.Add(-1)
	return s, true
}

// Next dequeues the oldest sample or returns the NoData sentinel.
func (q *SampleQueue) Next() Sample {
	if s, ok := q.Pop(); ok {
		return s
	}
	return NoData(q.packetLength)
}

// Drain dequeues up to max samples (all of them when max <= 0).
func (q *SampleQueue) Drain(max int) []Sample {
	var out []Sample
	for max <= 0 || len(out) < max {
		s, ok := q.Pop()
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out
}

// Metrics returns a snapshot of the queue counters.
func (q *SampleQueue) Metrics() QueueMetrics {
	return q.metrics.snapshot()
}
