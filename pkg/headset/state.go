package headset

import (
	"errors"
	"fmt"
	"time"

	"github.com/srg/bioble/internal/stream"
	"github.com/srg/bioble/scanner"
)

// State is the lifecycle position of a Client
type State int32

const (
	StateClosed State = iota
	StateOpening
	StatePaired
	StateSubscribed
	StateStreaming
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StatePaired:
		return "paired"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SubscriptionState tracks the notification handshake on the receive characteristic
type SubscriptionState int

const (
	Unsubscribed SubscriptionState = iota
	// Subscribed is entered only after the CCCD read back as enabled.
	Subscribed
	// SubscriptionUnverified is reported as a failure, never kept by an open session.
	SubscriptionUnverified
)

// ErrSubscriptionUnverified means the CCCD never read back as enabled
var ErrSubscriptionUnverified = errors.New("notification subscription could not be verified")

// Target selects the characteristic a command is written to
type Target int

const (
	TargetSend Target = iota
	TargetDisconnect
)

func (t Target) String() string {
	if t == TargetDisconnect {
		return "disconnect"
	}
	return "send"
}

// Options tunes a Client. Start from DefaultOptions; zero numeric fields
// fall back to their defaults.
type Options struct {
	// OperationTimeout bounds every native call; zero selects the profile timeout.
	OperationTimeout time.Duration
	Scan             scanner.Options
	QueueCapacity    uint32

	// LegacyStopToken additionally writes the disconnect token on the
	// disconnect characteristic when stopping a stream.
	LegacyStopToken bool
	// KeepPairingOnClose leaves the OS pairing in place when the session closes.
	KeepPairingOnClose bool
}

// DefaultOptions returns the options used by the CLI
func DefaultOptions() Options {
	return Options{
		Scan:            scanner.DefaultOptions(),
		QueueCapacity:   stream.DefaultQueueCapacity,
		LegacyStopToken: true,
	}
}

// Metrics is a point-in-time view of a Client
type Metrics struct {
	State    State               `json:"-"`
	Address  string              `json:"address,omitempty"`
	Lost     bool                `json:"lost"`
	QueueLen int                 `json:"queue_len"`
	Queue    stream.QueueMetrics `json:"queue"`
}
