package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string      // "device", "service", "characteristic", "descriptor"
	UUIDs    []uuid.UUID // One or more UUIDs (e.g., [service] or [service, characteristic])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, ShortUUID(e.UUIDs[0]))
	}
	parentResource := "service"
	if e.Resource == "descriptor" {
		parentResource = "characteristic"
	}
	return fmt.Sprintf("%s %q not found in %s %q", e.Resource, ShortUUID(e.UUIDs[len(e.UUIDs)-1]), parentResource, ShortUUID(e.UUIDs[0]))
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Operation errors
var (
	ErrTimeout       = errors.New("timeout")
	ErrUnsupported   = errors.New("unsupported")
	ErrBluetoothOff  = errors.New("bluetooth is turned off")
	ErrWriteRejected = errors.New("write rejected by peripheral")
	ErrNotPaired     = errors.New("device is not paired")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ContainsFold checks the substring case-insensitively
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Advertisement is the subset of advertisement data discovery relies on.
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Connectable() bool
	Services() []uuid.UUID
}

// ScanningDevice represents a BLE device capable of scanning for advertisements.
// Scan blocks until ctx is done or the platform stops the watch on its own.
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Central opens GATT sessions to peripherals.
type Central interface {
	ScanningDevice
	Dial(ctx context.Context, address string) (Connection, error)
}

// Descriptor is the immutable record produced by discovery.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	RSSI        int    `json:"rssi"`
	Connectable bool   `json:"connectable"`
}

// NewDescriptor snapshots an advertisement into a Descriptor.
func NewDescriptor(adv Advertisement) Descriptor {
	return Descriptor{
		ID:          adv.Addr(),
		Name:        adv.LocalName(),
		Address:     adv.Addr(),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
	}
}

// Service represents a discovered GATT service
type Service interface {
	UUID() uuid.UUID
}

// Characteristic represents a discovered GATT characteristic
type Characteristic interface {
	UUID() uuid.UUID
	Properties() Properties
}

// NotificationHandler receives raw notification payloads. It runs on the
// platform delivery goroutine and must not block.
type NotificationHandler func(data []byte)

// Connection is a live GATT session with a single peripheral.
//
// Every method blocks on the radio; callers bound them with their own timeouts.
type Connection interface {
	Address() string

	// DiscoverServices performs a fresh (uncached) primary service discovery.
	DiscoverServices() ([]Service, error)
	// DiscoverCharacteristics performs a fresh discovery of the characteristics of svc.
	DiscoverCharacteristics(svc Service) ([]Characteristic, error)

	// WriteCharacteristic writes data with response.
	WriteCharacteristic(c Characteristic, data []byte) error

	WriteClientConfig(c Characteristic, cfg ClientConfig) error
	ReadClientConfig(c Characteristic) (*ClientConfig, error)

	// SetNotificationHandler attaches h to notifications of c. A nil h detaches.
	SetNotificationHandler(c Characteristic, h NotificationHandler)

	// Disconnected is closed when the link drops.
	Disconnected() <-chan struct{}
	Close() error
}

// PairingInfo describes the platform pairing state of a peripheral
type PairingInfo struct {
	CanPair bool
	Paired  bool
}

// Pairer drives OS-level pairing, which is independent of the GATT session.
type Pairer interface {
	PairingInfo(ctx context.Context, address string) (PairingInfo, error)
	Pair(ctx context.Context, address string) error
	Unpair(ctx context.Context, address string) error
}
