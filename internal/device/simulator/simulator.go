// Package simulator provides an in-process headset that implements the
// device Central, Connection and Pairer interfaces. It advertises a name that
// matches its profile and streams pseudo-random packets while started.
package simulator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
)

const (
	DefaultAddress           = "c0:ff:ee:00:00:01"
	DefaultRSSI              = -48
	DefaultAdvertiseInterval = 50 * time.Millisecond
)

// Options tune the simulated headset. Zero values select defaults.
type Options struct {
	Address           string
	Name              string
	RSSI              int
	AdvertiseInterval time.Duration
	SampleInterval    time.Duration // defaults to the profile sample period
	Paired            bool          // initial pairing state
	Seed              uint64
}

// Headset is a simulated peripheral together with its central and pairing agent.
type Headset struct {
	profile catalog.Profile
	opts    Options
	logger  *logrus.Logger

	mu     sync.Mutex
	paired bool
	active *Connection

	dials atomic.Int64
}

// New creates a simulated headset for profile.
func New(profile catalog.Profile, opts Options, logger *logrus.Logger) *Headset {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	if opts.Name == "" {
		opts.Name = profile.NamePrefix + "-SIM"
	}
	if opts.RSSI == 0 {
		opts.RSSI = DefaultRSSI
	}
	if opts.AdvertiseInterval <= 0 {
		opts.AdvertiseInterval = DefaultAdvertiseInterval
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = profile.SamplePeriod()
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	return &Headset{
		profile: profile,
		opts:    opts,
		logger:  logger,
		paired:  opts.Paired,
	}
}

// Address returns the simulated device address.
func (h *Headset) Address() string {
	return h.opts.Address
}

// Dials returns how many connections were requested.
func (h *Headset) Dials() int64 {
	return h.dials.Load()
}

type advertisement struct {
	name    string
	addr    string
	rssi    int
	service uuid.UUID
}

func (a advertisement) LocalName() string     { return a.name }
func (a advertisement) Addr() string          { return a.addr }
func (a advertisement) RSSI() int             { return a.rssi }
func (a advertisement) Connectable() bool     { return true }
func (a advertisement) Services() []uuid.UUID { return []uuid.UUID{a.service} }

// Scan advertises the headset every AdvertiseInterval until ctx is done.
func (h *Headset) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	adv := advertisement{
		name:    h.opts.Name,
		addr:    h.opts.Address,
		rssi:    h.opts.RSSI,
		service: h.profile.Service,
	}

	ticker := time.NewTicker(h.opts.AdvertiseInterval)
	defer ticker.Stop()

	handler(adv)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if allowDup {
				handler(adv)
			}
		}
	}
}

// Dial connects to the simulated headset.
func (h *Headset) Dial(ctx context.Context, address string) (device.Connection, error) {
	h.dials.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(address, h.opts.Address) {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, &device.NotFoundError{Resource: "device"})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != nil && !h.active.closed.Load() {
		return nil, device.ErrAlreadyConnected
	}

	h.active = newConnection(h.profile, h.opts, h.logger)
	h.logger.WithField("address", address).Info("Simulated headset connected")
	return h.active, nil
}

func (h *Headset) checkAddress(address string) error {
	if !strings.EqualFold(address, h.opts.Address) {
		return &device.NotFoundError{Resource: "device"}
	}
	return nil
}

func (h *Headset) PairingInfo(ctx context.Context, address string) (device.PairingInfo, error) {
	if err := ctx.Err(); err != nil {
		return device.PairingInfo{}, err
	}
	if err := h.checkAddress(address); err != nil {
		return device.PairingInfo{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return device.PairingInfo{CanPair: !h.paired, Paired: h.paired}, nil
}

func (h *Headset) Pair(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.checkAddress(address); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.paired = true
	return nil
}

func (h *Headset) Unpair(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.checkAddress(address); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.paired {
		return device.ErrNotPaired
	}
	h.paired = false
	return nil
}

// Active returns the most recent connection, if any.
func (h *Headset) Active() *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}
