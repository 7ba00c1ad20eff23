package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/groutine"
	"github.com/srg/bioble/internal/stream"
)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

func (t DeviceEventType) String() string {
	if t == EventNew {
		return "new"
	}
	return "updated"
}

type DeviceEvent struct {
	Type       DeviceEventType
	Descriptor device.Descriptor
}

// Filter selects advertisements. A zero Profile accepts every name; a
// non-empty Address must be contained in the device ID, ignoring case.
type Filter struct {
	Profile catalog.Profile
	Address string
}

// Matches applies the profile name rules and the address substring.
func (f Filter) Matches(adv device.Advertisement) bool {
	if f.Profile.Model != "" && !f.Profile.MatchesName(adv.LocalName()) {
		return false
	}
	if f.Address != "" && !device.ContainsFold(adv.Addr(), f.Address) {
		return false
	}
	return true
}

// Options configures a discovery run. Zero fields take the tagged defaults;
// a negative Settle disables the settle delay.
type Options struct {
	Window       time.Duration `default:"2s"`
	Settle       time.Duration `default:"500ms"`
	JoinTimeout  time.Duration `default:"1s"`
	RestartDelay time.Duration `default:"100ms"`
}

// DefaultOptions returns the default discovery options
func DefaultOptions() Options {
	var o Options
	defaults.SetDefaults(&o)
	return o
}

func (o Options) withDefaults() Options {
	defaults.SetDefaults(&o)
	return o
}

// Scanner handles BLE device discovery
type Scanner struct {
	dev    device.ScanningDevice
	events *stream.RingChannel[DeviceEvent]
	logger *logrus.Logger
}

// NewScanner creates a scanner on top of dev
func NewScanner(dev device.ScanningDevice, logger *logrus.Logger) (*Scanner, error) {
	if dev == nil {
		return nil, fmt.Errorf("scanning device cannot be nil")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		dev:    dev,
		events: stream.NewRingChannel[DeviceEvent](100),
		logger: logger,
	}, nil
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// watch runs the native scan in a named goroutine until ctx is done or stop
// reports true, restarting it whenever the platform stops on its own.
// The returned pointer holds the last non-context scan error once done is closed.
func (s *Scanner) watch(ctx context.Context, name string, opts Options, stop func() bool, handler func(device.Advertisement)) (<-chan struct{}, *atomic.Pointer[error]) {
	var lastErr atomic.Pointer[error]

	done := groutine.Go(ctx, name, func(wctx context.Context) {
		for {
			err := s.dev.Scan(wctx, true, handler)
			if wctx.Err() != nil || stop() {
				return
			}
			if err != nil && !isContextErr(err) {
				lastErr.Store(&err)
			}

			s.logger.WithFields(logrus.Fields{
				"goroutine":     groutine.GetName(wctx),
				"error":         err,
				"restart_delay": opts.RestartDelay,
			}).Debug("Advertisement watch stopped early, restarting")

			timer := time.NewTimer(opts.RestartDelay)
			select {
			case <-wctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	})
	return done, &lastErr
}

// Find watches advertisements for up to opts.Window and returns the first
// device that passes filter. It returns nil, nil when nothing matched.
func (s *Scanner) Find(ctx context.Context, filter Filter, opts Options) (*device.Descriptor, error) {
	opts = opts.withDefaults()

	s.logger.WithFields(logrus.Fields{
		"model":   filter.Profile.Model,
		"address": filter.Address,
		"window":  opts.Window,
	}).Info("Searching for headset...")

	var latched atomic.Bool
	found := make(chan device.Descriptor, 1)

	handler := func(adv device.Advertisement) {
		if latched.Load() || !filter.Matches(adv) {
			return
		}
		if !latched.CompareAndSwap(false, true) {
			return
		}
		d := device.NewDescriptor(adv)
		found <- d
		s.events.Send(DeviceEvent{Type: EventNew, Descriptor: d})
	}

	scanCtx, cancel := context.WithTimeout(ctx, opts.Window)
	defer cancel()

	done, lastErr := s.watch(scanCtx, "discovery-watch", opts, latched.Load, handler)

	var result *device.Descriptor
	select {
	case d := <-found:
		result = &d
	case <-scanCtx.Done():
		select {
		case d := <-found:
			result = &d
		default:
		}
	}
	cancel()

	if !groutine.Join(done, opts.JoinTimeout) {
		s.logger.WithField("join_timeout", opts.JoinTimeout).Warn("Advertisement watch did not stop in time")
	}

	if result == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if errp := lastErr.Load(); errp != nil {
			return nil, fmt.Errorf("scan failed: %w", *errp)
		}
		s.logger.Info("No matching headset found")
		return nil, nil
	}

	s.logger.WithFields(logrus.Fields{
		"name":    result.Name,
		"address": result.Address,
		"rssi":    result.RSSI,
	}).Info("Headset found")

	if opts.Settle > 0 {
		timer := time.NewTimer(opts.Settle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return result, nil
}

// ScanAll collects every device passing filter during window.
// Results are ordered by signal strength, strongest first.
func (s *Scanner) ScanAll(ctx context.Context, filter Filter, window time.Duration) ([]device.Descriptor, error) {
	opts := Options{Window: window}.withDefaults()
	devices := hashmap.New[string, device.Descriptor]()

	handler := func(adv device.Advertisement) {
		if !filter.Matches(adv) {
			return
		}
		d := device.NewDescriptor(adv)
		event := DeviceEvent{Type: EventNew, Descriptor: d}
		_, existed := devices.Get(d.ID)
		devices.Set(d.ID, d)
		if existed {
			event.Type = EventUpdated
		} else {
			s.logger.WithFields(logrus.Fields{
				"device":  d.Name,
				"address": d.Address,
				"rssi":    d.RSSI,
			}).Info("Discovered new device")
		}
		s.events.Send(event)
	}

	scanCtx, cancel := context.WithTimeout(ctx, opts.Window)
	defer cancel()

	done, lastErr := s.watch(scanCtx, "scan-all-watch", opts, func() bool { return false }, handler)
	<-scanCtx.Done()
	if !groutine.Join(done, opts.JoinTimeout) {
		s.logger.WithField("join_timeout", opts.JoinTimeout).Warn("Advertisement watch did not stop in time")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if devices.Len() == 0 {
		if errp := lastErr.Load(); errp != nil {
			return nil, fmt.Errorf("scan failed: %w", *errp)
		}
	}

	out := make([]device.Descriptor, 0, devices.Len())
	devices.Range(func(_ string, d device.Descriptor) bool {
		out = append(out, d)
		return true
	})
	slices.SortFunc(out, func(a, b device.Descriptor) int {
		if c := cmp.Compare(b.RSSI, a.RSSI); c != 0 {
			return c
		}
		return strings.Compare(a.Address, b.Address)
	})

	s.logger.WithField("device_count", len(out)).Info("BLE scan completed")
	return out, nil
}

// Close stops event delivery.
func (s *Scanner) Close() {
	s.events.Close()
}
