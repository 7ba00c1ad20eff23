package headset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/stream"
	"github.com/srg/bioble/pkg/status"
	"github.com/srg/bioble/scanner"
)

// Client is the lifecycle controller for one headset.
//
// Lifecycle methods are serialised by a mutex. GetData, State and Metrics do
// not take it and never block.
type Client struct {
	profile catalog.Profile
	central device.Central
	pairer  device.Pairer
	scanner *scanner.Scanner
	opts    Options
	logger  *logrus.Logger

	// now stamps incoming samples
	now func() time.Time

	mu     sync.Mutex
	state  atomic.Int32
	handle atomic.Pointer[connectionHandle]
}

// NewClient creates a client for profile on top of central. pairer may be nil
// when the platform manages pairing on its own.
func NewClient(profile catalog.Profile, central device.Central, pairer device.Pairer, opts Options, logger *logrus.Logger) (*Client, error) {
	if central == nil {
		return nil, fmt.Errorf("central cannot be nil")
	}
	if profile.Model == "" {
		return nil, fmt.Errorf("profile cannot be empty")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = stream.DefaultQueueCapacity
	}

	sc, err := scanner.NewScanner(central, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		profile: profile,
		central: central,
		pairer:  pairer,
		scanner: sc,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Profile returns the headset model the client drives
func (c *Client) Profile() catalog.Profile {
	return c.profile
}

func (c *Client) timeout() time.Duration {
	if c.opts.OperationTimeout > 0 {
		return c.opts.OperationTimeout
	}
	return c.profile.OperationTimeout
}

func (c *Client) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.logger.WithFields(logrus.Fields{
			"from": prev.String(),
			"to":   s.String(),
		}).Debug("State transition")
	}
}

// State returns the current lifecycle state
func (c *Client) State() State {
	return State(c.state.Load())
}

// Open discovers the first headset of the profile, connects, pairs and
// subscribes. When the platform reports the device as already paired (or not
// pairable) the session is fully open and the benign AlreadyPaired status is
// returned. Any other failure leaves the client Closed.
func (c *Client) Open(ctx context.Context) error {
	return c.open(ctx, "open", "", true)
}

// OpenAddress is Open restricted to devices whose address contains addr.
// The pairing outcome is ignored entirely.
func (c *Client) OpenAddress(ctx context.Context, addr string) error {
	return c.open(ctx, "open_address", addr, false)
}

func (c *Client) open(ctx context.Context, op, addr string, checkPairing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle.Load() != nil {
		return status.New(status.AlreadyOpen, op, nil)
	}
	c.setState(StateOpening)

	h, pairErr, err := c.establish(ctx, op, addr, checkPairing)
	if err != nil {
		c.setState(StateClosed)
		c.logger.WithError(err).Info("Open failed")
		return err
	}

	c.monitor(h)
	c.handle.Store(h)
	c.setState(StateSubscribed)

	c.logger.WithFields(logrus.Fields{
		"model":   c.profile.Model,
		"address": h.address,
	}).Info("Headset session open")

	if checkPairing {
		return pairErr
	}
	return nil
}

// establish runs discovery, connection, pairing and subscription. pairErr is
// the benign pairing outcome to report; err aborts the open.
func (c *Client) establish(ctx context.Context, op, addr string, checkPairing bool) (h *connectionHandle, pairErr error, err error) {
	address, err := c.discover(ctx, op, addr)
	if err != nil {
		return nil, nil, err
	}

	h, err = c.connect(ctx, op, address)
	if err != nil {
		return nil, nil, err
	}

	pairErr = c.pair(ctx, address)
	if pairErr != nil {
		if checkPairing && status.CodeOf(pairErr) != status.AlreadyPaired {
			if cerr := h.release(); cerr != nil {
				c.logger.WithError(cerr).Warn("Failed to release connection after pairing failure")
			}
			return nil, nil, pairErr
		}
		c.logger.WithError(pairErr).Debug("Pairing outcome")
	}
	c.setState(StatePaired)

	if err := c.subscribe(ctx, h); err != nil {
		if cerr := h.release(); cerr != nil {
			c.logger.WithError(cerr).Warn("Failed to release connection after subscribe failure")
		}
		return nil, nil, err
	}
	return h, pairErr, nil
}

// StartStream asks the headset to start streaming samples
func (c *Client) StartStream(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handle.Load()
	if h == nil {
		return status.New(status.NotOpen, "start_stream", nil)
	}
	if err := c.send(ctx, "start_stream", h, h.send, c.profile.Start); err != nil {
		return err
	}
	c.setState(StateStreaming)
	c.logger.Info("Streaming started")
	return nil
}

// StopStream sends the stop sequence. The client returns to Subscribed even
// when a command failed; the first failure is returned.
func (c *Client) StopStream(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handle.Load()
	if h == nil {
		return status.New(status.NotOpen, "stop_stream", nil)
	}

	c.setState(StateStopping)
	err := c.stopStream(ctx, h)
	c.setState(StateSubscribed)
	if err == nil {
		c.logger.Info("Streaming stopped")
	}
	return err
}

// ConfigBoard writes an arbitrary configuration command through the command
// channel. With byte encoding every character is a separate write.
func (c *Client) ConfigBoard(ctx context.Context, command string, target Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handle.Load()
	if h == nil {
		return status.New(status.NotOpen, "config_board", nil)
	}
	return c.send(ctx, "config_board", h, h.characteristic(target), command)
}

// GetData dequeues the oldest sample. When nothing is queued, or no session
// is open, it returns the NoData sentinel. It never blocks.
func (c *Client) GetData() stream.Sample {
	h := c.handle.Load()
	if h == nil || h.queue == nil {
		return stream.NoData(c.profile.PacketLength)
	}
	return h.queue.Next()
}

// Metrics returns queue counters of the open session
func (c *Client) Metrics() Metrics {
	m := Metrics{State: c.State()}
	if h := c.handle.Load(); h != nil {
		m.Address = h.address
		m.Lost = h.lost.Load()
		if h.queue != nil {
			m.QueueLen = h.queue.Len()
			m.Queue = h.queue.Metrics()
		}
	}
	return m
}

// Close tears the session down: unsubscribe, unpair, stop stream,
// connection disposal. Every step runs even if an earlier one failed;
// failures are aggregated into one informational General status. Closing
// without a session returns NotOpen and touches nothing.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handle.Load()
	if h == nil {
		return status.New(status.NotOpen, "close", nil)
	}

	// teardown must complete even when the caller was cancelled
	ctx = context.WithoutCancel(ctx)

	var errs []error
	lost := h.lost.Load()
	if lost {
		c.logger.Debug("Link lost, skipping GATT teardown commands")
	}

	if !lost {
		if err := c.unsubscribe(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	if c.opts.KeepPairingOnClose {
		c.logger.Debug("Keeping pairing on close")
	} else if err := c.unpair(ctx, h.address); err != nil {
		errs = append(errs, err)
	}
	if !lost {
		if err := c.stopStream(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.release(); err != nil {
		errs = append(errs, fmt.Errorf("connection disposal: %w", err))
	}

	c.handle.Store(nil)
	c.setState(StateClosed)

	if len(errs) > 0 {
		for _, err := range errs {
			c.logger.WithError(err).Warn("Teardown step failed")
		}
		return status.New(status.General, "close", errors.Join(errs...))
	}
	c.logger.Info("Headset session closed")
	return nil
}

// Run opens a session (by address when addr is non-empty), runs fn, and
// closes the session on every exit path, panics included. Benign open
// outcomes do not prevent fn from running.
func (c *Client) Run(ctx context.Context, addr string, fn func(ctx context.Context, c *Client) error) error {
	var err error
	if addr == "" {
		err = c.Open(ctx)
	} else {
		err = c.OpenAddress(ctx, addr)
	}
	if !status.IsBenign(err) {
		return err
	}

	defer func() {
		if cerr := c.Close(ctx); cerr != nil {
			c.logger.WithError(cerr).Warn("Session teardown reported failures")
		}
	}()
	return fn(ctx, c)
}
