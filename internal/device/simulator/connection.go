package simulator

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/groutine"
)

type service struct{ id uuid.UUID }

func (s *service) UUID() uuid.UUID { return s.id }

type characteristic struct {
	id    uuid.UUID
	props device.Properties
}

func (c *characteristic) UUID() uuid.UUID                { return c.id }
func (c *characteristic) Properties() device.Properties { return c.props }

// Connection is a live session with the simulated headset.
type Connection struct {
	profile catalog.Profile
	opts    Options
	logger  *logrus.Logger

	svc   *service
	chars []*characteristic

	cccd    atomic.Pointer[device.ClientConfig]
	handler atomic.Pointer[device.NotificationHandler]

	mu       sync.Mutex
	stopFeed context.CancelFunc
	feedDone <-chan struct{}
	writes   [][]byte

	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
}

func newConnection(profile catalog.Profile, opts Options, logger *logrus.Logger) *Connection {
	c := &Connection{
		profile: profile,
		opts:    opts,
		logger:  logger,
		svc:     &service{id: profile.Service},
		done:    make(chan struct{}),
	}

	seen := map[uuid.UUID]*characteristic{}
	add := func(id uuid.UUID, props device.Properties) {
		if ch, ok := seen[id]; ok {
			ch.props |= props
			return
		}
		ch := &characteristic{id: id, props: props}
		seen[id] = ch
		c.chars = append(c.chars, ch)
	}
	add(profile.Receive, device.PropNotify|device.PropRead)
	add(profile.Send, device.PropWrite|device.PropWriteWithoutResponse)
	add(profile.Disconnect, device.PropWrite|device.PropWriteWithoutResponse)

	c.cccd.Store(&device.ClientConfig{})
	return c
}

func (c *Connection) Address() string {
	return c.opts.Address
}

func (c *Connection) ensureOpen() error {
	if c.closed.Load() {
		return device.ErrNotConnected
	}
	return nil
}

func (c *Connection) DiscoverServices() ([]device.Service, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	return []device.Service{c.svc}, nil
}

func (c *Connection) DiscoverCharacteristics(svc device.Service) ([]device.Characteristic, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	if svc.UUID() != c.svc.id {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []uuid.UUID{svc.UUID()}}
	}

	out := make([]device.Characteristic, 0, len(c.chars))
	for _, ch := range c.chars {
		out = append(out, ch)
	}
	return out, nil
}

// Writes returns a copy of every payload written so far.
func (c *Connection) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *Connection) matches(data []byte, token string) bool {
	writes, err := c.profile.Encode(token)
	if err != nil || len(writes) != 1 {
		return false
	}
	return string(writes[0]) == string(data)
}

// WriteCharacteristic interprets start and stop tokens; anything else is
// accepted as board configuration.
func (c *Connection) WriteCharacteristic(ch device.Characteristic, data []byte) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if !ch.Properties().Has(device.PropWrite) {
		return device.ErrWriteRejected
	}

	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	c.mu.Unlock()

	id := ch.UUID()
	switch {
	case id == c.profile.Send && c.matches(data, c.profile.Start):
		c.startFeed()
	case id == c.profile.Send && c.matches(data, c.profile.Stop):
		c.stopFeedAndWait()
	case id == c.profile.Disconnect && c.matches(data, c.profile.DisconnectToken):
		c.stopFeedAndWait()
	}
	return nil
}

func (c *Connection) WriteClientConfig(ch device.Characteristic, cfg device.ClientConfig) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if !ch.Properties().CanNotify() {
		return device.ErrWriteRejected
	}
	c.cccd.Store(&cfg)
	return nil
}

func (c *Connection) ReadClientConfig(ch device.Characteristic) (*device.ClientConfig, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	cfg := *c.cccd.Load()
	return &cfg, nil
}

func (c *Connection) SetNotificationHandler(_ device.Characteristic, h device.NotificationHandler) {
	if h == nil {
		c.handler.Store(nil)
		return
	}
	c.handler.Store(&h)
}

func (c *Connection) Disconnected() <-chan struct{} {
	return c.done
}

// Streaming reports whether the packet feed is running.
func (c *Connection) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopFeed != nil
}

func (c *Connection) startFeed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopFeed != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stopFeed = cancel
	c.feedDone = groutine.Go(ctx, "simulator-feed", c.feed)
	c.logger.Debug("Simulated stream started")
}

func (c *Connection) stopFeedAndWait() {
	c.mu.Lock()
	cancel, done := c.stopFeed, c.feedDone
	c.stopFeed, c.feedDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Debug("Simulated stream stopped")
}

// feed emits packets shaped like the vendor mock: byte 0 carries a value only
// every 100th packet, the rest is random.
func (c *Connection) feed(ctx context.Context) {
	rng := rand.New(rand.NewPCG(c.opts.Seed, c.opts.Seed>>1|1))
	ticker := time.NewTicker(c.opts.SampleInterval)
	defer ticker.Stop()

	var counter uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		packet := make([]byte, c.profile.PacketLength)
		if counter%100 == 0 {
			packet[0] = byte(rng.IntN(201))
		}
		for i := 1; i < len(packet); i++ {
			packet[i] = byte(rng.IntN(256))
		}
		counter++

		if !c.cccd.Load().Notifications {
			continue
		}
		if h := c.handler.Load(); h != nil {
			(*h)(packet)
		}
	}
}

// Close stops the feed and drops the link.
func (c *Connection) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		c.stopFeedAndWait()
		close(c.done)
	})
	return nil
}

// Drop simulates a link loss without a local Close.
func (c *Connection) Drop() {
	_ = c.Close()
}
