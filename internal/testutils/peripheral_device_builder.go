package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig represents a GATT characteristic configuration for mocking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "write,notify"
}

// ServiceConfig represents a GATT service configuration for mocking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete GATT layout for mocking
type DeviceProfileConfig struct {
	Address  string          `json:"address,omitempty"`
	Services []ServiceConfig `json:"services"`
}

// Write is a single characteristic write observed by a MockPeripheral
type Write struct {
	Char uuid.UUID
	Data []byte
}

// PeripheralDeviceBuilder builds a mocked central with one connectable peripheral
type PeripheralDeviceBuilder struct {
	profile            DeviceProfileConfig
	scanAdvertisements []device.Advertisement

	dialErr        error
	dialDelay      time.Duration
	closeErr       error
	subscribeErr   error
	writeErrs      map[string]error
	ignoreCCCD     bool
	discoveryDelay time.Duration
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		profile: DeviceProfileConfig{
			Address:  "aa:bb:cc:dd:ee:ff",
			Services: []ServiceConfig{},
		},
		writeErrs: make(map[string]error),
	}
}

// WithAddress sets the address the peripheral accepts dials on
func (b *PeripheralDeviceBuilder) WithAddress(addr string) *PeripheralDeviceBuilder {
	b.profile.Address = addr
	return b
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{
		UUID:            uuid,
		Characteristics: []CharacteristicConfig{},
	})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromProfile lays out the GATT table a headset of the given profile exposes.
// A disconnect characteristic equal to the send characteristic is listed once.
func (b *PeripheralDeviceBuilder) FromProfile(p catalog.Profile) *PeripheralDeviceBuilder {
	b.WithService(p.Service.String()).
		WithCharacteristic(p.Send.String(), "write,write-without-response").
		WithCharacteristic(p.Receive.String(), "notify")
	if p.Disconnect != p.Send && p.Disconnect != p.Receive {
		b.WithCharacteristic(p.Disconnect.String(), "write")
	}
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	if config.Address == "" {
		config.Address = b.profile.Address
	}

	b.profile = config
	return b
}

// WithDialError makes every dial fail with err
func (b *PeripheralDeviceBuilder) WithDialError(err error) *PeripheralDeviceBuilder {
	b.dialErr = err
	return b
}

// WithCloseError makes every connection disposal fail with err
func (b *PeripheralDeviceBuilder) WithCloseError(err error) *PeripheralDeviceBuilder {
	b.closeErr = err
	return b
}

// WithDialDelay makes dials block for d or until the dial context ends
func (b *PeripheralDeviceBuilder) WithDialDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.dialDelay = d
	return b
}

// WithDiscoveryDelay slows down service discovery
func (b *PeripheralDeviceBuilder) WithDiscoveryDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.discoveryDelay = d
	return b
}

// WithSubscribeError makes enabling notifications fail with err
func (b *PeripheralDeviceBuilder) WithSubscribeError(err error) *PeripheralDeviceBuilder {
	b.subscribeErr = err
	return b
}

// WithWriteError makes writes of payload fail with err
func (b *PeripheralDeviceBuilder) WithWriteError(payload string, err error) *PeripheralDeviceBuilder {
	b.writeErrs[payload] = err
	return b
}

// WithIgnoredClientConfig makes CCCD writes succeed without taking effect,
// so read-back always reports notifications disabled.
func (b *PeripheralDeviceBuilder) WithIgnoredClientConfig() *PeripheralDeviceBuilder {
	b.ignoreCCCD = true
	return b
}

// WithScanAdvertisements returns an AdvertisementArrayBuilder that will return this PeripheralDeviceBuilder on Build()
func (b *PeripheralDeviceBuilder) WithScanAdvertisements() *AdvertisementArrayBuilder[*PeripheralDeviceBuilder] {
	arrayBuilder := NewAdvertisementArrayBuilder[*PeripheralDeviceBuilder]()
	arrayBuilder.parent = b
	arrayBuilder.buildFunc = func(parent *PeripheralDeviceBuilder, ads []device.Advertisement) *PeripheralDeviceBuilder {
		parent.scanAdvertisements = append(parent.scanAdvertisements, ads...)
		return parent
	}
	return arrayBuilder
}

// GetServices returns the configured services
func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}

// MockPeripheral is the result of PeripheralDeviceBuilder.Build: a mocked
// central plus the mocked connection it hands out, with the state the
// connection accumulated.
type MockPeripheral struct {
	Central *mocks.MockCentral
	Conn    *mocks.MockConnection

	mu           sync.Mutex
	chars        map[uuid.UUID]device.Characteristic
	handlers     map[uuid.UUID]device.NotificationHandler
	configs      map[uuid.UUID]device.ClientConfig
	writes       []Write
	dials        int
	closes       int
	disconnected chan struct{}
	dropOnce     sync.Once
}

func newMockCharacteristic(cfg CharacteristicConfig) device.Characteristic {
	c := &mocks.MockCharacteristic{}
	props, err := device.ParseProperties(cfg.Properties)
	if err != nil {
		panic(fmt.Sprintf("characteristic %s: %v", cfg.UUID, err))
	}
	c.On("UUID").Return(device.MustParseUUID(cfg.UUID)).Maybe()
	c.On("Properties").Return(props).Maybe()
	return c
}

// Build creates the mocked central and connection with the configured profile
func (b *PeripheralDeviceBuilder) Build() *MockPeripheral {
	p := &MockPeripheral{
		Central:      &mocks.MockCentral{},
		Conn:         &mocks.MockConnection{},
		chars:        make(map[uuid.UUID]device.Characteristic),
		handlers:     make(map[uuid.UUID]device.NotificationHandler),
		configs:      make(map[uuid.UUID]device.ClientConfig),
		disconnected: make(chan struct{}),
	}

	var services []device.Service
	for _, svcConfig := range b.profile.Services {
		svc := &mocks.MockService{}
		svc.On("UUID").Return(device.MustParseUUID(svcConfig.UUID)).Maybe()
		services = append(services, svc)

		var chars []device.Characteristic
		for _, charConfig := range svcConfig.Characteristics {
			c := newMockCharacteristic(charConfig)
			p.chars[c.UUID()] = c
			chars = append(chars, c)
		}
		p.Conn.On("DiscoverCharacteristics", svc).Return(chars, nil).Maybe()
	}

	dialErr, dialDelay, discoveryDelay := b.dialErr, b.dialDelay, b.discoveryDelay
	subscribeErr, writeErrs, ignoreCCCD := b.subscribeErr, b.writeErrs, b.ignoreCCCD
	address := b.profile.Address
	closeErr := b.closeErr

	p.Conn.On("Address").Return(address).Maybe()
	p.Conn.On("DiscoverServices").Return(func() ([]device.Service, error) {
		if discoveryDelay > 0 {
			time.Sleep(discoveryDelay)
		}
		return services, nil
	}).Maybe()

	p.Conn.On("WriteCharacteristic", mock.Anything, mock.Anything).Return(func(c device.Characteristic, data []byte) error {
		if err, ok := writeErrs[string(data)]; ok {
			return err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		p.writes = append(p.writes, Write{Char: c.UUID(), Data: append([]byte(nil), data...)})
		return nil
	}).Maybe()

	p.Conn.On("WriteClientConfig", mock.Anything, mock.Anything).Return(func(c device.Characteristic, cfg device.ClientConfig) error {
		if cfg.Notifications && subscribeErr != nil {
			return subscribeErr
		}
		if ignoreCCCD {
			return nil
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		p.configs[c.UUID()] = cfg
		return nil
	}).Maybe()

	p.Conn.On("ReadClientConfig", mock.Anything).Return(func(c device.Characteristic) (*device.ClientConfig, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		cfg := p.configs[c.UUID()]
		return &cfg, nil
	}).Maybe()

	p.Conn.On("SetNotificationHandler", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		c := args.Get(0).(device.Characteristic)
		h, _ := args.Get(1).(device.NotificationHandler)
		p.mu.Lock()
		defer p.mu.Unlock()
		if h == nil {
			delete(p.handlers, c.UUID())
			return
		}
		p.handlers[c.UUID()] = h
	}).Maybe()

	p.Conn.On("Disconnected").Return(p.disconnected).Maybe()
	p.Conn.On("Close").Return(func() error { return closeErr }).Run(func(mock.Arguments) {
		p.mu.Lock()
		p.closes++
		p.mu.Unlock()
		p.Drop()
	}).Maybe()

	p.Central.On("Dial", mock.Anything, mock.Anything).Return(func(ctx context.Context, addr string) (device.Connection, error) {
		p.mu.Lock()
		p.dials++
		p.mu.Unlock()

		if dialDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(dialDelay):
			}
		}
		if dialErr != nil {
			return nil, dialErr
		}
		if !strings.EqualFold(addr, address) {
			return nil, fmt.Errorf("no peripheral at %s", addr)
		}
		return p.Conn, nil
	}).Maybe()

	ads := b.scanAdvertisements
	p.Central.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(func(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
		for _, adv := range ads {
			handler(adv)
		}
		<-ctx.Done()
		return ctx.Err()
	}).Maybe()

	return p
}

// Notify delivers data to the handler registered for char. It reports false
// when no handler is registered.
func (p *MockPeripheral) Notify(char uuid.UUID, data []byte) bool {
	p.mu.Lock()
	h := p.handlers[char]
	p.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// Writes returns a snapshot of the characteristic writes seen so far
func (p *MockPeripheral) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write(nil), p.writes...)
}

// WrittenTokens returns the written payloads as strings
func (p *MockPeripheral) WrittenTokens() []string {
	var out []string
	for _, w := range p.Writes() {
		out = append(out, string(w.Data))
	}
	return out
}

// ClientConfig returns the last CCCD value written for char
func (p *MockPeripheral) ClientConfig(char uuid.UUID) device.ClientConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configs[char]
}

// HasHandler reports whether a notification handler is attached to char
func (p *MockPeripheral) HasHandler(char uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers[char] != nil
}

// Dials returns the number of dial attempts
func (p *MockPeripheral) Dials() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dials
}

// Closes returns the number of times the connection was closed
func (p *MockPeripheral) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Drop simulates the link going away
func (p *MockPeripheral) Drop() {
	p.dropOnce.Do(func() { close(p.disconnected) })
}
