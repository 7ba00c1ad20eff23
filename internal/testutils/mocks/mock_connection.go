package mocks

import (
	"github.com/google/uuid"
	"github.com/srg/bioble/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockService is a mock type for the device.Service type
type MockService struct {
	mock.Mock
}

func (m *MockService) UUID() uuid.UUID {
	return m.Called().Get(0).(uuid.UUID)
}

// MockCharacteristic is a mock type for the device.Characteristic type
type MockCharacteristic struct {
	mock.Mock
}

func (m *MockCharacteristic) UUID() uuid.UUID {
	return m.Called().Get(0).(uuid.UUID)
}

func (m *MockCharacteristic) Properties() device.Properties {
	return m.Called().Get(0).(device.Properties)
}

// MockConnection is a mock type for the device.Connection type
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) Address() string {
	return m.Called().String(0)
}

func (m *MockConnection) DiscoverServices() ([]device.Service, error) {
	ret := m.Called()
	if fn, ok := ret.Get(0).(func() ([]device.Service, error)); ok {
		return fn()
	}
	svcs, _ := ret.Get(0).([]device.Service)
	return svcs, ret.Error(1)
}

func (m *MockConnection) DiscoverCharacteristics(svc device.Service) ([]device.Characteristic, error) {
	ret := m.Called(svc)
	if fn, ok := ret.Get(0).(func(device.Service) ([]device.Characteristic, error)); ok {
		return fn(svc)
	}
	chars, _ := ret.Get(0).([]device.Characteristic)
	return chars, ret.Error(1)
}

func (m *MockConnection) WriteCharacteristic(c device.Characteristic, data []byte) error {
	ret := m.Called(c, data)
	if fn, ok := ret.Get(0).(func(device.Characteristic, []byte) error); ok {
		return fn(c, data)
	}
	return ret.Error(0)
}

func (m *MockConnection) WriteClientConfig(c device.Characteristic, cfg device.ClientConfig) error {
	ret := m.Called(c, cfg)
	if fn, ok := ret.Get(0).(func(device.Characteristic, device.ClientConfig) error); ok {
		return fn(c, cfg)
	}
	return ret.Error(0)
}

func (m *MockConnection) ReadClientConfig(c device.Characteristic) (*device.ClientConfig, error) {
	ret := m.Called(c)
	if fn, ok := ret.Get(0).(func(device.Characteristic) (*device.ClientConfig, error)); ok {
		return fn(c)
	}
	cfg, _ := ret.Get(0).(*device.ClientConfig)
	return cfg, ret.Error(1)
}

func (m *MockConnection) SetNotificationHandler(c device.Characteristic, h device.NotificationHandler) {
	m.Called(c, h)
}

func (m *MockConnection) Disconnected() <-chan struct{} {
	ret := m.Called()
	switch v := ret.Get(0).(type) {
	case chan struct{}:
		return v
	case <-chan struct{}:
		return v
	}
	return nil
}

func (m *MockConnection) Close() error {
	ret := m.Called()
	if fn, ok := ret.Get(0).(func() error); ok {
		return fn()
	}
	return ret.Error(0)
}
