// Package mocks holds testify mocks for the device abstractions.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/srg/bioble/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockAdvertisement is a mock type for the device.Advertisement type
type MockAdvertisement struct {
	mock.Mock
}

func (m *MockAdvertisement) LocalName() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) Addr() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) RSSI() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	return m.Called().Bool(0)
}

func (m *MockAdvertisement) Services() []uuid.UUID {
	ret := m.Called()
	if v, ok := ret.Get(0).([]uuid.UUID); ok {
		return v
	}
	return nil
}

// MockCentral is a mock type for the device.Central type
type MockCentral struct {
	mock.Mock
}

func (m *MockCentral) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	ret := m.Called(ctx, allowDup, handler)
	if fn, ok := ret.Get(0).(func(context.Context, bool, func(device.Advertisement)) error); ok {
		return fn(ctx, allowDup, handler)
	}
	return ret.Error(0)
}

func (m *MockCentral) Dial(ctx context.Context, address string) (device.Connection, error) {
	ret := m.Called(ctx, address)
	if fn, ok := ret.Get(0).(func(context.Context, string) (device.Connection, error)); ok {
		return fn(ctx, address)
	}

	var conn device.Connection
	if v, ok := ret.Get(0).(device.Connection); ok {
		conn = v
	}
	return conn, ret.Error(1)
}

// MockPairer is a mock type for the device.Pairer type
type MockPairer struct {
	mock.Mock
}

func (m *MockPairer) PairingInfo(ctx context.Context, address string) (device.PairingInfo, error) {
	ret := m.Called(ctx, address)
	if fn, ok := ret.Get(0).(func(context.Context, string) (device.PairingInfo, error)); ok {
		return fn(ctx, address)
	}
	info, _ := ret.Get(0).(device.PairingInfo)
	return info, ret.Error(1)
}

func (m *MockPairer) Pair(ctx context.Context, address string) error {
	ret := m.Called(ctx, address)
	if fn, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return fn(ctx, address)
	}
	return ret.Error(0)
}

func (m *MockPairer) Unpair(ctx context.Context, address string) error {
	ret := m.Called(ctx, address)
	if fn, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return fn(ctx, address)
	}
	return ret.Error(0)
}
