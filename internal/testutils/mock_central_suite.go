//go:build test

package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/stretchr/testify/suite"
)

// MockCentralSuite provides a reusable test suite with a mocked central and
// a single mocked headset peripheral behind it.
//
// Basic usage (a Ganglion layout advertising as "Ganglion-1a2b"):
//
//	type ClientSuite struct {
//	    testutils.MockCentralSuite
//	}
//
//	func TestClientSuite(t *testing.T) {
//	    suite.Run(t, new(ClientSuite))
//	}
//
// Custom peripheral usage:
//
//	func (s *ClientSuite) SetupTest() {
//	    s.WithPeripheral().
//	        FromProfile(catalog.BrainAlive).
//	        WithSubscribeError(errors.New("gatt busy"))
//
//	    s.MockCentralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockCentralSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	TestTimeout time.Duration

	// Profile used for the default peripheral layout
	Profile catalog.Profile

	PeripheralBuilder     *PeripheralDeviceBuilder
	AdvertisementsBuilder *AdvertisementArrayBuilder[[]device.Advertisement]

	// Peripheral is built in SetupTest from PeripheralBuilder
	Peripheral *MockPeripheral
}

// SetupSuite is called once before all tests in the suite.
func (s *MockCentralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 5 * time.Second

	if s.Profile.Model == "" {
		s.Profile = catalog.Ganglion
	}
	s.Logger.Debug("Suite setup completed")
}

// SetupTest builds the mocked peripheral before each test.
func (s *MockCentralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = createDefaultPeripheralBuilder(s.Profile)
	}

	if s.AdvertisementsBuilder == nil {
		s.WithAdvertisements().
			WithNewAdvertisement().
			WithName(s.Profile.NamePrefix + "-1a2b").
			WithAddress(s.PeripheralBuilder.profile.Address).
			WithRSSI(-52).
			Build()
	}
	s.PeripheralBuilder.
		WithScanAdvertisements().
		WithAdvertisements(s.AdvertisementsBuilder.Build()...).
		Build()

	s.Peripheral = s.PeripheralBuilder.Build()
	s.Logger.Debug("Test setup completed - ready for execution")
}

// TearDownTest resets the builders after each test.
func (s *MockCentralSuite) TearDownTest() {
	if s.Peripheral != nil {
		s.Peripheral.Drop()
	}
	s.Peripheral = nil
	s.PeripheralBuilder = nil
	s.AdvertisementsBuilder = nil
}

// WithPeripheral returns the peripheral builder for fluent configuration.
func (s *MockCentralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder()
	}
	return s.PeripheralBuilder
}

// WithAdvertisements returns the advertisement array builder for configuring scan advertisements.
func (s *MockCentralSuite) WithAdvertisements() *AdvertisementArrayBuilder[[]device.Advertisement] {
	if s.AdvertisementsBuilder == nil {
		s.AdvertisementsBuilder = NewAdvertisementArrayBuilder[[]device.Advertisement]()
	}
	return s.AdvertisementsBuilder
}

func createDefaultPeripheralBuilder(p catalog.Profile) *PeripheralDeviceBuilder {
	return NewPeripheralDeviceBuilder().FromProfile(p)
}
