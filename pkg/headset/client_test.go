//go:build test

package headset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/testutils"
	"github.com/srg/bioble/internal/testutils/mocks"
	"github.com/srg/bioble/pkg/status"
	"github.com/srg/bioble/scanner"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var fixedNow = time.Unix(1_700_000_000, 0)

type ClientTestSuite struct {
	testutils.MockCentralSuite
	pairer *mocks.MockPairer
}

func (s *ClientTestSuite) SetupTest() {
	s.MockCentralSuite.SetupTest()
	s.pairer = alreadyPaired()
}

func alreadyPaired() *mocks.MockPairer {
	p := &mocks.MockPairer{}
	p.On("PairingInfo", mock.Anything, mock.Anything).Return(device.PairingInfo{Paired: true}, nil)
	p.On("Unpair", mock.Anything, mock.Anything).Return(nil).Maybe()
	return p
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.OperationTimeout = 300 * time.Millisecond
	opts.Scan = scanner.Options{
		Window:       300 * time.Millisecond,
		Settle:       -1,
		JoinTimeout:  200 * time.Millisecond,
		RestartDelay: 5 * time.Millisecond,
	}
	return opts
}

func (s *ClientTestSuite) newClient(opts Options) *Client {
	c, err := NewClient(s.Profile, s.Peripheral.Central, s.pairer, opts, s.Logger)
	s.Require().NoError(err)
	c.now = func() time.Time { return fixedNow }
	return c
}

// rebuild replaces the default peripheral with one configured by configure.
func (s *ClientTestSuite) rebuild(configure func(b *testutils.PeripheralDeviceBuilder)) {
	s.PeripheralBuilder = nil
	s.AdvertisementsBuilder = nil
	configure(s.WithPeripheral())
	s.MockCentralSuite.SetupTest()
}

func (s *ClientTestSuite) openClient(opts Options) *Client {
	c := s.newClient(opts)
	err := c.Open(context.Background())
	s.Require().True(status.IsBenign(err), "open MUST succeed, got %v", err)
	return c
}

func (s *ClientTestSuite) requireCode(err error, code status.Code) {
	s.Require().Error(err)
	s.Require().Equal(code, status.CodeOf(err), "unexpected status for %v", err)
}

func (s *ClientTestSuite) TestOpenAlreadyPairedIsBenign() {
	// GOAL: Verify a fully opened session reports the benign AlreadyPaired outcome
	//
	// TEST SCENARIO: Peripheral already paired → Open returns AlreadyPaired, session Subscribed with notifications on

	c := s.newClient(testOptions())
	err := c.Open(context.Background())

	s.requireCode(err, status.AlreadyPaired)
	s.True(status.IsBenign(err))
	s.Equal(StateSubscribed, c.State())
	s.True(s.Peripheral.ClientConfig(s.Profile.Receive).Notifications, "notifications MUST be enabled")
	s.True(s.Peripheral.HasHandler(s.Profile.Receive), "callback MUST be registered")
	s.Equal(Subscribed, c.handle.Load().subscription, "subscription MUST be verified")
	s.pairer.AssertNotCalled(s.T(), "Pair", mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestOpenPairsWhenPairable() {
	s.pairer = &mocks.MockPairer{}
	s.pairer.On("PairingInfo", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(device.PairingInfo{CanPair: true}, nil)
	s.pairer.On("Pair", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(nil).Once()

	c := s.newClient(testOptions())
	s.NoError(c.Open(context.Background()))
	s.pairer.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestOpenAbortsOnPairingFailure() {
	// GOAL: Verify a failed pairing aborts Open and releases the connection
	//
	// TEST SCENARIO: Pair fails → General status, state Closed, connection closed once

	s.pairer = &mocks.MockPairer{}
	s.pairer.On("PairingInfo", mock.Anything, mock.Anything).Return(device.PairingInfo{CanPair: true}, nil)
	s.pairer.On("Pair", mock.Anything, mock.Anything).Return(errors.New("authentication rejected"))

	c := s.newClient(testOptions())
	s.requireCode(c.Open(context.Background()), status.General)
	s.Equal(StateClosed, c.State())
	s.Equal(1, s.Peripheral.Closes(), "partial session MUST be released")
	s.requireCode(c.Close(context.Background()), status.NotOpen)
}

func (s *ClientTestSuite) TestOpenPairingFailureLogsReleaseError() {
	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithCloseError(errors.New("hci reset"))
	})
	s.pairer = &mocks.MockPairer{}
	s.pairer.On("PairingInfo", mock.Anything, mock.Anything).Return(device.PairingInfo{CanPair: true}, nil)
	s.pairer.On("Pair", mock.Anything, mock.Anything).Return(errors.New("authentication rejected"))

	saved := s.Logger.ReplaceHooks(make(logrus.LevelHooks))
	defer s.Logger.ReplaceHooks(saved)
	hook := logtest.NewLocal(s.Logger)

	c := s.newClient(testOptions())
	s.requireCode(c.Open(context.Background()), status.General)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Failed to release connection after pairing failure" {
			warned = true
		}
	}
	s.True(warned, "release failure MUST be logged")
}

func (s *ClientTestSuite) TestOpenAddressIgnoresPairingResult() {
	s.pairer = &mocks.MockPairer{}
	s.pairer.On("PairingInfo", mock.Anything, mock.Anything).Return(device.PairingInfo{}, errors.New("bluez unavailable"))

	c := s.newClient(testOptions())
	s.NoError(c.OpenAddress(context.Background(), "EE:FF"), "pairing result MUST be ignored")
	s.Equal(StateSubscribed, c.State())
}

func (s *ClientTestSuite) TestDoubleOpenReturnsAlreadyOpenWithoutNativeCalls() {
	// GOAL: Verify a second Open performs no native side effects
	//
	// TEST SCENARIO: Open twice → AlreadyOpen, one scan and one dial in total

	c := s.openClient(testOptions())
	s.requireCode(c.Open(context.Background()), status.AlreadyOpen)
	s.requireCode(c.OpenAddress(context.Background(), "aa"), status.AlreadyOpen)

	s.Peripheral.Central.AssertNumberOfCalls(s.T(), "Scan", 1)
	s.Peripheral.Central.AssertNumberOfCalls(s.T(), "Dial", 1)
	s.Peripheral.Conn.AssertNumberOfCalls(s.T(), "DiscoverServices", 1)
}

func (s *ClientTestSuite) TestOpenNotFoundDialsNothing() {
	// GOAL: Verify Open without a matching advertisement returns NotFound and allocates no handle
	//
	// TEST SCENARIO: Only a BrainAlive advertises → Ganglion Open returns NotFound, Dial never called

	s.PeripheralBuilder = nil
	s.AdvertisementsBuilder = nil
	s.WithPeripheral().FromProfile(s.Profile)
	s.WithAdvertisements().WithNewAdvertisement().WithName("BrainAlive_7").WithAddress("aa:bb:cc:dd:ee:ff").Build()
	s.MockCentralSuite.SetupTest()

	c := s.newClient(testOptions())
	s.requireCode(c.Open(context.Background()), status.NotFound)
	s.Equal(StateClosed, c.State())
	s.Peripheral.Central.AssertNotCalled(s.T(), "Dial", mock.Anything, mock.Anything)
	s.Equal(status.NoData, c.GetData().Status)
}

func (s *ClientTestSuite) TestOpenResolutionFailures() {
	tests := []struct {
		name string
		json string
		code status.Code
	}{
		{
			name: "service missing",
			json: `{"services":[{"uuid":"180f","characteristics":[{"uuid":"2a19","properties":"read,notify"}]}]}`,
			code: status.ServiceNotFound,
		},
		{
			name: "receive missing",
			json: `{"services":[{"uuid":"fe84","characteristics":[
				{"uuid":"2d30c083-f39f-4ce6-923f-3484ea480596","properties":"write"},
				{"uuid":"2d30c084-f39f-4ce6-923f-3484ea480596","properties":"write"}]}]}`,
			code: status.ReceiveCharacteristicNotFound,
		},
		{
			name: "send missing",
			json: `{"services":[{"uuid":"fe84","characteristics":[
				{"uuid":"2d30c082-f39f-4ce6-923f-3484ea480596","properties":"notify"},
				{"uuid":"2d30c084-f39f-4ce6-923f-3484ea480596","properties":"write"}]}]}`,
			code: status.SendCharacteristicNotFound,
		},
		{
			name: "disconnect missing",
			json: `{"services":[{"uuid":"fe84","characteristics":[
				{"uuid":"2d30c082-f39f-4ce6-923f-3484ea480596","properties":"notify"},
				{"uuid":"2d30c083-f39f-4ce6-923f-3484ea480596","properties":"write"}]}]}`,
			code: status.DisconnectCharacteristicNotFound,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.rebuild(func(b *testutils.PeripheralDeviceBuilder) { b.FromJSON("%s", tt.json) })

			c := s.newClient(testOptions())
			s.requireCode(c.Open(context.Background()), tt.code)
			s.Equal(StateClosed, c.State())
			s.Equal(1, s.Peripheral.Closes(), "connection MUST be released")
		})
	}
}

func (s *ClientTestSuite) TestDialTimeout() {
	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithDialDelay(5 * time.Second)
	})

	opts := testOptions()
	opts.OperationTimeout = 50 * time.Millisecond
	c := s.newClient(opts)

	start := time.Now()
	s.requireCode(c.Open(context.Background()), status.Timeout)
	s.Less(time.Since(start), 2*time.Second, "dial MUST be bounded by the operation timeout")
}

func (s *ClientTestSuite) TestGetDataNeverBlocks() {
	// GOAL: Verify GetData returns the NoData sentinel on fresh, empty and closed sessions

	c := s.newClient(testOptions())

	sample := c.GetData()
	s.Equal(status.NoData, sample.Status)
	s.Len(sample.Data, s.Profile.PacketLength)
	s.Zero(sample.Timestamp)

	s.Require().True(status.IsBenign(c.Open(context.Background())))
	s.Equal(status.NoData, c.GetData().Status, "empty queue MUST yield NoData")

	s.Require().NoError(c.Close(context.Background()))
	s.Equal(status.NoData, c.GetData().Status, "closed session MUST yield NoData")
}

func (s *ClientTestSuite) TestIngestDropsWrongLengthPayloads() {
	// GOAL: Verify only PacketLength payloads reach the queue
	//
	// TEST SCENARIO: 19-byte and 21-byte notifications dropped, 20-byte one dequeued with timestamp

	c := s.openClient(testOptions())

	s.Require().True(s.Peripheral.Notify(s.Profile.Receive, make([]byte, 19)))
	s.Require().True(s.Peripheral.Notify(s.Profile.Receive, make([]byte, 21)))
	s.Equal(0, c.Metrics().QueueLen, "malformed payloads MUST not be enqueued")

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	s.Require().True(s.Peripheral.Notify(s.Profile.Receive, payload))
	payload[0] = 0xff // the queue MUST own a copy

	sample := c.GetData()
	s.Equal(status.OK, sample.Status)
	s.Equal(byte(1), sample.Data[0])
	s.Equal(byte(20), sample.Data[19])
	s.Equal(fixedNow.Unix(), sample.Timestamp)

	m := c.Metrics()
	s.Equal(int64(3), m.Queue.Received)
	s.Equal(int64(2), m.Queue.Malformed)
	s.Equal(int64(1), m.Queue.Dequeued)
}

func (s *ClientTestSuite) TestStartAndStopStream() {
	c := s.openClient(testOptions())

	s.Require().NoError(c.StartStream(context.Background()))
	s.Equal(StateStreaming, c.State())

	s.Require().NoError(c.StopStream(context.Background()))
	s.Equal(StateSubscribed, c.State())

	writes := s.Peripheral.Writes()
	s.Require().Len(writes, 3)
	s.Equal(testutils.Write{Char: s.Profile.Send, Data: []byte("b")}, writes[0])
	s.Equal(testutils.Write{Char: s.Profile.Send, Data: []byte("s")}, writes[1])
	s.Equal(testutils.Write{Char: s.Profile.Disconnect, Data: []byte(" ")}, writes[2])
}

func (s *ClientTestSuite) TestStopStreamAttemptsBothCommands() {
	// GOAL: Verify StopStream sends the second command even when the first is rejected
	//
	// TEST SCENARIO: Stop token rejected → StopError returned, legacy token still written

	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithWriteError("s", device.ErrWriteRejected)
	})

	c := s.openClient(testOptions())
	s.requireCode(c.StopStream(context.Background()), status.StopError)
	s.Equal([]string{" "}, s.Peripheral.WrittenTokens(), "second command MUST be attempted")
	s.Equal(StateSubscribed, c.State())
}

func (s *ClientTestSuite) TestStopStreamReturnsSecondFailureWhenFirstSucceeds() {
	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithWriteError(" ", errors.New("gatt busy"))
	})

	c := s.openClient(testOptions())
	s.requireCode(c.StopStream(context.Background()), status.General)
	s.Equal([]string{"s"}, s.Peripheral.WrittenTokens())
}

func (s *ClientTestSuite) TestStopStreamWithoutLegacyToken() {
	opts := testOptions()
	opts.LegacyStopToken = false

	c := s.openClient(opts)
	s.Require().NoError(c.StopStream(context.Background()))
	s.Equal([]string{"s"}, s.Peripheral.WrittenTokens())
}

func (s *ClientTestSuite) TestSubscriptionVerificationRetriesExactlyOnce() {
	// GOAL: Verify an unconfirmed subscription is retried exactly once and the callback stays registered
	//
	// TEST SCENARIO: CCCD writes succeed but never read back as enabled → two writes, FailedToSetCallback

	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithIgnoredClientConfig()
	})

	c := s.newClient(testOptions())
	err := c.Open(context.Background())

	s.requireCode(err, status.FailedToSetCallback)
	s.ErrorIs(err, ErrSubscriptionUnverified)
	s.Peripheral.Conn.AssertNumberOfCalls(s.T(), "WriteClientConfig", 2)
	s.Peripheral.Conn.AssertNumberOfCalls(s.T(), "ReadClientConfig", 2)
	s.True(s.Peripheral.HasHandler(s.Profile.Receive), "callback MUST remain registered")
	s.Equal(StateClosed, c.State())
}

func (s *ClientTestSuite) TestSubscribeWriteFailure() {
	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithSubscribeError(device.ErrWriteRejected)
	})

	c := s.newClient(testOptions())
	s.requireCode(c.Open(context.Background()), status.FailedToSetCallback)
	s.False(s.Peripheral.HasHandler(s.Profile.Receive), "callback MUST only be registered after a successful write")
}

func (s *ClientTestSuite) TestCloseWithoutSessionTouchesNothing() {
	c := s.newClient(testOptions())

	s.requireCode(c.Close(context.Background()), status.NotOpen)
	s.requireCode(c.Close(context.Background()), status.NotOpen)
	s.Peripheral.Conn.AssertNotCalled(s.T(), "Close")
	s.Peripheral.Conn.AssertNotCalled(s.T(), "WriteClientConfig", mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestCloseTearsDownAndIsIdempotent() {
	// GOAL: Verify Close unsubscribes, unpairs, stops, disposes the connection, then reports NotOpen
	//
	// TEST SCENARIO: Open → Close → Close

	c := s.openClient(testOptions())

	s.Require().NoError(c.Close(context.Background()))
	s.Equal(StateClosed, c.State())
	s.False(s.Peripheral.ClientConfig(s.Profile.Receive).Notifications, "notifications MUST be disabled")
	s.False(s.Peripheral.HasHandler(s.Profile.Receive), "callback MUST be detached")
	s.Equal([]string{"s", " "}, s.Peripheral.WrittenTokens())
	s.Equal(1, s.Peripheral.Closes())
	s.pairer.AssertNumberOfCalls(s.T(), "Unpair", 1)

	s.requireCode(c.Close(context.Background()), status.NotOpen)
	s.Equal(1, s.Peripheral.Closes(), "second close MUST not touch the connection")
}

func (s *ClientTestSuite) TestCloseAggregatesFailuresButCompletes() {
	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithWriteError("s", device.ErrWriteRejected)
	})

	c := s.openClient(testOptions())
	err := c.Close(context.Background())

	s.requireCode(err, status.General)
	s.ErrorIs(err, status.ErrStop)
	s.Equal(StateClosed, c.State())
	s.Equal(1, s.Peripheral.Closes(), "teardown MUST dispose the connection")
}

func (s *ClientTestSuite) TestCloseUnpairsByDefault() {
	// GOAL: Verify Close removes a pairing made during Open without any option set
	//
	// TEST SCENARIO: Pairable peripheral → Open pairs → Close unpairs the same address

	s.pairer = &mocks.MockPairer{}
	s.pairer.On("PairingInfo", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(device.PairingInfo{CanPair: true}, nil)
	s.pairer.On("Pair", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(nil).Once()
	s.pairer.On("Unpair", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(nil).Once()

	c := s.openClient(testOptions())
	s.NoError(c.Close(context.Background()))
	s.pairer.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestCloseTreatsNotPairedAsBenign() {
	s.pairer = &mocks.MockPairer{}
	s.pairer.On("PairingInfo", mock.Anything, mock.Anything).Return(device.PairingInfo{Paired: true}, nil)
	s.pairer.On("Unpair", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(device.ErrNotPaired).Once()

	c := s.openClient(testOptions())
	s.NoError(c.Close(context.Background()))
	s.pairer.AssertCalled(s.T(), "Unpair", mock.Anything, "aa:bb:cc:dd:ee:ff")
}

func (s *ClientTestSuite) TestCloseKeepsPairingWhenAsked() {
	opts := testOptions()
	opts.KeepPairingOnClose = true
	c := s.openClient(opts)

	s.NoError(c.Close(context.Background()))
	s.pairer.AssertNotCalled(s.T(), "Unpair", mock.Anything, mock.Anything)
	s.Equal(1, s.Peripheral.Closes())
}

func (s *ClientTestSuite) TestConfigBoardWritesEachByte() {
	c := s.openClient(testOptions())

	s.Require().NoError(c.ConfigBoard(context.Background(), "x1060110X", TargetSend))
	s.Equal([]string{"x", "1", "0", "6", "0", "1", "1", "0", "X"}, s.Peripheral.WrittenTokens())

	s.Require().NoError(c.ConfigBoard(context.Background(), "v", TargetDisconnect))
	writes := s.Peripheral.Writes()
	s.Equal(s.Profile.Disconnect, writes[len(writes)-1].Char)

	s.requireCode(c.ConfigBoard(context.Background(), "", TargetSend), status.General)
}

func (s *ClientTestSuite) TestCommandsWithoutSession() {
	c := s.newClient(testOptions())

	s.requireCode(c.StartStream(context.Background()), status.NotOpen)
	s.requireCode(c.StopStream(context.Background()), status.NotOpen)
	s.requireCode(c.ConfigBoard(context.Background(), "v", TargetSend), status.NotOpen)
}

func (s *ClientTestSuite) TestRunClosesOnPanic() {
	// GOAL: Verify scoped acquisition releases the session when fn panics

	c := s.newClient(testOptions())

	func() {
		defer func() { s.NotNil(recover(), "panic MUST propagate") }()
		_ = c.Run(context.Background(), "", func(ctx context.Context, c *Client) error {
			s.Equal(StateSubscribed, c.State())
			panic("consumer failure")
		})
	}()

	s.Equal(StateClosed, c.State())
	s.Equal(1, s.Peripheral.Closes())
}

func (s *ClientTestSuite) TestRunPropagatesOpenFailure() {
	s.rebuild(func(b *testutils.PeripheralDeviceBuilder) {
		b.FromProfile(s.Profile).WithDialError(device.ErrNotConnected)
	})

	c := s.newClient(testOptions())
	called := false
	err := c.Run(context.Background(), "", func(context.Context, *Client) error {
		called = true
		return nil
	})
	s.requireCode(err, status.General)
	s.False(called)
}

func (s *ClientTestSuite) TestLinkLossSkipsGATTTeardown() {
	// GOAL: Verify a dropped link is detected and Close still releases the session
	//
	// TEST SCENARIO: Link drops after open → Metrics reports lost, Close writes nothing and closes the connection

	c := s.openClient(testOptions())
	s.Peripheral.Drop()

	s.Eventually(func() bool { return c.Metrics().Lost }, time.Second, 5*time.Millisecond, "link loss MUST be detected")

	s.NoError(c.Close(context.Background()))
	s.Empty(s.Peripheral.WrittenTokens(), "no commands MUST be written to a lost link")
	s.Equal(1, s.Peripheral.Closes())
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

type BrainAliveClientTestSuite struct {
	testutils.MockCentralSuite
}

func (s *BrainAliveClientTestSuite) SetupSuite() {
	s.Profile = catalog.BrainAlive
	s.MockCentralSuite.SetupSuite()
}

func (s *BrainAliveClientTestSuite) TestSharedSendAndDisconnectCharacteristic() {
	// GOAL: Verify one characteristic can fill the send and disconnect roles
	//
	// TEST SCENARIO: BrainAlive layout lists fe41 once → open succeeds, stop writes both tokens to fe41 as strings

	c, err := NewClient(s.Profile, s.Peripheral.Central, nil, testOptions(), s.Logger)
	s.Require().NoError(err)

	s.requireBenign(c.Open(context.Background()))
	s.Require().NoError(c.StartStream(context.Background()))
	s.Require().NoError(c.StopStream(context.Background()))

	writes := s.Peripheral.Writes()
	s.Require().Len(writes, 3)
	for _, w := range writes {
		s.Equal(s.Profile.Send, w.Char)
	}
	s.Equal([]string{"0x0a8000000d", "0x0a4000000d", " "}, s.Peripheral.WrittenTokens())
	s.NoError(c.Close(context.Background()))
}

func (s *BrainAliveClientTestSuite) requireBenign(err error) {
	s.Require().True(status.IsBenign(err), "unexpected failure %v", err)
}

func TestBrainAliveClientTestSuite(t *testing.T) {
	suite.Run(t, new(BrainAliveClientTestSuite))
}
