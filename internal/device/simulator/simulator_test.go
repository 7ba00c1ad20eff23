package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
	"github.com/stretchr/testify/suite"
)

type SimulatorTestSuite struct {
	suite.Suite
	headset *Headset
}

func (s *SimulatorTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	s.headset = New(catalog.Ganglion, Options{SampleInterval: 2 * time.Millisecond, Seed: 7}, logger)
}

func (s *SimulatorTestSuite) dial() *Connection {
	conn, err := s.headset.Dial(context.Background(), DefaultAddress)
	s.Require().NoError(err, "MUST connect to the simulated headset")
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn.(*Connection)
}

func (s *SimulatorTestSuite) resolve(conn *Connection) (receive, send device.Characteristic) {
	svcs, err := conn.DiscoverServices()
	s.Require().NoError(err)
	s.Require().Len(svcs, 1)

	chars, err := conn.DiscoverCharacteristics(svcs[0])
	s.Require().NoError(err)
	for _, ch := range chars {
		switch ch.UUID() {
		case catalog.Ganglion.Receive:
			receive = ch
		case catalog.Ganglion.Send:
			send = ch
		}
	}
	s.Require().NotNil(receive)
	s.Require().NotNil(send)
	return receive, send
}

func (s *SimulatorTestSuite) TestScanAdvertisesProfileName() {
	// GOAL: Verify the simulated advertisement matches the profile name rules
	//
	// TEST SCENARIO: scan briefly → at least one advertisement → name matches Ganglion

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var mu sync.Mutex
	var seen []device.Advertisement
	err := s.headset.Scan(ctx, false, func(adv device.Advertisement) {
		mu.Lock()
		seen = append(seen, adv)
		mu.Unlock()
	})
	s.ErrorIs(err, context.DeadlineExceeded)

	mu.Lock()
	defer mu.Unlock()
	s.Require().NotEmpty(seen, "MUST advertise at least once")
	s.True(catalog.Ganglion.MatchesName(seen[0].LocalName()))
	s.Equal(DefaultAddress, seen[0].Addr())
}

func (s *SimulatorTestSuite) TestDialWrongAddress() {
	_, err := s.headset.Dial(context.Background(), "11:22:33:44:55:66")
	var nf *device.NotFoundError
	s.ErrorAs(err, &nf)
	s.Equal(int64(1), s.headset.Dials())
}

func (s *SimulatorTestSuite) TestStreamsOnlyWhileStartedAndSubscribed() {
	// GOAL: Verify packets flow only after subscribe + start and stop after the stop token
	//
	// TEST SCENARIO: subscribe → start → packets of PacketLength → stop → no further packets

	conn := s.dial()
	receive, send := s.resolve(conn)

	packets := make(chan []byte, 1024)
	conn.SetNotificationHandler(receive, func(data []byte) {
		select {
		case packets <- data:
		default:
		}
	})
	s.Require().NoError(conn.WriteClientConfig(receive, device.NotifyConfig))

	s.Require().NoError(conn.WriteCharacteristic(send, []byte("b")))
	s.True(conn.Streaming())

	select {
	case p := <-packets:
		s.Len(p, catalog.Ganglion.PacketLength, "packets MUST have the profile length")
	case <-time.After(time.Second):
		s.FailNow("MUST receive packets after start")
	}

	s.Require().NoError(conn.WriteCharacteristic(send, []byte("s")))
	s.False(conn.Streaming(), "stop token MUST halt the feed")

	for len(packets) > 0 {
		<-packets
	}
	time.Sleep(20 * time.Millisecond)
	s.Empty(packets, "MUST NOT stream after stop")

	s.Equal([][]byte{[]byte("b"), []byte("s")}, conn.Writes())
}

func (s *SimulatorTestSuite) TestClientConfigRoundTrip() {
	conn := s.dial()
	receive, send := s.resolve(conn)

	cfg, err := conn.ReadClientConfig(receive)
	s.Require().NoError(err)
	s.False(cfg.Notifications)

	s.Require().NoError(conn.WriteClientConfig(receive, device.NotifyConfig))
	cfg, err = conn.ReadClientConfig(receive)
	s.Require().NoError(err)
	s.True(cfg.Notifications)

	s.ErrorIs(conn.WriteClientConfig(send, device.NotifyConfig), device.ErrWriteRejected, "send characteristic MUST NOT accept notifications")
}

func (s *SimulatorTestSuite) TestPairing() {
	ctx := context.Background()

	info, err := s.headset.PairingInfo(ctx, DefaultAddress)
	s.Require().NoError(err)
	s.Equal(device.PairingInfo{CanPair: true}, info)

	s.Require().NoError(s.headset.Pair(ctx, DefaultAddress))
	info, err = s.headset.PairingInfo(ctx, DefaultAddress)
	s.Require().NoError(err)
	s.Equal(device.PairingInfo{Paired: true}, info)

	s.Require().NoError(s.headset.Unpair(ctx, DefaultAddress))
	s.ErrorIs(s.headset.Unpair(ctx, DefaultAddress), device.ErrNotPaired)
}

func (s *SimulatorTestSuite) TestCloseDropsLink() {
	conn := s.dial()
	_, send := s.resolve(conn)

	s.Require().NoError(conn.Close())
	<-conn.Disconnected()

	s.ErrorIs(conn.WriteCharacteristic(send, []byte("b")), device.ErrNotConnected)

	_, err := s.headset.Dial(context.Background(), DefaultAddress)
	s.NoError(err, "a new session MUST be possible after close")
}

func TestSimulatorTestSuite(t *testing.T) {
	suite.Run(t, new(SimulatorTestSuite))
}

func TestBrainAliveSharedCharacteristic(t *testing.T) {
	h := New(catalog.BrainAlive, Options{}, nil)
	conn, err := h.Dial(context.Background(), DefaultAddress)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	svcs, _ := conn.DiscoverServices()
	chars, _ := conn.DiscoverCharacteristics(svcs[0])
	if len(chars) != 2 {
		t.Fatalf("send and disconnect MUST share one characteristic, got %d characteristics", len(chars))
	}
}
