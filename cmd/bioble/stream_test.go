//go:build test

package main

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type StreamTestSuite struct {
	CommandTestSuite
}

func lines(output string) []string {
	return strings.Split(strings.TrimRight(output, "\n"), "\n")
}

func (s *StreamTestSuite) TestStreamJSONCount() {
	// GOAL: Verify --count stops after exactly N samples in JSON line form
	//
	// TEST SCENARIO: Stream 5 samples as JSON → 5 lines → increasing seq, 20-byte payloads → session stopped and closed

	output, err := s.ExecuteCommand("stream", "--count", "5", "--format", "json")
	s.Require().NoError(err, "stream MUST succeed")

	got := lines(output)
	s.Require().Len(got, 5, "stream MUST stop after --count samples")

	var last uint64
	for _, line := range got {
		var rec sampleRecord
		s.Require().NoError(json.Unmarshal([]byte(line), &rec), "every line MUST be a JSON object")
		s.Assert().Greater(rec.Seq, last, "sequence numbers MUST increase")
		s.Assert().Len(rec.Data, 40, "payload MUST be 20 bytes of hex")
		s.Assert().NotZero(rec.Timestamp, "samples MUST carry an arrival time")
		last = rec.Seq
	}

	s.Assert().Contains(s.Stderr, "stop: ok", "stop outcome MUST be reported")
	s.Assert().Contains(s.Stderr, "samples: ", "queue summary MUST be reported")
	s.Assert().False(s.Sim.Active().Streaming(), "headset MUST NOT stream after the command")
	s.Assert().Equal(int64(1), s.Sim.Dials(), "exactly one connection MUST be dialled")
}

func (s *StreamTestSuite) TestStreamHexDuration() {
	// GOAL: Verify --duration bounds the stream and hex lines are well formed
	//
	// TEST SCENARIO: Stream for 100ms in hex → at least one "<seq> <ts> <hex>" line

	output, err := s.ExecuteCommand("stream", "--duration", "100ms")
	s.Require().NoError(err, "stream MUST succeed")

	pattern := regexp.MustCompile(`^\d+ \d+ [0-9a-f]{40}$`)
	got := lines(output)
	s.Require().NotEmpty(got)
	for _, line := range got {
		s.Assert().Regexp(pattern, line, "hex line MUST have seq, timestamp and payload")
	}
}

func (s *StreamTestSuite) TestStreamStopSequence() {
	// GOAL: Verify the start token, the stop token and the legacy disconnect token reach the headset
	//
	// TEST SCENARIO: Ganglion stream → writes b, s, " " on stop → Close repeats the stop sequence

	_, err := s.ExecuteCommand("stream", "--count", "1")
	s.Require().NoError(err, "stream MUST succeed")

	s.Assert().Equal([]string{"b", "s", " ", "s", " "}, s.writtenTokens())
}

func (s *StreamTestSuite) TestStreamNoLegacyStop() {
	// GOAL: Verify --no-legacy-stop suppresses the disconnect token
	//
	// TEST SCENARIO: Stream with --no-legacy-stop → only b and s tokens are written

	_, err := s.ExecuteCommand("stream", "--count", "1", "--no-legacy-stop")
	s.Require().NoError(err, "stream MUST succeed")

	s.Assert().Equal([]string{"b", "s", "s"}, s.writtenTokens())
}

func (s *StreamTestSuite) TestStreamBrainAlive() {
	// GOAL: Verify string-encoded models send whole tokens
	//
	// TEST SCENARIO: BrainAlive stream → start and stop tokens written as single payloads

	_, err := s.ExecuteCommand("stream", "--model", "brainalive", "--count", "2")
	s.Require().NoError(err, "stream MUST succeed")

	s.Assert().Equal([]string{"0x0a8000000d", "0x0a4000000d", " ", "0x0a4000000d", " "}, s.writtenTokens())
}

func (s *StreamTestSuite) TestStreamUnpairsOnClose() {
	// GOAL: Verify closing the session removes the pairing made by open
	//
	// TEST SCENARIO: Unpaired simulator → stream pairs on open → unpairs on close

	_, err := s.ExecuteCommand("stream", "--count", "1")
	s.Require().NoError(err, "stream MUST succeed")

	info, err := s.Sim.PairingInfo(s.T().Context(), s.Sim.Address())
	s.Require().NoError(err)
	s.Assert().False(info.Paired, "pairing MUST be removed on close")
}

func (s *StreamTestSuite) TestStreamKeepPairing() {
	// GOAL: Verify --keep-pairing leaves the pairing made by open in place

	_, err := s.ExecuteCommand("stream", "--count", "1", "--keep-pairing")
	s.Require().NoError(err, "stream MUST succeed")

	info, err := s.Sim.PairingInfo(s.T().Context(), s.Sim.Address())
	s.Require().NoError(err)
	s.Assert().True(info.Paired, "pairing MUST survive close")
}

func (s *StreamTestSuite) TestStreamNotFound() {
	// GOAL: Verify a missing headset fails with the NotFound status
	//
	// TEST SCENARIO: Address filter matches nothing → error carries not_found → nothing dialled

	_, err := s.ExecuteCommand("stream", "--count", "1", "--address", "de:ad:be:ef")
	s.Require().Error(err, "stream MUST fail without a headset")

	s.Assert().Contains(FormatUserError(err), "[status not_found=1]")
	s.Assert().Equal(int64(0), s.Sim.Dials(), "nothing MUST be dialled")
}

func (s *StreamTestSuite) TestStreamInvalidFormat() {
	// GOAL: Verify unknown output formats are rejected before the radio is touched
	//
	// TEST SCENARIO: --format csv → configuration validation fails → no simulator created

	_, err := s.ExecuteCommand("stream", "--format", "csv")
	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "output_format")
	s.Assert().Nil(s.Sim)
}

func TestStreamTestSuite(t *testing.T) {
	suite.Run(t, new(StreamTestSuite))
}
