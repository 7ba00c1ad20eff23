package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/srg/bioble/internal/device"
)

// Definition is the textual form of a headset model, validated by NewProfile.
type Definition struct {
	Model            string
	NamePrefix       string
	AltName          string
	Service          string
	Send             string
	Receive          string
	Disconnect       string
	SamplingRate     int
	PacketLength     int
	OperationTimeout time.Duration
	Encoding         Encoding
	Start            string
	Stop             string
	DisconnectToken  string
}

// Profile holds the immutable constants of one headset model.
type Profile struct {
	Model            string
	NamePrefix       string
	AltName          string
	Service          uuid.UUID
	Send             uuid.UUID
	Receive          uuid.UUID
	Disconnect       uuid.UUID
	SamplingRate     int
	PacketLength     int
	OperationTimeout time.Duration
	Encoding         Encoding
	Start            string
	Stop             string
	DisconnectToken  string
}

// NewProfile validates def and converts its identifiers into typed UUIDs.
func NewProfile(def Definition) (Profile, error) {
	if strings.TrimSpace(def.Model) == "" {
		return Profile{}, fmt.Errorf("profile model cannot be empty")
	}
	if def.NamePrefix == "" {
		return Profile{}, fmt.Errorf("profile %s: name prefix cannot be empty", def.Model)
	}
	if def.SamplingRate <= 0 {
		return Profile{}, fmt.Errorf("profile %s: sampling rate must be > 0", def.Model)
	}
	if def.PacketLength <= 0 {
		return Profile{}, fmt.Errorf("profile %s: packet length must be > 0", def.Model)
	}
	if def.OperationTimeout <= 0 {
		return Profile{}, fmt.Errorf("profile %s: operation timeout must be > 0", def.Model)
	}

	ids, err := device.ValidateUUID(def.Service, def.Send, def.Receive, def.Disconnect)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", def.Model, err)
	}

	for _, tok := range []struct{ role, value string }{
		{"start", def.Start},
		{"stop", def.Stop},
		{"disconnect", def.DisconnectToken},
	} {
		if err := def.Encoding.validateToken(tok.role, tok.value); err != nil {
			return Profile{}, fmt.Errorf("profile %s: %w", def.Model, err)
		}
	}

	return Profile{
		Model:            strings.ToLower(def.Model),
		NamePrefix:       def.NamePrefix,
		AltName:          def.AltName,
		Service:          ids[0],
		Send:             ids[1],
		Receive:          ids[2],
		Disconnect:       ids[3],
		SamplingRate:     def.SamplingRate,
		PacketLength:     def.PacketLength,
		OperationTimeout: def.OperationTimeout,
		Encoding:         def.Encoding,
		Start:            def.Start,
		Stop:             def.Stop,
		DisconnectToken:  def.DisconnectToken,
	}, nil
}

// MustProfile is like NewProfile but panics on an invalid definition.
func MustProfile(def Definition) Profile {
	p, err := NewProfile(def)
	if err != nil {
		panic(err)
	}
	return p
}

// MatchesName reports whether an advertised name belongs to this model: it
// contains the name prefix, or equals the alternate name. Both comparisons
// ignore case; an empty alternate name never matches.
func (p Profile) MatchesName(name string) bool {
	if name == "" {
		return false
	}
	if device.ContainsFold(name, p.NamePrefix) {
		return true
	}
	return p.AltName != "" && strings.EqualFold(name, p.AltName)
}

// SamplePeriod is the nominal interval between two packets.
func (p Profile) SamplePeriod() time.Duration {
	return time.Second / time.Duration(p.SamplingRate)
}

// Encode encodes a command with the profile encoding.
func (p Profile) Encode(command string) ([][]byte, error) {
	return p.Encoding.Encode(command)
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (service %s, %d Hz, %d-byte packets)",
		p.Model, device.ShortUUID(p.Service), p.SamplingRate, p.PacketLength)
}
