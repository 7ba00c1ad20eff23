package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/bioble/internal/catalog"
	"github.com/srg/bioble/internal/device"
)

// profilesCmd lists the supported headset models
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List supported headset models",
	Long: `List the headset models this client knows about, with their advertised
name rules, GATT identifiers, sampling rate and command tokens.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

var profilesFormat string

func init() {
	profilesCmd.Flags().StringVarP(&profilesFormat, "format", "f", "table", "Output format (table, json)")
}

// profileRecord is the JSON form of a catalog profile.
type profileRecord struct {
	Model            string `json:"model"`
	NamePrefix       string `json:"name_prefix"`
	AltName          string `json:"alt_name,omitempty"`
	Service          string `json:"service"`
	Send             string `json:"send"`
	Receive          string `json:"receive"`
	Disconnect       string `json:"disconnect"`
	SamplingRate     int    `json:"sampling_rate"`
	PacketLength     int    `json:"packet_length"`
	OperationTimeout string `json:"operation_timeout"`
	Encoding         string `json:"encoding"`
	Start            string `json:"start"`
	Stop             string `json:"stop"`
	DisconnectToken  string `json:"disconnect_token"`
}

func newProfileRecord(p catalog.Profile) profileRecord {
	return profileRecord{
		Model:            p.Model,
		NamePrefix:       p.NamePrefix,
		AltName:          p.AltName,
		Service:          device.ShortUUID(p.Service),
		Send:             device.ShortUUID(p.Send),
		Receive:          device.ShortUUID(p.Receive),
		Disconnect:       device.ShortUUID(p.Disconnect),
		SamplingRate:     p.SamplingRate,
		PacketLength:     p.PacketLength,
		OperationTimeout: p.OperationTimeout.String(),
		Encoding:         p.Encoding.String(),
		Start:            p.Start,
		Stop:             p.Stop,
		DisconnectToken:  p.DisconnectToken,
	}
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(profilesFormat, []string{"table", "json"}); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	profiles := catalog.Default().Profiles()
	out := cmd.OutOrStdout()

	if profilesFormat == "json" {
		records := make([]profileRecord, 0, len(profiles))
		for _, p := range profiles {
			records = append(records, newProfileRecord(p))
		}
		return writeJSON(out, records)
	}

	w := newTable(out)
	fmt.Fprintln(w, "MODEL\tNAME\tSERVICE\tRATE\tPACKET\tTIMEOUT\tENCODING")
	for _, p := range profiles {
		name := p.NamePrefix + "*"
		if p.AltName != "" {
			name += ", " + p.AltName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d Hz\t%d B\t%s\t%s\n",
			p.Model, name, device.ShortUUID(p.Service), p.SamplingRate, p.PacketLength,
			p.OperationTimeout, p.Encoding)
	}
	return w.Flush()
}
