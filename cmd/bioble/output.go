package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/srg/bioble/pkg/status"
)

// validateFormat rejects formats outside valid.
func validateFormat(format string, valid []string) error {
	if !slices.Contains(valid, format) {
		return fmt.Errorf("invalid format '%s': must be one of %v", format, valid)
	}
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// statusColor paints OK green, benign outcomes yellow and failures red.
// fatih/color disables itself when stdout is not a terminal.
func statusColor(code status.Code) *color.Color {
	switch {
	case code == status.OK:
		return color.New(color.FgGreen)
	case code.Benign() || code == status.NotPaired:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// printStatus writes "<label>: <status name>" for err.
func printStatus(w io.Writer, label string, err error) {
	code := status.CodeOf(err)
	fmt.Fprintf(w, "%s: %s\n", label, statusColor(code).Sprint(code.String()))
}
