package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

func formatRoutes(routes []routeView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(routes, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal routes to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatRoutesTable(routes), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatRoutesTable(routes []routeView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEST\tLEN\tIFACE\tNEXTHOP\tMETRIC")

	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\n", r.Addr, r.Len, r.IfIndex, r.NextHop, r.Metric)
	}

	_ = w.Flush()
	return buf.String()
}

func formatStats(s statsView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal stats to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Total Routes:\t%d\n", s.RouteCount)
		fmt.Fprintf(w, "Direct:\t%d\n", s.DirectCount)
		fmt.Fprintf(w, "Learned:\t%d\n", s.LearnedCount)
		fmt.Fprintf(w, "Poisoned:\t%d\n", s.PoisonedCount)
		_ = w.Flush()
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}
