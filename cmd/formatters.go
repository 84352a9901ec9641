package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"balgil/collector"
)

// renderSyncReport prints a sync outcome for humans
func renderSyncReport(w io.Writer, report collector.SyncReport, err error, elapsed time.Duration) {
	headerColor.Fprintln(w, "ROUTE SYNC")
	headerColor.Fprintln(w, strings.Repeat("=", 40))

	switch {
	case err != nil:
		errorColor.Fprintf(w, "✗ Sync failed: %v\n", err)
	case report.Skipped != "":
		warningColor.Fprintf(w, "⚠ Sync skipped (%s)\n", report.Skipped)
	case report.Uploaded == 0:
		infoColor.Fprintln(w, "Nothing to upload")
	default:
		successColor.Fprintf(w, "✓ Uploaded %d route(s)\n", report.Uploaded)
	}

	printField(w, "Uploaded", fmt.Sprintf("%d", report.Uploaded))
	printField(w, "Pending", fmt.Sprintf("%d", report.Pending))
	printField(w, "Duration", formatDuration(elapsed))
}

// printField prints a key-value field
func printField(w io.Writer, key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Fprintf(w, "  %-12s %s\n", key+":", value)
}

// formatDuration formats a duration
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
