package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/matsen/plaindb/internal/schema"
	"github.com/matsen/plaindb/internal/store"
)

// MaxColumnWidth caps column widths in table output.
const MaxColumnWidth = 40

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitOnStoreError exits with the code matching err, if err is not nil.
func exitOnStoreError(err error) {
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// columns returns id first when present, then every other field of
// records, sorted.
func columns(records []store.Record) []string {
	seen := make(map[string]bool)
	hasID := false
	var rest []string
	for _, r := range records {
		for k := range r {
			if k == schema.IDField {
				hasID = true
				continue
			}
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	if hasID {
		return append([]string{schema.IDField}, rest...)
	}
	return rest
}

// formatValue renders a value for CSV and table cells.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := json.Marshal(store.Record{"v": v})
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	// Strip the {"v": ... } wrapper; Record encoding keeps floats as floats.
	s := string(data)
	return s[len(`{"v":`) : len(s)-1]
}

// writeJSONL writes records one per line.
func writeJSONL(w io.Writer, records []store.Record) error {
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV writes records as CSV with a header row.
func writeCSV(w io.Writer, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	cols := columns(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, record := range records {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = formatValue(record[col])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeTable writes records as a formatted table.
func writeTable(w io.Writer, records []store.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}
	cols := columns(records)

	// Calculate column widths
	widths := make(map[string]int)
	for _, col := range cols {
		widths[col] = len(col)
	}
	for _, record := range records {
		for _, col := range cols {
			if n := len(formatValue(record[col])); n > widths[col] {
				widths[col] = n
			}
		}
	}
	for col := range widths {
		if widths[col] > MaxColumnWidth {
			widths[col] = MaxColumnWidth
		}
	}

	var header []string
	for _, col := range cols {
		header = append(header, padRight(strings.ToUpper(col), widths[col]))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " "))

	for _, record := range records {
		var row []string
		for _, col := range cols {
			valStr := formatValue(record[col])
			if len(valStr) > widths[col] {
				valStr = valStr[:widths[col]-3] + "..."
			}
			row = append(row, padRight(valStr, widths[col]))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(row, "  "), " "))
	}

	fmt.Fprintf(w, "(%d rows)\n", len(records))
}

// padRight pads a string with spaces on the right.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatBytes formats a byte count in human-readable form.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// parseID parses a record id argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
