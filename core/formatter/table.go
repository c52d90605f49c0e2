package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// TableFormatter formats Tabular values as aligned columns.
type TableFormatter struct {
	// MaxWidth truncates cells longer than this many runes. Zero disables truncation.
	MaxWidth int
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{MaxWidth: 50}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Description returns the formatter description.
func (f *TableFormatter) Description() string {
	return "Human-readable table format"
}

// Format writes v as a table. v must implement Tabular.
func (f *TableFormatter) Format(w io.Writer, v any) error {
	t, ok := v.(Tabular)
	if !ok {
		return fmt.Errorf("table format not supported for %T", v)
	}

	rows := t.Rows()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := t.Header()
	labels := make([]string, len(header))
	for i, h := range header {
		labels[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(tw, strings.Join(labels, "\t"))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = f.truncate(cell)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	return tw.Flush()
}

func (f *TableFormatter) truncate(s string) string {
	r := []rune(s)
	if f.MaxWidth <= 3 || len(r) <= f.MaxWidth {
		return s
	}
	return string(r[:f.MaxWidth-3]) + "..."
}

// Value formats a value for a table cell.
func Value(val any) string {
	if val == nil {
		return "-"
	}

	switch v := val.(type) {
	case string:
		if v == "" {
			return "-"
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case int:
		return fmt.Sprintf("%d", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case []string:
		if len(v) == 0 {
			return "-"
		}
		return strings.Join(v, ",")
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func init() {
	if err := Register(NewTableFormatter()); err != nil {
		fmt.Printf("failed to register table formatter: %v\n", err)
	}
}
