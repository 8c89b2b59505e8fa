package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Format selects how command results are written
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml in any case; empty means table
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Write encodes v in the given format. table is called for FormatTable only.
// YAML keys follow the JSON field names of v.
func Write(w io.Writer, format Format, v interface{}, table func() string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, table())
		return err
	}
}

func toGeneric(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return out, nil
}

var moneyPrinter = message.NewPrinter(language.English)

// Money renders a value with two decimals and thousands separators, e.g. 1,234.50
func Money(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

// Percent renders a rate that is already a percentage, e.g. 42.5%
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// ShortID returns the first eight characters of an identifier
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Truncate cuts s to max visible runes, ending with an ellipsis when cut
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
