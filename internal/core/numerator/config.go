// Package numerator provides domain contracts for invoice and lot numbering.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResetPeriod controls when a counter starts over at 1.
type ResetPeriod string

const (
	ResetYearly ResetPeriod = "year"
	ResetNever  ResetPeriod = "never"
)

// Config describes one number series, e.g. MS2025R07 or LOT-07.
// Rendered as Prefix + [YYYY] + Infix + zero-padded sequence.
type Config struct {
	Prefix      string
	IncludeYear bool
	Infix       string
	// PadWidth is the minimum width of the sequence (default 2); longer values are not truncated.
	PadWidth    int
	ResetPeriod ResetPeriod
}

// Key is the counter row key in sys_sequences for the given period.
func (c Config) Key(period time.Time) string {
	if c.ResetPeriod == ResetYearly {
		return fmt.Sprintf("%s%s_%04d", c.Prefix, c.Infix, period.Year())
	}
	return c.Prefix + c.Infix
}

// Format renders a sequence value.
func (c Config) Format(period time.Time, seq int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = 2
	}
	var b strings.Builder
	b.WriteString(c.Prefix)
	if c.IncludeYear {
		fmt.Fprintf(&b, "%04d", period.Year())
	}
	b.WriteString(c.Infix)
	fmt.Fprintf(&b, "%0*d", width, seq)
	return b.String()
}

// Parse extracts the period year (0 when the series has no year) and the sequence
// from a formatted number. ok is false when the number does not belong to the series.
func (c Config) Parse(formatted string) (year int, seq int64, ok bool) {
	rest, found := strings.CutPrefix(formatted, c.Prefix)
	if !found {
		return 0, 0, false
	}
	if c.IncludeYear {
		if len(rest) < 4 {
			return 0, 0, false
		}
		y, err := strconv.Atoi(rest[:4])
		if err != nil {
			return 0, 0, false
		}
		year, rest = y, rest[4:]
	}
	rest, found = strings.CutPrefix(rest, c.Infix)
	if !found || rest == "" {
		return 0, 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, 0, false
	}
	return year, n, true
}
