// Package clock provides the single time source the core flows timestamps
// through, so tests can substitute a fixed instant at construction.
package clock

import (
	"time"

	"github.com/relvacode/iso8601"
)

// ISOLayout is the external-interface timestamp format: ISO-8601 UTC,
// second precision, zero-padded so lexical and chronological order agree.
const ISOLayout = "2006-01-02 15:04:05"

// Clock is injected at construction into any component that needs "now".
type Clock interface {
	Now() time.Time
}

// Real returns the system clock, in UTC.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Fixed returns a Clock that always reports t, for deterministic tests.
func Fixed(t time.Time) Clock { return fixedClock{t: t.UTC()} }

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

// NowString formats c.Now() in the external-interface ISO layout.
func NowString(c Clock) string {
	return c.Now().Format(ISOLayout)
}

// CompactLayout is the filename-safe timestamp format backup archives are
// stamped with.
const CompactLayout = "20060102-150405"

// NowCompact formats c.Now() in CompactLayout.
func NowCompact(c Clock) string {
	return c.Now().Format(CompactLayout)
}

// FormatString formats t in the external-interface ISO layout.
func FormatString(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseString parses the external-interface ISO layout back into a time.Time.
func ParseString(s string) (time.Time, error) {
	return time.Parse(ISOLayout, s)
}

// NormalizeExternal re-renders a recommendation time that crossed a
// scheduler plugin boundary into the fixed-width external format. A
// scheduler is only required to return an ISO-8601 instant, not the exact
// zero-padded layout the catalog compares lexically, so this accepts any
// ISO-8601 form before re-formatting.
func NormalizeExternal(s string) (string, error) {
	if _, err := time.Parse(ISOLayout, s); err == nil {
		return s, nil
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return "", err
	}
	return FormatString(t), nil
}
