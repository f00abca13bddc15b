package etsi

import "time"

// LeapSecond records a TAI-UTC offset that took effect at a given UTC
// instant, expressed as whole seconds: TAI = UTC + DTaiUTC from that
// instant until the next entry's instant.
type LeapSecond struct {
	UTC     time.Time
	DTaiUTC int64
}

// fallbackLeapSeconds is the hardcoded table used when no OS tzdata
// leap-seconds.list is available (air-gapped deployments). It mirrors the
// historical IERS bulletin entries through 2017-01-01, after which no
// further leap second has been announced as of this writing.
var fallbackLeapSeconds = []LeapSecond{
	{utc(1972, 1, 1), 10},
	{utc(1972, 7, 1), 11},
	{utc(1973, 1, 1), 12},
	{utc(1974, 1, 1), 13},
	{utc(1975, 1, 1), 14},
	{utc(1976, 1, 1), 15},
	{utc(1977, 1, 1), 16},
	{utc(1978, 1, 1), 17},
	{utc(1979, 1, 1), 18},
	{utc(1980, 1, 1), 19},
	{utc(1981, 7, 1), 20},
	{utc(1982, 7, 1), 21},
	{utc(1983, 7, 1), 22},
	{utc(1985, 7, 1), 23},
	{utc(1988, 1, 1), 24},
	{utc(1990, 1, 1), 25},
	{utc(1991, 1, 1), 26},
	{utc(1992, 7, 1), 27},
	{utc(1993, 7, 1), 28},
	{utc(1994, 7, 1), 29},
	{utc(1996, 1, 1), 30},
	{utc(1997, 7, 1), 31},
	{utc(1999, 1, 1), 32},
	{utc(2006, 1, 1), 33},
	{utc(2009, 1, 1), 34},
	{utc(2012, 7, 1), 35},
	{utc(2015, 7, 1), 36},
	{utc(2017, 1, 1), 37},
}

func utc(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LeapSecondTable supplies the TAI-UTC offset for a given instant.
// Implementers may load this from the OS tzdata leap-seconds.list file;
// NewFallbackTable below is always available and never fails, per the
// requirement that expiry of the fallback must not crash the process.
type LeapSecondTable struct {
	entries []LeapSecond
	onStale func(latest time.Time)
}

// NewFallbackTable builds a table from the hardcoded historical entries.
// onStale, if non-nil, is invoked (once per lookup past the last known
// entry) so the caller can log a warning instead of crashing; lookups
// past the last entry still succeed, using the last known offset.
func NewFallbackTable(onStale func(latest time.Time)) *LeapSecondTable {
	return &LeapSecondTable{entries: fallbackLeapSeconds, onStale: onStale}
}

// DTaiUTCFromUTC returns the TAI-UTC offset, in whole seconds, applicable
// at the given UTC instant: TAI = UTC + offset.
func (t *LeapSecondTable) DTaiUTCFromUTC(instant time.Time) int64 {
	if len(t.entries) == 0 {
		return 0
	}
	if instant.Before(t.entries[0].UTC) {
		// Before any known leap second: treat as the earliest known offset
		// rather than failing construction of a timestamp.
		return t.entries[0].DTaiUTC
	}
	offset := t.entries[0].DTaiUTC
	for _, e := range t.entries {
		if !instant.Before(e.UTC) {
			offset = e.DTaiUTC
		}
	}
	last := t.entries[len(t.entries)-1]
	if !instant.Before(last.UTC) && t.onStale != nil {
		t.onStale(last.UTC)
	}
	return offset
}
