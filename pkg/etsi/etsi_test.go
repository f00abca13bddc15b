package etsi

import (
	"testing"
	"time"
)

func TestStationID(t *testing.T) {
	if got, want := StationID("1234"), uint32(0x03ac67); got != want {
		t.Fatalf("StationID(%q) = %#x, want %#x", "1234", got, want)
	}
}

func TestSIToETSILatitude(t *testing.T) {
	v := 43.635
	got := SIToETSI(&v, DeciMicroDegree, 900000001, nil, nil)
	if want := int64(436350000); got != want {
		t.Fatalf("SIToETSI(43.635) = %d, want %d", got, want)
	}
}

func TestSIToETSIUndef(t *testing.T) {
	got := SIToETSI(nil, DeciMicroDegree, 900000001, nil, nil)
	if want := int64(900000001); got != want {
		t.Fatalf("SIToETSI(nil) = %d, want %d", got, want)
	}
}

func TestETSIToSIRoundTrip(t *testing.T) {
	v := 43.635
	scaled := SIToETSI(&v, DeciMicroDegree, 900000001, nil, nil)
	back := ETSIToSI(scaled, DeciMicroDegree, 900000001, nil)
	if back == nil || *back != v {
		t.Fatalf("round trip = %v, want %v", back, v)
	}
}

func TestGenerationDeltaTime(t *testing.T) {
	clock := NewClock(NewFallbackTable(nil))
	// 2007-01-01T00:00:00Z is 3 years after the 2004-01-01 ETSI epoch;
	// a leap second was inserted 2006-01-01, so the TAI-UTC offset grew
	// from 32s (at the epoch) to 33s by this instant, adding 1s on top
	// of the naive 3-year UTC difference.
	ts := float64(utc(2007, 1, 1).Unix())
	ms := clock.UnixToETSIMillis(ts)
	if want := int64(94694401000); ms != want {
		t.Fatalf("UnixToETSIMillis(2007-01-01) = %d, want %d", ms, want)
	}
	gdt := clock.GenerationDeltaTime(ts)
	if want := uint16(94694401000 % 65536); gdt != want {
		t.Fatalf("GenerationDeltaTime = %d, want %d", gdt, want)
	}
}

func TestETSIMillisToUnixInverts(t *testing.T) {
	clock := NewClock(NewFallbackTable(nil))
	ts := float64(utc(2007, 6, 15).Unix())
	ms := clock.UnixToETSIMillis(ts)
	back := clock.ETSIMillisToUnix(ms)
	if back != ts {
		t.Fatalf("ETSIMillisToUnix(UnixToETSIMillis(%v)) = %v, want %v", ts, back, ts)
	}
}

func TestLeapSecondTableStaleCallback(t *testing.T) {
	var called bool
	table := NewFallbackTable(func(latest time.Time) { called = true })
	table.DTaiUTCFromUTC(utc(2030, 1, 1))
	if !called {
		t.Fatalf("expected onStale callback for an instant past the last known entry")
	}
}
