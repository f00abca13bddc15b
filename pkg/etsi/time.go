package etsi

import (
	"time"
)

// epochUTC is the ETSI epoch expressed as a calendar instant: the ETSI
// epoch is defined as 2004-01-01T00:00:00 TAI, but the leap-second table
// is indexed by UTC instants, so we resolve the epoch's own TAI-UTC
// offset once (32s, from the 1999-01-01 table entry in effect throughout
// 2004) and hold both the calendar instant and that offset.
var epochUTC = utc(2004, 1, 1)

// Clock converts between UNIX time and ETSI time, accounting for the
// TAI-UTC offset via an injected leap-second table so that the
// generation_delta_time of a message reflects the true elapsed TAI
// milliseconds since the epoch, not a naive UTC difference.
type Clock struct {
	leap        *LeapSecondTable
	epochOffset int64
}

// NewClock builds a Clock backed by the given leap-second table.
func NewClock(leap *LeapSecondTable) *Clock {
	return &Clock{leap: leap, epochOffset: leap.DTaiUTCFromUTC(epochUTC)}
}

// UnixToETSIMillis converts a UNIX timestamp (seconds since 1970, with
// sub-second precision) to the number of TAI milliseconds elapsed since
// the ETSI epoch. Dates before the epoch yield a negative value.
func (c *Clock) UnixToETSIMillis(unixSeconds float64) int64 {
	t := time.Unix(int64(unixSeconds), 0).UTC()
	offset := c.leap.DTaiUTCFromUTC(t)
	deltaSeconds := (unixSeconds - float64(epochUTC.Unix())) + float64(offset-c.epochOffset)
	return int64(round(deltaSeconds * 1000))
}

// ETSIMillisToUnix converts ETSI milliseconds-since-epoch back to a UNIX
// timestamp. The TAI-UTC offset applicable at the target instant is
// resolved by a single fixed-point correction from an initial
// offset-free guess, exact except within the same second as a
// leap-second transition.
func (c *Clock) ETSIMillisToUnix(etsiMillis int64) float64 {
	base := float64(epochUTC.Unix()) + float64(etsiMillis)/1000
	guess := base - float64(c.epochOffset)
	offset := c.leap.DTaiUTCFromUTC(time.Unix(int64(guess), 0).UTC())
	return base + float64(c.epochOffset) - float64(offset)
}

// GenerationDeltaTime returns UnixToETSIMillis(unixSeconds) mod 65536, the
// 16-bit rolling counter carried in CAM/DENM/CPM headers.
func (c *Clock) GenerationDeltaTime(unixSeconds float64) uint16 {
	ms := c.UnixToETSIMillis(unixSeconds)
	m := ms % 65536
	if m < 0 {
		m += 65536
	}
	return uint16(m)
}

func round(f float64) float64 {
	if f < 0 {
		return -roundPositive(-f)
	}
	return roundPositive(f)
}

func roundPositive(f float64) float64 {
	return float64(int64(f + 0.5))
}
