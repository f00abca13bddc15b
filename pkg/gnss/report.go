// Package gnss models a single positioning fix and a small TCP client
// that consumes them from a gpsd-compatible daemon.
package gnss

import (
	"fmt"
	"math"
	"time"
)

// Report is an immutable GNSS fix. All fields are in SI units and may be
// zero-value-absent (represented by a nil pointer) except Timestamp,
// which is always set to the time the Report was constructed.
//
// Degree and radian pairs (Latitude/LatitudeRad, and so on) are kept in
// sync by New: callers supply one representation per field, never both,
// and New derives the other.
type Report struct {
	Timestamp time.Time

	Time *float64

	Latitude    *float64
	LatitudeRad *float64

	Longitude    *float64
	LongitudeRad *float64

	Altitude         *float64
	Speed            *float64
	Acceleration     *float64
	Track            *float64
	HorizontalError  *float64
	AltitudeError    *float64
	TrueHeading      *float64
	TrueHeadingRad   *float64
	MagneticHeading  *float64
	MagneticHeadingRad *float64
}

// Params supplies the fields accepted by New. Exactly one of a degree
// field and its radian counterpart may be set per measurement; setting
// both is an error.
type Params struct {
	Time *float64

	Latitude    *float64
	LatitudeRad *float64

	Longitude    *float64
	LongitudeRad *float64

	Altitude           *float64
	Speed              *float64
	Acceleration       *float64
	Track              *float64
	HorizontalError    *float64
	AltitudeError      *float64
	TrueHeading        *float64
	TrueHeadingRad     *float64
	MagneticHeading    *float64
	MagneticHeadingRad *float64
}

type angleRange struct {
	minInclusive, maxInclusive *float64
	minExclusive, maxExclusive *float64
}

func f(v float64) *float64 { return &v }

var ranges = map[string]angleRange{
	"latitude":         {minInclusive: f(-90.0), maxInclusive: f(90.0)},
	"longitude":        {minExclusive: f(-180.0), maxInclusive: f(180.0)},
	"true_heading":     {minExclusive: f(-180.0), maxExclusive: f(360.0)},
	"magnetic_heading": {minExclusive: f(-180.0), maxInclusive: f(180.0)},
}

func validate(name string, deg float64) error {
	r := ranges[name]
	if r.minInclusive != nil && deg < *r.minInclusive {
		return fmt.Errorf("gnss: %s %v is out of range [%v, ...]", name, deg, *r.minInclusive)
	}
	if r.minExclusive != nil && deg <= *r.minExclusive {
		return fmt.Errorf("gnss: %s %v is out of range ]%v, ...]", name, deg, *r.minExclusive)
	}
	if r.maxInclusive != nil && deg > *r.maxInclusive {
		return fmt.Errorf("gnss: %s %v is out of range [..., %v]", name, deg, *r.maxInclusive)
	}
	if r.maxExclusive != nil && deg >= *r.maxExclusive {
		return fmt.Errorf("gnss: %s %v is out of range [..., %v[", name, deg, *r.maxExclusive)
	}
	return nil
}

// reconcile validates and cross-derives a degree/radian pair, returning
// the degree value (possibly derived from the radian one) or an error if
// both, or an out-of-range value, were supplied.
func reconcile(name string, deg, rad *float64) (*float64, *float64, error) {
	if deg != nil && rad != nil {
		return nil, nil, fmt.Errorf("gnss: only one of %s or %s_r can be set", name, name)
	}
	switch {
	case deg != nil:
		if err := validate(name, *deg); err != nil {
			return nil, nil, err
		}
		r := *deg * math.Pi / 180
		return deg, &r, nil
	case rad != nil:
		d := *rad * 180 / math.Pi
		if err := validate(name, d); err != nil {
			return nil, nil, err
		}
		return &d, rad, nil
	default:
		return nil, nil, nil
	}
}

// New builds a Report, deriving the missing half of any degree/radian
// pair and validating every angle is within its ETSI-meaningful range.
func New(p Params) (*Report, error) {
	rpt := &Report{
		Timestamp:       time.Now(),
		Time:            p.Time,
		Altitude:        p.Altitude,
		Speed:           p.Speed,
		Acceleration:    p.Acceleration,
		Track:           p.Track,
		HorizontalError: p.HorizontalError,
		AltitudeError:   p.AltitudeError,
	}

	var err error
	if rpt.Latitude, rpt.LatitudeRad, err = reconcile("latitude", p.Latitude, p.LatitudeRad); err != nil {
		return nil, err
	}
	if rpt.Longitude, rpt.LongitudeRad, err = reconcile("longitude", p.Longitude, p.LongitudeRad); err != nil {
		return nil, err
	}
	if rpt.TrueHeading, rpt.TrueHeadingRad, err = reconcile("true_heading", p.TrueHeading, p.TrueHeadingRad); err != nil {
		return nil, err
	}
	if rpt.MagneticHeading, rpt.MagneticHeadingRad, err = reconcile("magnetic_heading", p.MagneticHeading, p.MagneticHeadingRad); err != nil {
		return nil, err
	}
	return rpt, nil
}

// Stale reports whether this fix is older than maxAge relative to now.
func (r *Report) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.Timestamp) > maxAge
}
