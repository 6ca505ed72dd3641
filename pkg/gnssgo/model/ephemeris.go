package model

import "math"

// EphemerisXmit holds one satellite's broadcast ephemeris, as decoded from
// three matching navigation subframes or an RTCM ephemeris message.
//
// Lifecycle: created uninitialized via NewEphemerisXmit (Iode = -1,
// MaxTime < MinTime, SvAccuracy = +Inf); mutated only through the ephemeris
// codec's DecodeSubframes; never freed during a session.
type EphemerisXmit struct {
	MinTime, MaxTime Time

	Week int // GPS week number as broadcast, uncorrected for any rollover
	Iode int // Issue of Data, Ephemeris
	Iodc int // Issue of Data, Clock

	Toc                Time
	Af0, Af1, Af2      float64

	Toe                                    Time
	SqrtA, Ecc, M0, Omega, Omega0, I0      float64
	DeltaN, OmegaDot, IDOT                 float64
	Cuc, Cus, Crc, Crs, Cic, Cis           float64

	Tgd        float64
	Health     int
	SvAccuracy float64
	CodeOnL2   int
	L2PFlag    int
}

// NewEphemerisXmit returns an ephemeris record in its uninitialized state.
func NewEphemerisXmit() *EphemerisXmit {
	return &EphemerisXmit{
		Iode:       -1,
		Iodc:       -1,
		MinTime:    0,
		MaxTime:    -1,
		SvAccuracy: math.Inf(1),
	}
}

// Valid reports whether t falls inside this ephemeris' validity window.
func (e *EphemerisXmit) Valid(t Time) bool {
	return e.Iode >= 0 && t >= e.MinTime && t <= e.MaxTime
}
