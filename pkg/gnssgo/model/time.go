// Package model holds the data types shared across the codec, driver and
// transport layers: GPS time, satellite identity, per-epoch observations,
// broadcast ephemeris, and station attributes.
package model

import "time"

// SecondsPerWeek is the number of seconds in one GPS week.
const SecondsPerWeek = 604800

// gpsEpochUnix is the Unix timestamp of the GPS epoch, 1980-01-06T00:00:00Z.
// Matches the GPS_EPOCH constant used for the same purpose in the gtime
// package this type supersedes.
const gpsEpochUnix = 315964800

// Time is a count of nanoseconds since the GPS epoch. Ordering and
// subtraction are exact integer operations.
type Time int64

// Epoch2GpsTime converts a calendar time to GPS Time.
func Epoch2GpsTime(t time.Time) Time {
	return Time(t.UnixNano() - gpsEpochUnix*int64(time.Second))
}

// ToTime converts GPS Time back to a calendar time.Time (UTC), ignoring
// leap-second offset accumulated since the epoch — consistent with the
// teacher's own simplified Gtime conversions.
func (t Time) ToTime() time.Time {
	return time.Unix(0, int64(t)+gpsEpochUnix*int64(time.Second)).UTC()
}

// Sub returns t-u as a signed duration in nanoseconds.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(t - u)
}

// Add returns t+d.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d)
}

// Week returns the GPS week number at time t.
func (t Time) Week() int {
	secs := int64(t) / int64(time.Second)
	return int(secs / SecondsPerWeek)
}

// Tow returns the time-of-week in seconds at time t.
func (t Time) Tow() float64 {
	secs := float64(int64(t)) / float64(time.Second)
	week := float64(t.Week())
	return secs - week*SecondsPerWeek
}

// TowMillis returns the time-of-week in whole milliseconds, rounded, as used
// by the RTCM 1002 header field.
func (t Time) TowMillis() uint32 {
	ms := t.Tow()*1000 + 0.5
	return uint32(ms)
}
