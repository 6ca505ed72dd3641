package station

import (
	"fmt"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/navframe"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/rtcm"
)

// ephemerisInterval mirrors the station-reference cadence: once a
// satellite's ephemeris is cached, its RTCM record repeats once a minute.
// The validity window is not checked: a cached record keeps repeating until
// a newer set of navigation words for that satellite replaces it.
const ephemerisInterval = 60 * 1e9 // 60s, in nanoseconds

// ephemerisTracker assembles parity-checked navigation words into cached
// EphemerisXmit records, one per satellite, and schedules when each is
// next due on the wire: the Go-side equivalent of the original station
// driver's per-satellite EphemerisTime deadline array.
type ephemerisTracker struct {
	cache   [model.MaxSats]*model.EphemerisXmit
	dueTime [model.MaxSats]model.Time
}

func newEphemerisTracker() *ephemerisTracker {
	const negInf = model.Time(-1 << 62)
	t := &ephemerisTracker{}
	for i := range t.dueTime {
		t.dueTime[i] = negInf
	}
	return t
}

// ingest checks parity on words and, on success, decodes them into svid's
// cached ephemeris. A receiver only ever delivers a complete set of three
// parity-protected ten-word subframes for one satellite per epoch; a bad
// parity bit is a Protocol error (ends the session), while a word count
// other than 30 (three ten-word subframes), or an iode mismatch across the
// three subframes, is a FrameInconsistency (logged by the caller, the
// update discarded, the session continues).
func (t *ephemerisTracker) ingest(words [][]byte, svid int) error {
	idx, err := model.SvidToIndex(svid)
	if err != nil {
		return errs.New(errs.FrameInconsistency, "ephemeris: ingest words", err)
	}
	if len(words) != 30 {
		return errs.New(errs.FrameInconsistency, "ephemeris: ingest words",
			fmt.Errorf("expected 30 navigation words (three subframes), got %d", len(words)))
	}

	subframes := make([]*navframe.Frame, 3)
	for s := 0; s < 3; s++ {
		f, err := navframe.NewFrame(10)
		if err != nil {
			return err
		}
		d29, d30 := false, false
		for w := 0; w < 10; w++ {
			raw := wordFromBytes(words[s*10+w])
			if !navframe.CheckParity(raw, d29, d30) {
				return errs.New(errs.Protocol, "ephemeris: check word parity",
					fmt.Errorf("subframe %d word %d failed parity", s+1, w+1))
			}
			data := navframe.StripParity(raw, d30)
			if err := f.PutField(w+1, 1, 24, data); err != nil {
				return err
			}
			d29, d30 = navframe.D29D30(raw)
		}
		subframes[s] = f
	}

	eph := model.NewEphemerisXmit()
	if err := rtcm.DecodeSubframes(subframes[0], subframes[1], subframes[2], eph); err != nil {
		return errs.New(errs.FrameInconsistency, "ephemeris: decode subframes", err)
	}

	t.cache[idx] = eph
	return nil
}

// due returns the satellites whose cached ephemeris is due for
// (re)broadcast at t, rescheduling each one a minute out.
func (t *ephemerisTracker) due(at model.Time) []int {
	var svids []int
	for idx, eph := range t.cache {
		if eph == nil || t.dueTime[idx] > at {
			continue
		}
		svid, err := model.IndexToSvid(idx)
		if err != nil {
			continue
		}
		svids = append(svids, svid)
		t.dueTime[idx] = at + model.Time(ephemerisInterval)
	}
	return svids
}

func (t *ephemerisTracker) get(svid int) (*model.EphemerisXmit, bool) {
	idx, err := model.SvidToIndex(svid)
	if err != nil {
		return nil, false
	}
	eph := t.cache[idx]
	return eph, eph != nil
}

func wordFromBytes(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
