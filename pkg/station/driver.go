// Package station implements the scheduling that drives which RTCM
// messages go out on each epoch: the observation record every epoch, the
// station-reference record on a once-a-minute deadline, and an ephemeris
// record per satellite once its navigation words have been assembled.
package station

import (
	"github.com/sirupsen/logrus"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/rtcm"
)

const stationRefInterval = 60 * 1e9 // 60s, in nanoseconds, matching model.Time's unit

// Driver holds the three scheduling deadlines and emits the
// station-reference record when its deadline has passed, then always emits
// the observation record for the epoch. The other two deadlines drive no
// message (see below).
type Driver struct {
	Station model.StationAttributes

	stationRefTime model.Time
	// antennaRefTime and auxiliaryTime hold the same deadline role as
	// stationRefTime but have no wire message defined within this
	// system's scope (no RTCM 1006/1033-equivalent layout is specified);
	// they are carried so a future message type can be scheduled the
	// same way without reshaping the driver.
	antennaRefTime model.Time
	auxiliaryTime  model.Time

	obsEncoder *rtcm.ObservationEncoder
	ephemeris  *ephemerisTracker
	log        logrus.FieldLogger
}

// NewDriver returns a Driver with all deadlines initialized to -infinity,
// so the first epoch always emits a station-reference record. log may be
// nil; it is only used to report discarded ephemeris updates.
func NewDriver(st model.StationAttributes, log logrus.FieldLogger) *Driver {
	const negInf = model.Time(-1 << 62)
	return &Driver{
		Station:        st,
		stationRefTime: negInf,
		antennaRefTime: negInf,
		auxiliaryTime:  negInf,
		obsEncoder:     rtcm.NewObservationEncoder(st.StationID),
		ephemeris:      newEphemerisTracker(),
		log:            log,
	}
}

// Emit produces the RTCM frames due for this epoch: any ephemeris records
// due for satellites whose navigation words have been assembled, zero or
// one station-reference frame, then exactly one observation frame.
// receiverX/Y/Z/ok is the receiver's self-reported position, used to
// substitute for an unset (0,0,0) configured ARP.
func (d *Driver) Emit(epoch model.EpochObservations, receiverX, receiverY, receiverZ float64, receiverOK bool) ([][]byte, error) {
	var frames [][]byte

	if len(epoch.Words) > 0 {
		if err := d.ephemeris.ingest(epoch.Words, epoch.WordsSVID); err != nil {
			if kind, ok := errs.KindOf(err); ok && kind == errs.FrameInconsistency {
				if d.log != nil {
					d.log.WithError(err).Warn("discarding ephemeris update")
				}
			} else {
				return nil, err
			}
		}
	}

	for _, svid := range d.ephemeris.due(epoch.Time) {
		eph, ok := d.ephemeris.get(svid)
		if !ok {
			continue
		}
		payload, err := rtcm.EncodeEphemeris(eph)
		if err != nil {
			return nil, err
		}
		frame, err := rtcm.Encode(payload)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	if d.stationRefTime <= epoch.Time {
		x, y, z := d.Station.ResolveARP(receiverX, receiverY, receiverZ, receiverOK)
		snapshot := d.Station
		snapshot.X, snapshot.Y, snapshot.Z = x, y, z

		payload, err := rtcm.EncodeStationReference(&snapshot)
		if err != nil {
			return nil, err
		}
		frame, err := rtcm.Encode(payload)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
		d.stationRefTime = epoch.Time + model.Time(stationRefInterval)
	}

	payload, err := d.obsEncoder.EncodeObservations(epoch.Time, epoch.Obs)
	if err != nil {
		return nil, err
	}
	frame, err := rtcm.Encode(payload)
	if err != nil {
		return nil, err
	}
	frames = append(frames, frame)

	return frames, nil
}
