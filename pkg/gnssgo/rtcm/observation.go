package rtcm

import (
	"fmt"
	"math"

	"github.com/trimtide/gnssbridge/pkg/gnssgo/bitio"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

const (
	cLight  = 299792458.0        // m/s
	freqL1  = 1575.42e6          // Hz
	lambdaL1 = cLight / freqL1   // m/cycle
	prUnit  = cLight / 1000      // meters per light-millisecond

	maxDelta     = 0x3FFFF // 20-bit signed field's positive limit
	noPhaseMark  = 0x40000 // out-of-band "no phase" sentinel
	ambiguityStep = 1500   // cycles per phase-ambiguity rollover
)

// extremeDelta is the threshold beyond
// which a phase jump is treated as a fresh lock rather than a rollover.
func extremeDelta() float64 {
	return float64(maxDelta) + 700*lambdaL1/0.02
}

// cnrFromSNR maps a dB-Hz signal-to-noise ratio to the RTCM quarter-dBHz
// carrier-to-noise field, clamping to zero outside the representable range.
func cnrFromSNR(snr float64) uint32 {
	if snr <= 0 || snr/0.25 >= 255.5 {
		return 0
	}
	return uint32(snr/0.25 + 0.5)
}

// snrFromCNR is the decoder's inverse of cnrFromSNR.
func snrFromCNR(cnr uint32) float64 {
	return float64(cnr) * 0.25
}

// lockTimeIndicator maps tracking-seconds to the RTCM 3.0 table 3.4-2
// lock-time indicator.
func lockTimeIndicator(seconds int64) uint32 {
	switch {
	case seconds < 24:
		return uint32(seconds)
	case seconds < 72:
		return uint32(seconds*2 - 24)
	case seconds < 168:
		return uint32(seconds*4 - 120)
	case seconds < 360:
		return uint32(seconds*8 - 408)
	case seconds < 937:
		return uint32(seconds*16 - 1176)
	default:
		return 127
	}
}

// ObservationEncoder assembles RTCM 1002 messages from per-epoch raw
// observations, owning the phase-ambiguity bookkeeping state.
// An instance is never shared across threads.
type ObservationEncoder struct {
	StationID int
	state     model.SatSideState
}

// NewObservationEncoder returns an encoder for the given 12-bit station ID.
func NewObservationEncoder(stationID int) *ObservationEncoder {
	return &ObservationEncoder{StationID: stationID}
}

// EncodeObservations builds the RTCM 1002 payload (message type 12 bits
// plus body, not yet framed) for one epoch's observations.
func (enc *ObservationEncoder) EncodeObservations(t model.Time, obs []model.RawObservation) ([]byte, error) {
	var bySvid [model.MaxSats]*model.RawObservation
	for i := range obs {
		if !obs[i].Valid {
			continue
		}
		idx, err := model.SvidToIndex(obs[i].SVID)
		if err != nil {
			return nil, fmt.Errorf("rtcm: observation encoder: %w", err)
		}
		bySvid[idx] = &obs[i]
	}

	n := 0
	for _, o := range bySvid {
		if o != nil {
			n++
		}
	}

	buf := make([]byte, 8+10*n+8) // generous: header 8B + ~9.25B/sat rounded up, plus slack
	c := bitio.NewWriter(buf)

	if err := c.PutUint(1002, 12); err != nil {
		return nil, err
	}
	if err := c.PutUint(uint64(enc.StationID), 12); err != nil {
		return nil, err
	}
	if err := c.PutUint(uint64(t.TowMillis()), 30); err != nil {
		return nil, err
	}
	if err := c.PutUint(0, 1); err != nil { // sync GNSS flag
		return nil, err
	}
	if err := c.PutUint(uint64(n), 5); err != nil {
		return nil, err
	}
	if err := c.PutUint(0, 1); err != nil { // smoothing indicator
		return nil, err
	}
	if err := c.PutUint(0, 3); err != nil { // smoothing interval
		return nil, err
	}

	for idx := 0; idx < model.MaxSats; idx++ {
		o := bySvid[idx]
		if o == nil {
			enc.state.PreviouslyValid[idx] = false
			continue
		}
		if err := enc.encodeSatellite(c, idx, o); err != nil {
			return nil, err
		}
		enc.state.TrackingTime[idx]++
		enc.state.PreviouslyValid[idx] = true
	}

	return buf[:c.Len()], nil
}

func (enc *ObservationEncoder) encodeSatellite(c *bitio.Cursor, idx int, o *model.RawObservation) error {
	mod := math.Floor(o.PR / prUnit)
	residual := o.PR - mod*prUnit
	iPR := int64(math.Round(residual / 0.02))

	prPseudo := o.PR
	prPhi := (o.Phase - float64(enc.state.PhaseAdjust[idx])) * lambdaL1
	iDelta := int64(math.Round((prPhi - prPseudo) / 0.0005))

	wasValid := enc.state.PreviouslyValid[idx]
	if o.Slip || !wasValid || math.Abs(float64(iDelta)) > extremeDelta() {
		enc.state.PhaseAdjust[idx] = int64(math.Round(o.Phase - o.PR/lambdaL1))
		enc.state.TrackingTime[idx] = 0
	} else if iDelta > maxDelta {
		enc.state.PhaseAdjust[idx] += ambiguityStep
	} else if iDelta < -maxDelta {
		enc.state.PhaseAdjust[idx] -= ambiguityStep
	}
	prPhi = (o.Phase - float64(enc.state.PhaseAdjust[idx])) * lambdaL1
	iDelta = int64(math.Round((prPhi - prPseudo) / 0.0005))

	if o.Phase == 0 {
		iDelta = noPhaseMark
	}

	svid, err := model.IndexToSvid(idx)
	if err != nil {
		return err
	}

	lockTime := lockTimeIndicator(enc.state.TrackingTime[idx])
	cnr := cnrFromSNR(o.SNR)

	if err := c.PutUint(uint64(svid), 6); err != nil {
		return err
	}
	if err := c.PutUint(0, 1); err != nil { // code: 0 = C/A
		return err
	}
	if err := c.PutUint(uint64(iPR), 24); err != nil {
		return err
	}
	if err := c.PutInt(iDelta, 20); err != nil {
		return err
	}
	if err := c.PutUint(uint64(mod), 8); err != nil {
		return err
	}
	if err := c.PutUint(uint64(lockTime), 7); err != nil {
		return err
	}
	if err := c.PutUint(uint64(cnr), 8); err != nil {
		return err
	}
	return nil
}

// decoderSatState is the decoder's independent bookkeeping, distinct from
// the encoder's: each side tracks its own ambiguity offset and must
// reverse the sender's +/-1500 cycle corrections by observing Doppler sign.
type decoderSatState struct {
	phaseAdjust       [model.MaxSats]int64
	previousPhaseRange [model.MaxSats]float64
	previousLockTime   [model.MaxSats]uint32
}

// ObservationDecoder is the inverse of ObservationEncoder.
type ObservationDecoder struct {
	state decoderSatState
}

// NewObservationDecoder returns a decoder with empty tracking state.
func NewObservationDecoder() *ObservationDecoder {
	return &ObservationDecoder{}
}

// DecodeObservations parses an RTCM 1002 payload into per-satellite
// observations, returned in the order the satellites appear in the message.
func (dec *ObservationDecoder) DecodeObservations(payload []byte) (model.Time, []model.RawObservation, error) {
	c := bitio.NewReader(payload)

	msgType, err := c.GetUint(12)
	if err != nil {
		return 0, nil, err
	}
	if msgType != 1002 {
		return 0, nil, fmt.Errorf("rtcm: expected message type 1002, got %d", msgType)
	}
	if _, err := c.GetUint(12); err != nil { // station id, unused by the decoder
		return 0, nil, err
	}
	towMs, err := c.GetUint(30)
	if err != nil {
		return 0, nil, err
	}
	if _, err := c.GetUint(1); err != nil { // sync flag
		return 0, nil, err
	}
	n, err := c.GetUint(5)
	if err != nil {
		return 0, nil, err
	}
	if _, err := c.GetUint(1); err != nil { // smoothing indicator
		return 0, nil, err
	}
	if _, err := c.GetUint(3); err != nil { // smoothing interval
		return 0, nil, err
	}

	out := make([]model.RawObservation, 0, n)
	for i := uint64(0); i < n; i++ {
		obs, idx, err := dec.decodeSatellite(c)
		if err != nil {
			return 0, nil, err
		}
		_ = idx
		out = append(out, obs)
	}

	t := model.Time(int64(towMs) * int64(1e6)) // ms -> ns, within-week only
	return t, out, nil
}

func (dec *ObservationDecoder) decodeSatellite(c *bitio.Cursor) (model.RawObservation, int, error) {
	svidRaw, err := c.GetUint(6)
	if err != nil {
		return model.RawObservation{}, 0, err
	}
	if _, err := c.GetUint(1); err != nil { // code
		return model.RawObservation{}, 0, err
	}
	iPRraw, err := c.GetUint(24)
	if err != nil {
		return model.RawObservation{}, 0, err
	}
	iDelta, err := c.GetInt(20)
	if err != nil {
		return model.RawObservation{}, 0, err
	}
	modRaw, err := c.GetUint(8)
	if err != nil {
		return model.RawObservation{}, 0, err
	}
	lockRaw, err := c.GetUint(7)
	if err != nil {
		return model.RawObservation{}, 0, err
	}
	cnrRaw, err := c.GetUint(8)
	if err != nil {
		return model.RawObservation{}, 0, err
	}

	svid := int(svidRaw)
	idx, err := model.SvidToIndex(svid)
	if err != nil {
		return model.RawObservation{}, 0, err
	}

	pr := float64(modRaw)*prUnit + float64(iPRraw)*0.02

	noPhase := iDelta == noPhaseMark
	var phaseRange, doppler float64
	slip := dec.state.previousPhaseRange[idx] == 0

	if !noPhase {
		phaseRange = pr + float64(iDelta)*0.0005 + float64(dec.state.phaseAdjust[idx])*lambdaL1
		// The Doppler estimate is the change in phase range since this
		// satellite's previous message, in meters, not cycles/sec.
		doppler = phaseRange - dec.state.previousPhaseRange[idx]

		if doppler < 0 && iDelta > maxDelta {
			dec.state.phaseAdjust[idx] += ambiguityStep
			phaseRange += ambiguityStep * lambdaL1
		} else if doppler > 0 && iDelta < -maxDelta {
			dec.state.phaseAdjust[idx] -= ambiguityStep
			phaseRange -= ambiguityStep * lambdaL1
		}
	}

	if uint32(lockRaw) < dec.state.previousLockTime[idx] {
		slip = true
	}
	if slip {
		dec.state.phaseAdjust[idx] = 0
	}

	dec.state.previousPhaseRange[idx] = phaseRange
	dec.state.previousLockTime[idx] = uint32(lockRaw)

	var phaseCycles float64
	if !noPhase {
		phaseCycles = phaseRange / lambdaL1
	}

	return model.RawObservation{
		Valid:   true,
		SVID:    svid,
		PR:      pr,
		Phase:   phaseCycles,
		Doppler: doppler,
		SNR:     snrFromCNR(uint32(cnrRaw)),
		Slip:    slip,
	}, idx, nil
}
