package rtcm

import (
	"fmt"

	"github.com/trimtide/gnssbridge/pkg/gnssgo/bitio"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

// ecefQuantum is the 0.5mm quantum used by RTCM 1005's ECEF fields.
const ecefQuantum = 0.0005

// EncodeStationReference builds the RTCM 1005 payload for a station's
// fixed antenna reference point.
func EncodeStationReference(st *model.StationAttributes) ([]byte, error) {
	buf := make([]byte, 19)
	c := bitio.NewWriter(buf)

	if err := c.PutUint(1005, 12); err != nil {
		return nil, err
	}
	if err := c.PutUint(uint64(st.StationID), 12); err != nil {
		return nil, err
	}
	if err := c.PutUint(0, 6); err != nil { // reserved (ITRF realization year)
		return nil, err
	}
	if err := c.PutUint(1, 1); err != nil { // GPS indicator
		return nil, err
	}
	if err := c.PutUint(0, 1); err != nil { // GLONASS indicator
		return nil, err
	}
	if err := c.PutUint(0, 1); err != nil { // Galileo indicator
		return nil, err
	}
	if err := c.PutUint(0, 1); err != nil { // reference-station indicator
		return nil, err
	}
	if err := c.PutInt(int64(round(st.X/ecefQuantum)), 38); err != nil {
		return nil, err
	}
	if err := c.PutUint(0, 1); err != nil { // single-receiver oscillator indicator
		return nil, err
	}
	if err := c.PutUint(0, 1); err != nil { // reserved
		return nil, err
	}
	if err := c.PutInt(int64(round(st.Y/ecefQuantum)), 38); err != nil {
		return nil, err
	}
	if err := c.PutUint(0, 2); err != nil { // reserved
		return nil, err
	}
	if err := c.PutInt(int64(round(st.Z/ecefQuantum)), 38); err != nil {
		return nil, err
	}

	return buf[:c.Len()], nil
}

// DecodeStationReference is the inverse of EncodeStationReference.
func DecodeStationReference(payload []byte) (*model.StationAttributes, error) {
	c := bitio.NewReader(payload)

	msgType, err := c.GetUint(12)
	if err != nil {
		return nil, err
	}
	if msgType != 1005 {
		return nil, fmt.Errorf("rtcm: expected message type 1005, got %d", msgType)
	}
	stationID, err := c.GetUint(12)
	if err != nil {
		return nil, err
	}
	if _, err := c.GetUint(6); err != nil {
		return nil, err
	}
	if _, err := c.GetUint(1); err != nil { // GPS indicator
		return nil, err
	}
	if _, err := c.GetUint(1); err != nil { // GLONASS indicator
		return nil, err
	}
	if _, err := c.GetUint(1); err != nil { // Galileo indicator
		return nil, err
	}
	if _, err := c.GetUint(1); err != nil { // reference-station indicator
		return nil, err
	}
	x, err := c.GetInt(38)
	if err != nil {
		return nil, err
	}
	if _, err := c.GetUint(1); err != nil {
		return nil, err
	}
	if _, err := c.GetUint(1); err != nil {
		return nil, err
	}
	y, err := c.GetInt(38)
	if err != nil {
		return nil, err
	}
	if _, err := c.GetUint(2); err != nil {
		return nil, err
	}
	z, err := c.GetInt(38)
	if err != nil {
		return nil, err
	}

	return &model.StationAttributes{
		StationID: int(stationID),
		X:         float64(x) * ecefQuantum,
		Y:         float64(y) * ecefQuantum,
		Z:         float64(z) * ecefQuantum,
	}, nil
}

func round(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
