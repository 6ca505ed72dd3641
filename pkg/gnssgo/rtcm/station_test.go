package rtcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

func TestStationReferenceEncodeDecodeRoundTrip(t *testing.T) {
	st := &model.StationAttributes{
		StationID: 2047,
		X:         -2694892.9873,
		Y:         -4293291.0146,
		Z:         3857878.2345,
	}

	payload, err := EncodeStationReference(st)
	require.NoError(t, err)

	decoded, err := DecodeStationReference(payload)
	require.NoError(t, err)

	assert.Equal(t, st.StationID, decoded.StationID)
	assert.InDelta(t, st.X, decoded.X, ecefQuantum)
	assert.InDelta(t, st.Y, decoded.Y, ecefQuantum)
	assert.InDelta(t, st.Z, decoded.Z, ecefQuantum)
}

func TestStationReferenceRejectsWrongMessageType(t *testing.T) {
	payload, err := EncodeStationReference(&model.StationAttributes{StationID: 1})
	require.NoError(t, err)

	corrupted := append([]byte(nil), payload...)
	corrupted[0] = 0x00
	corrupted[1] = 0x10 // message type field now reads something other than 1005

	_, err = DecodeStationReference(corrupted)
	assert.Error(t, err)
}

func TestStationReferenceHandlesNegativeCoordinates(t *testing.T) {
	st := &model.StationAttributes{StationID: 1, X: -1.0, Y: -2.0, Z: -3.0}
	payload, err := EncodeStationReference(st)
	require.NoError(t, err)

	decoded, err := DecodeStationReference(payload)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, decoded.X, ecefQuantum)
	assert.InDelta(t, -2.0, decoded.Y, ecefQuantum)
	assert.InDelta(t, -3.0, decoded.Z, ecefQuantum)
}
