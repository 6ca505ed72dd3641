package station

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/navframe"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/rtcm"
)

// buildEphemerisSubframes returns three 10-word subframes whose iode fields
// agree (the only cross-subframe invariant DecodeSubframes enforces);
// every other field is left zero.
func buildEphemerisSubframes(t *testing.T, iode uint32) (sf1, sf2, sf3 *navframe.Frame) {
	t.Helper()
	var err error
	sf1, err = navframe.NewFrame(10)
	require.NoError(t, err)
	sf2, err = navframe.NewFrame(10)
	require.NoError(t, err)
	sf3, err = navframe.NewFrame(10)
	require.NoError(t, err)

	require.NoError(t, sf1.PutField(8, 1, 8, iode))  // subframe 1 word 8 bits 1-8: iodc low byte
	require.NoError(t, sf2.PutField(3, 1, 8, iode))   // subframe 2 word 3 bits 1-8: iode
	require.NoError(t, sf3.PutField(10, 1, 8, iode))  // subframe 3 word 10 bits 1-8: iode

	return sf1, sf2, sf3
}

// framesToWords re-derives real parity bits for each word (initial D29'/D30'
// cleared at the start of each subframe) so ephemerisTracker.ingest's parity
// check passes, then packs each 30-bit word right-justified into 4 bytes,
// matching the Wire receiver's framing.
func framesToWords(t *testing.T, frames ...*navframe.Frame) [][]byte {
	t.Helper()
	var words [][]byte
	for _, f := range frames {
		d29, d30 := false, false
		for w := 1; w <= 10; w++ {
			data, err := f.GetField(w, 1, 24)
			require.NoError(t, err)
			raw := navframe.AddParity(data, d29, d30)
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, raw)
			words = append(words, buf)
			d29, d30 = navframe.D29D30(raw)
		}
	}
	return words
}

func TestFirstEpochEmitsStationReference(t *testing.T) {
	d := NewDriver(model.StationAttributes{StationID: 5, X: 100, Y: 200, Z: 300}, nil)

	epoch := model.EpochObservations{Time: model.Time(0)}
	frames, err := d.Emit(epoch, 0, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	payload, _, ok := rtcm.Decode(frames[0])
	require.True(t, ok)
	mt, err := rtcm.MessageType(payload)
	require.NoError(t, err)
	assert.Equal(t, 1005, mt)

	payload2, _, ok := rtcm.Decode(frames[1])
	require.True(t, ok)
	mt2, err := rtcm.MessageType(payload2)
	require.NoError(t, err)
	assert.Equal(t, 1002, mt2)
}

func TestStationReferenceOnlyOncePerMinute(t *testing.T) {
	d := NewDriver(model.StationAttributes{StationID: 1}, nil)

	epoch1 := model.EpochObservations{Time: model.Time(0)}
	frames1, err := d.Emit(epoch1, 0, 0, 0, false)
	require.NoError(t, err)
	assert.Len(t, frames1, 2)

	epoch2 := model.EpochObservations{Time: model.Time(1e9)} // 1 second later
	frames2, err := d.Emit(epoch2, 0, 0, 0, false)
	require.NoError(t, err)
	assert.Len(t, frames2, 1, "station reference should not repeat within the minute")
}

func TestARPSubstitutedWhenUnset(t *testing.T) {
	d := NewDriver(model.StationAttributes{StationID: 1}, nil) // X=Y=Z=0

	epoch := model.EpochObservations{Time: model.Time(0)}
	frames, err := d.Emit(epoch, 111.0, 222.0, 333.0, true)
	require.NoError(t, err)

	payload, _, ok := rtcm.Decode(frames[0])
	require.True(t, ok)
	st, err := rtcm.DecodeStationReference(payload)
	require.NoError(t, err)
	assert.InDelta(t, 111.0, st.X, 1e-3)
	assert.InDelta(t, 222.0, st.Y, 1e-3)
	assert.InDelta(t, 333.0, st.Z, 1e-3)
}

func TestEphemerisWordsProduceEphemerisFrame(t *testing.T) {
	sf1, sf2, sf3 := buildEphemerisSubframes(t, 9)
	words := framesToWords(t, sf1, sf2, sf3)

	d := NewDriver(model.StationAttributes{StationID: 1}, nil)
	epoch := model.EpochObservations{Time: model.Time(0), Words: words, WordsSVID: 5}

	frames, err := d.Emit(epoch, 0, 0, 0, false)
	require.NoError(t, err)

	var sawEphemeris bool
	for _, frame := range frames {
		payload, _, ok := rtcm.Decode(frame)
		require.True(t, ok)
		mt, err := rtcm.MessageType(payload)
		require.NoError(t, err)
		if mt != rtcm.EphemerisMessageType {
			continue
		}
		sawEphemeris = true
		decoded, err := rtcm.DecodeEphemeris(payload)
		require.NoError(t, err)
		assert.Equal(t, 9, decoded.Iode)
	}
	assert.True(t, sawEphemeris, "ingesting a full set of navigation words must emit an ephemeris frame")
}

func TestEphemerisRepeatsOncePerMinute(t *testing.T) {
	sf1, sf2, sf3 := buildEphemerisSubframes(t, 3)
	words := framesToWords(t, sf1, sf2, sf3)

	d := NewDriver(model.StationAttributes{StationID: 1}, nil)
	epoch1 := model.EpochObservations{Time: model.Time(0), Words: words, WordsSVID: 5}
	frames1, err := d.Emit(epoch1, 0, 0, 0, false)
	require.NoError(t, err)
	assert.True(t, containsMessageType(t, frames1, rtcm.EphemerisMessageType))

	epoch2 := model.EpochObservations{Time: model.Time(1e9)} // 1s later, no new words
	frames2, err := d.Emit(epoch2, 0, 0, 0, false)
	require.NoError(t, err)
	assert.False(t, containsMessageType(t, frames2, rtcm.EphemerisMessageType),
		"cached ephemeris should not repeat within the minute")
}

func TestEphemerisMismatchedIodeIsDiscardedButSessionContinues(t *testing.T) {
	sf1, sf2, sf3 := buildEphemerisSubframes(t, 9)
	require.NoError(t, sf3.PutField(10, 1, 8, 10)) // corrupt subframe 3's iode copy
	words := framesToWords(t, sf1, sf2, sf3)

	d := NewDriver(model.StationAttributes{StationID: 1}, nil)
	epoch := model.EpochObservations{Time: model.Time(0), Words: words, WordsSVID: 5}

	frames, err := d.Emit(epoch, 0, 0, 0, false)
	require.NoError(t, err, "a frame inconsistency must not abort the session")
	assert.False(t, containsMessageType(t, frames, rtcm.EphemerisMessageType),
		"a rejected navigation update must not produce an ephemeris frame")
}

func TestEphemerisBadParityIsProtocolError(t *testing.T) {
	sf1, sf2, sf3 := buildEphemerisSubframes(t, 9)
	words := framesToWords(t, sf1, sf2, sf3)
	words[0][3] ^= 0xFF // flip the last byte's bits, breaking word 1's parity

	d := NewDriver(model.StationAttributes{StationID: 1}, nil)
	epoch := model.EpochObservations{Time: model.Time(0), Words: words, WordsSVID: 5}

	_, err := d.Emit(epoch, 0, 0, 0, false)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.Protocol, kind)
}

func containsMessageType(t *testing.T, frames [][]byte, want int) bool {
	t.Helper()
	for _, frame := range frames {
		payload, _, ok := rtcm.Decode(frame)
		require.True(t, ok)
		mt, err := rtcm.MessageType(payload)
		require.NoError(t, err)
		if mt == want {
			return true
		}
	}
	return false
}
