package navframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameFieldRoundTrip(t *testing.T) {
	f, err := NewFrame(10)
	require.NoError(t, err)

	require.NoError(t, f.PutField(3, 61-60, 68-60, 0x2A)) // local field inside word 3
	v, err := f.GetField(3, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2A), v)
}

func TestFrameSignedField(t *testing.T) {
	f, err := NewFrame(3)
	require.NoError(t, err)
	require.NoError(t, f.PutField(1, 1, 8, 0x100-5)) // -5 as an 8-bit two's-complement field
	v, err := f.GetSigned(1, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, int32(-5), v)
}

func TestFramePut32RoundTrip(t *testing.T) {
	f, err := NewFrame(4)
	require.NoError(t, err)
	require.NoError(t, f.Put32(2, 0x123456))
	got, err := f.GetConcat24Plus8(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x123456), got)
}

func TestFrameOutOfRangeErrors(t *testing.T) {
	f, err := NewFrame(2)
	require.NoError(t, err)
	_, err = f.Word(3)
	assert.Error(t, err)
	_, err = NewFrame(26)
	assert.Error(t, err)
}
