package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfUnwraps(t *testing.T) {
	base := errors.New("boom")
	wrapped := fmt.Errorf("layer: %w", New(Io, "read", base))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, Io, kind)
}

func TestErrorIsMatchesOnKindOnly(t *testing.T) {
	a := New(Protocol, "crc", nil)
	b := New(Protocol, "parity", nil)
	c := New(Io, "read", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestSupervisorRingBufferBounded(t *testing.T) {
	s := NewSupervisor()
	for i := 0; i < ringCapacity+5; i++ {
		s.Record(fmt.Errorf("err %d", i))
	}
	entries := s.Drain()
	assert.Len(t, entries, ringCapacity)
	assert.Equal(t, "err 19", entries[len(entries)-1].Err.Error())
}

func TestSupervisorDrainClears(t *testing.T) {
	s := NewSupervisor()
	s.Record(errors.New("one"))
	require.Len(t, s.Drain(), 1)
	assert.Len(t, s.Drain(), 0)
}
