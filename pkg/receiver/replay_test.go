package receiver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

func TestReplayYieldsEpochsInOrder(t *testing.T) {
	epochs := []model.EpochObservations{
		{Time: model.Time(1)},
		{Time: model.Time(2)},
	}
	r := NewReplay(epochs, 1, 2, 3, true)

	e1, err := r.NextEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Time(1), e1.Time)

	e2, err := r.NextEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Time(2), e2.Time)

	x, y, z, ok := r.Position()
	assert.True(t, ok)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 2.0, y)
	assert.Equal(t, 3.0, z)
}

func TestReplayExhaustionIsError(t *testing.T) {
	r := NewReplay(nil, 0, 0, 0, false)
	_, err := r.NextEpoch(context.Background())
	assert.Error(t, err)
}

func TestReplayHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReplay([]model.EpochObservations{{Time: model.Time(1)}}, 0, 0, 0, false)
	_, err := r.NextEpoch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
