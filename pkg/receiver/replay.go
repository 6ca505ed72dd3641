package receiver

import (
	"context"
	"sync"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

// Replay is a RawReceiver that plays back a fixed, preloaded sequence of
// epochs, used in place of hardware for integration tests and demos. It
// does not loop: once the sequence is exhausted, NextEpoch returns an
// IoError.
type Replay struct {
	mu       sync.Mutex
	epochs   []model.EpochObservations
	next     int
	posX     float64
	posY     float64
	posZ     float64
	posKnown bool
}

// NewReplay returns a Replay receiver over epochs, reporting the given
// fixed self-position.
func NewReplay(epochs []model.EpochObservations, x, y, z float64, posKnown bool) *Replay {
	return &Replay{epochs: epochs, posX: x, posY: y, posZ: z, posKnown: posKnown}
}

func (r *Replay) NextEpoch(ctx context.Context) (model.EpochObservations, error) {
	select {
	case <-ctx.Done():
		return model.EpochObservations{}, ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.epochs) {
		return model.EpochObservations{}, errs.New(errs.Io, "replay: sequence exhausted", nil)
	}
	e := r.epochs[r.next]
	r.next++
	return e, nil
}

func (r *Replay) Position() (x, y, z float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posX, r.posY, r.posZ, r.posKnown
}
