// Package receiver defines the seam between the bridge's core pipeline and
// whatever hardware or fixture actually produces raw GNSS observations.
package receiver

import (
	"context"

	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

// RawReceiver yields one epoch of observations at a time and reports the
// receiver's own self-position, if it has one. Vendor-specific wire
// parsing lives behind this interface, not in front of it: the bridge's
// core pipeline never sees a receiver's native protocol.
type RawReceiver interface {
	// NextEpoch blocks until a full epoch is available or ctx is
	// canceled. A non-nil error is either an IoError (from errs) wrapping
	// the underlying transport failure, or ctx.Err() on shutdown.
	NextEpoch(ctx context.Context) (model.EpochObservations, error)
	// Position reports the receiver's most recently observed self
	// position in ECEF meters. ok is false until at least one fix has
	// been seen.
	Position() (x, y, z float64, ok bool)
}
