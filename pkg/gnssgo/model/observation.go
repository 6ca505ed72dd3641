package model

// RawObservation carries one satellite's measurement for one epoch. When
// Valid is false, the remaining fields must not be read by a caller.
type RawObservation struct {
	Valid    bool
	SVID     int
	PR       float64 // pseudo-range, meters
	Phase    float64 // carrier phase, cycles, L1
	Doppler  float64 // cycles/sec
	SNR      float64 // dB-Hz
	Slip     bool    // cycle-slip detected since the previous epoch
}

// EpochObservations is the set of per-satellite measurements and navigation
// words a RawReceiver yields for one epoch.
type EpochObservations struct {
	Time Time
	Obs  []RawObservation

	// Words holds the raw 30-bit navigation words delivered this epoch, if
	// any: always a complete set of three ten-word subframes (300 bits) for
	// a single satellite, never a partial or multi-satellite mix. WordsSVID
	// names which satellite they describe; it is meaningless when Words is
	// empty.
	Words     [][]byte
	WordsSVID int
}

// SatSideState bundles the per-satellite bookkeeping the RTCM 1002
// encoder/decoder must keep across epochs: the phase-ambiguity offset, the
// tracking-time counter feeding the lock-time indicator, and whether the
// satellite was valid on the previous epoch.
type SatSideState struct {
	PhaseAdjust     [MaxSats]int64
	TrackingTime    [MaxSats]int64
	PreviouslyValid [MaxSats]bool
}
