package receiver

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
	"github.com/trimtide/gnssbridge/pkg/transport"
)

// Wire is a RawReceiver reading a fixed binary epoch framing over a
// transport.Stream. Parsing a particular GNSS module's native wire
// protocol is deliberately out of scope here; a real receiver integration
// speaks this framing to the bridge, typically via a small adapter
// process or firmware update rather than by this bridge parsing the
// module's native protocol directly.
//
// Per-epoch layout, all integers big-endian:
//
//	uint32 towMillis
//	uint8  numObs
//	numObs *  { uint8 svid, float64 pr, float64 phase, float64 doppler, float64 snr, uint8 slip }
//	uint8  wordsSVID (meaningless when numWords is 0)
//	uint8  numWords (0, or always 30: three ten-word subframes)
//	numWords * uint32 (one packed 30-bit navigation word, right-justified)
//	float64 posX, posY, posZ, uint8 posOK
type Wire struct {
	mu   sync.Mutex
	s    transport.Stream
	posX  float64
	posY  float64
	posZ  float64
	posOK bool
}

// NewWire wraps s as a Wire receiver.
func NewWire(s transport.Stream) *Wire {
	return &Wire{s: s}
}

func (w *Wire) NextEpoch(ctx context.Context) (model.EpochObservations, error) {
	select {
	case <-ctx.Done():
		return model.EpochObservations{}, ctx.Err()
	default:
	}

	var header [5]byte
	if err := w.readFull(header[:]); err != nil {
		return model.EpochObservations{}, errs.New(errs.Io, "receiver: read epoch header", err)
	}
	towMs := binary.BigEndian.Uint32(header[0:4])
	numObs := int(header[4])

	obs := make([]model.RawObservation, numObs)
	for i := 0; i < numObs; i++ {
		var rec [1 + 8*4 + 1]byte
		if err := w.readFull(rec[:]); err != nil {
			return model.EpochObservations{}, errs.New(errs.Io, "receiver: read observation record", err)
		}
		obs[i] = model.RawObservation{
			Valid:   true,
			SVID:    int(rec[0]),
			PR:      decodeFloat64(rec[1:9]),
			Phase:   decodeFloat64(rec[9:17]),
			Doppler: decodeFloat64(rec[17:25]),
			SNR:     decodeFloat64(rec[25:33]),
			Slip:    rec[33] != 0,
		}
	}

	var svidBuf [1]byte
	if err := w.readFull(svidBuf[:]); err != nil {
		return model.EpochObservations{}, errs.New(errs.Io, "receiver: read words svid", err)
	}
	wordsSVID := int(svidBuf[0])

	var numWordsBuf [1]byte
	if err := w.readFull(numWordsBuf[:]); err != nil {
		return model.EpochObservations{}, errs.New(errs.Io, "receiver: read word count", err)
	}
	numWords := int(numWordsBuf[0])
	words := make([][]byte, numWords)
	for i := 0; i < numWords; i++ {
		var wb [4]byte
		if err := w.readFull(wb[:]); err != nil {
			return model.EpochObservations{}, errs.New(errs.Io, "receiver: read navigation word", err)
		}
		words[i] = append([]byte(nil), wb[:]...)
	}

	var posBuf [25]byte
	if err := w.readFull(posBuf[:]); err != nil {
		return model.EpochObservations{}, errs.New(errs.Io, "receiver: read position trailer", err)
	}
	w.mu.Lock()
	w.posX = decodeFloat64(posBuf[0:8])
	w.posY = decodeFloat64(posBuf[8:16])
	w.posZ = decodeFloat64(posBuf[16:24])
	w.posOK = posBuf[24] != 0
	w.mu.Unlock()

	return model.EpochObservations{
		Time:      model.Time(int64(towMs) * int64(1e6)),
		Obs:       obs,
		Words:     words,
		WordsSVID: wordsSVID,
	}, nil
}

func (w *Wire) Position() (x, y, z float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.posX, w.posY, w.posZ, w.posOK
}

func (w *Wire) readFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := w.s.Read(buf[read:])
		read += n
		if err != nil {
			if err == io.EOF && read == len(buf) {
				return nil
			}
			return err
		}
	}
	return nil
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}
