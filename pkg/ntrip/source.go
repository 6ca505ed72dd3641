// Package ntrip implements the source-side handshake this bridge uses to
// register a mountpoint with a caster, and a symmetric client for
// consuming a correction stream.
package ntrip

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/transport"
)

const sourceAgent = "NTRIP gnssbridge/1.0"

// Handshake performs the NTRIP 1.0 source handshake over an
// already-connected stream: send SOURCE, read response lines until a
// blank line, and fail on an ERROR response.
func Handshake(s transport.Stream, password, mountpoint string, log logrus.FieldLogger) error {
	id := uuid.New().String()
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("handshake_id", id)

	request := fmt.Sprintf("SOURCE %s/%s\r\nSource-Agent %s\r\n\r\n", password, mountpoint, sourceAgent)
	if _, err := s.Write([]byte(request)); err != nil {
		return errs.New(errs.Io, "ntrip: write SOURCE request", err)
	}
	log.WithField("mountpoint", mountpoint).Debug("sent NTRIP SOURCE request")

	for {
		line, err := s.ReadLine()
		if err != nil {
			return errs.New(errs.Io, "ntrip: read handshake response", err)
		}
		if line == "" {
			log.Info("NTRIP source handshake complete")
			return nil
		}

		fields := strings.SplitN(line, " ", 2)
		switch fields[0] {
		case "ICY":
			continue // consume remaining header lines until the blank terminator
		case "ERROR":
			msg := ""
			if len(fields) > 1 {
				msg = fields[1]
			}
			return errs.New(errs.Protocol, "ntrip: handshake rejected", fmt.Errorf("%s", msg))
		default:
			continue
		}
	}
}
