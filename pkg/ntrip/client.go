package ntrip

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/transport"
)

// ClientHandshake performs the symmetric NTRIP client handshake: request a
// mountpoint's correction stream and classify the caster's response.
func ClientHandshake(s transport.Stream, mountpoint, user, password string, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	req := fmt.Sprintf("GET /%s HTTP/1.0\r\n", mountpoint)
	if user != "" || password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
		req += fmt.Sprintf("Authorization: Basic %s\r\n", token)
	}
	req += "\r\n"

	if _, err := s.Write([]byte(req)); err != nil {
		return errs.New(errs.Io, "ntrip client: write GET request", err)
	}

	status, err := s.ReadLine()
	if err != nil {
		return errs.New(errs.Io, "ntrip client: read status line", err)
	}

	switch {
	case strings.HasPrefix(status, "ICY 200"):
		log.Info("NTRIP client handshake succeeded")
		return drainHeaders(s)
	case strings.HasPrefix(status, "SOURCETABLE 200"):
		return errs.New(errs.Protocol, "ntrip client: handshake", fmt.Errorf("mountpoint %q not found", mountpoint))
	case strings.HasPrefix(status, "HTTP/1.") && strings.Contains(status, "401"):
		return errs.New(errs.Protocol, "ntrip client: handshake", fmt.Errorf("unauthorized"))
	default:
		return errs.New(errs.Protocol, "ntrip client: handshake", fmt.Errorf("unexpected response: %s", status))
	}
}

func drainHeaders(s transport.Stream) error {
	for {
		line, err := s.ReadLine()
		if err != nil {
			return errs.New(errs.Io, "ntrip client: read headers", err)
		}
		if line == "" {
			return nil
		}
	}
}
