package transport

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	defaultBaudRate = 9600
	defaultDataBits = 8
	defaultStopBits = 1
)

// SerialStream is a Stream backed by a local serial port, wrapping
// go.bug.st/serial the way the receiver side of the bridge talks to a GPS
// module.
type SerialStream struct {
	mu      sync.Mutex
	port    serial.Port
	reader  *bufio.Reader
	timeout time.Duration
	log     logrus.FieldLogger
}

// OpenSerial opens path, which follows the
// port[:baud[:databits[:parity[:stopbits]]]] convention, e.g.
// "/dev/ttyUSB0:115200:8:N:1".
func OpenSerial(path string, log logrus.FieldLogger) (*SerialStream, error) {
	portName, mode, err := parseSerialPath(path)
	if err != nil {
		return nil, err
	}

	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", portName, err)
	}
	if err := p.SetReadTimeout(DefaultTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: set serial read timeout: %w", err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("port", portName).Info("serial port opened")

	return &SerialStream{
		port:    p,
		reader:  bufio.NewReader(p),
		timeout: DefaultTimeout,
		log:     log,
	}, nil
}

func parseSerialPath(path string) (string, *serial.Mode, error) {
	parts := strings.Split(path, ":")
	portName := parts[0]
	if portName == "" {
		return "", nil, fmt.Errorf("transport: empty serial port path")
	}

	mode := &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: defaultDataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}

	if len(parts) > 1 && parts[1] != "" {
		baud, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", nil, fmt.Errorf("transport: bad baud rate %q: %w", parts[1], err)
		}
		mode.BaudRate = baud
	}
	if len(parts) > 2 && parts[2] != "" {
		bits, err := strconv.Atoi(parts[2])
		if err != nil {
			return "", nil, fmt.Errorf("transport: bad data bits %q: %w", parts[2], err)
		}
		mode.DataBits = bits
	}
	if len(parts) > 3 && parts[3] != "" {
		switch strings.ToUpper(parts[3]) {
		case "E":
			mode.Parity = serial.EvenParity
		case "O":
			mode.Parity = serial.OddParity
		default:
			mode.Parity = serial.NoParity
		}
	}
	if len(parts) > 4 && parts[4] != "" {
		switch parts[4] {
		case "2":
			mode.StopBits = serial.TwoStopBits
		default:
			mode.StopBits = serial.OneStopBit
		}
	}

	return portName, mode, nil
}

func (s *SerialStream) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader.Read(buf)
}

func (s *SerialStream) Write(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(buf)
}

func (s *SerialStream) ReadLine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, err := s.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *SerialStream) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
	if err := s.port.SetReadTimeout(d); err != nil {
		s.log.WithError(err).Warn("failed to update serial read timeout")
	}
}

func (s *SerialStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
