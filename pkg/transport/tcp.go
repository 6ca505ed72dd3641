package transport

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TCPStream is a Stream backed by a net.Conn, used on the caster-facing
// side of the bridge (the NTRIP source connection).
type TCPStream struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	log     logrus.FieldLogger
}

// DialTCP connects to addr ("host:port") with the default timeout applied
// both as the dial deadline and the steady-state read/write deadline.
func DialTCP(addr string, log logrus.FieldLogger) (*TCPStream, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("addr", addr).Info("tcp stream connected")

	t := &TCPStream{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: DefaultTimeout,
		log:     log,
	}
	t.applyDeadline()
	return t, nil
}

func (t *TCPStream) applyDeadline() {
	if t.timeout > 0 {
		deadline := time.Now().Add(t.timeout)
		t.conn.SetReadDeadline(deadline)
		t.conn.SetWriteDeadline(deadline)
	}
}

func (t *TCPStream) Read(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyDeadline()
	return t.reader.Read(buf)
}

func (t *TCPStream) Write(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyDeadline()
	return t.conn.Write(buf)
}

func (t *TCPStream) ReadLine() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyDeadline()
	line, err := t.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *TCPStream) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

func (t *TCPStream) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}
