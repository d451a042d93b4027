package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"tuner/internal/log"
)

var logger = log.For("udp")

const writeTimeout = 100 * time.Millisecond

var ErrSenderClosed = errors.New("udp: sender closed")

// UDPSender writes datagrams to one connected peer.
type UDPSender struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool

	packets uint64
	bytes   uint64
}

// NewUDPSender dials targetAddress ("host:port"). No local address is given,
// so the kernel picks an ephemeral port.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	raddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %q: %w", targetAddress, err)
	}

	logger.Infof("sending to %s from %s", conn.RemoteAddr(), conn.LocalAddr())
	return &UDPSender{conn: conn}, nil
}

// RemoteAddr returns the peer address.
func (s *UDPSender) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Send writes one datagram. A write that cannot complete within a short
// deadline fails rather than stalling the publisher.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("udp: set deadline: %w", err)
	}
	n, err := s.conn.Write(data)
	if err != nil {
		return fmt.Errorf("udp: write: %w", err)
	}
	s.packets++
	s.bytes += uint64(n)
	return nil
}

// Stats returns the datagrams and bytes written so far.
func (s *UDPSender) Stats() (packets, bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes
}

// Close closes the connection. Later calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	logger.Infof("closing %s after %d packets (%d bytes)", s.conn.RemoteAddr(), s.packets, s.bytes)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("udp: close: %w", err)
	}
	return nil
}
