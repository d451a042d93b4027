// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tuner/internal/note"
	"tuner/internal/tuner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeLatest is a LatestProvider whose result the test controls.
type fakeLatest struct {
	mu     sync.Mutex
	result tuner.AnalysisResult
	ok     bool
}

func (f *fakeLatest) Latest() (tuner.AnalysisResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.ok
}

func (f *fakeLatest) set(r tuner.AnalysisResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result, f.ok = r, true
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn *net.UDPConn, timeout time.Duration) (Packet, error) {
	t.Helper()
	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return Packet{}, err
	}
	require.Equal(t, PacketSize, n)
	var p Packet
	require.NoError(t, p.UnmarshalBinary(buf[:n]))
	return p, nil
}

func TestPacketEncoding(t *testing.T) {
	a4, err := note.FromFrequency(441, 0)
	require.NoError(t, err)
	ts := time.Unix(1700000000, 123456789)

	pkt := FromResult(7, tuner.AnalysisResult{
		Sequence:      99,
		Timestamp:     ts,
		FundamentalHz: 441,
		PeakVolume:    32768,
		Note:          &a4,
	})
	b, err := pkt.AppendBinary(nil)
	require.NoError(t, err)
	require.Len(t, b, PacketSize)

	var got Packet
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, uint32(7), got.Sequence)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, uint32(441), got.FundamentalHz)
	assert.Equal(t, uint16(32768), got.PeakVolume)
	assert.False(t, got.Gated)
	assert.Equal(t, int8(69), got.MIDI)
	assert.InDelta(t, a4.Cents, float64(got.Cents), 1e-4)

	assert.ErrorIs(t, got.UnmarshalBinary(b[:PacketSize-1]), ErrShortPacket)
}

func TestFromResultWithoutNote(t *testing.T) {
	pkt := FromResult(1, tuner.AnalysisResult{Gated: true, PeakVolume: 10})
	assert.True(t, pkt.Gated)
	assert.Equal(t, int8(-1), pkt.MIDI)
	assert.Zero(t, pkt.FundamentalHz)
	assert.Zero(t, pkt.Cents)
}

func TestNewUDPPublisherValidation(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	_, err = NewUDPPublisher(time.Millisecond, nil, &fakeLatest{})
	assert.Error(t, err)
	_, err = NewUDPPublisher(time.Millisecond, sender, nil)
	assert.Error(t, err)

	p, err := NewUDPPublisher(0, sender, &fakeLatest{})
	require.NoError(t, err)
	assert.Equal(t, 16*time.Millisecond, p.interval)
}

func TestPublisherSendsEachResultOnce(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)

	src := &fakeLatest{}
	p, err := NewUDPPublisher(2*time.Millisecond, sender, src)
	require.NoError(t, err)
	p.Start()
	p.Start() // no-op while running
	defer p.Close()

	// Nothing to send before the first result.
	_, err = readPacket(t, conn, 20*time.Millisecond)
	assert.True(t, isTimeout(err), "unexpected packet or error: %v", err)

	src.set(tuner.AnalysisResult{Sequence: 1, FundamentalHz: 220, PeakVolume: 1000})
	got, err := readPacket(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.Sequence)
	assert.Equal(t, uint32(220), got.FundamentalHz)

	// The same result is not resent on later ticks.
	_, err = readPacket(t, conn, 20*time.Millisecond)
	assert.True(t, isTimeout(err), "result sent twice: %v", err)

	src.set(tuner.AnalysisResult{Sequence: 2, FundamentalHz: 330})
	got, err = readPacket(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.Sequence)
	assert.Equal(t, uint32(330), got.FundamentalHz)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
}

func TestSenderClosed(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)

	require.NoError(t, sender.Send([]byte{1, 2, 3}))
	packets, bytes := sender.Stats()
	assert.Equal(t, uint64(1), packets)
	assert.Equal(t, uint64(3), bytes)
	assert.Equal(t, conn.LocalAddr().String(), sender.RemoteAddr().String())

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send([]byte{1}), ErrSenderClosed)
}

func TestSenderBadAddress(t *testing.T) {
	_, err := NewUDPSender("not an address")
	assert.Error(t, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
