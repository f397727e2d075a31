package link

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorchak/groundlink/internal/mavlink"
)

// recordingSink captures messages and status changes from a link.
type recordingSink struct {
	mu       sync.Mutex
	messages []mavlink.Message
	statuses []Status
	errs     []error
	msgCh    chan mavlink.Message
	statusCh chan Status
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		msgCh:    make(chan mavlink.Message, 64),
		statusCh: make(chan Status, 64),
	}
}

func (s *recordingSink) HandleMessage(_ int64, msg mavlink.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.msgCh <- msg
}

func (s *recordingSink) HandleStatus(_ int64, status Status, err error) {
	s.mu.Lock()
	s.statuses = append(s.statuses, status)
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	s.statusCh <- status
}

func (s *recordingSink) waitStatus(t *testing.T, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case got := <-s.statusCh:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %v", want)
		}
	}
}

// vehicleSocket is a fake autopilot endpoint on the loopback interface.
type vehicleSocket struct {
	conn *net.UDPConn
	enc  *mavlink.Encoder
}

func newVehicleSocket(t *testing.T) *vehicleSocket {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &vehicleSocket{conn: conn, enc: mavlink.NewEncoder()}
}

func (v *vehicleSocket) sendHeartbeat(t *testing.T, to net.Addr) {
	t.Helper()
	raw, err := v.enc.Encode(mavlink.MsgIDHeartbeat, mavlink.HeartbeatPayload())
	require.NoError(t, err)
	_, err = v.conn.WriteTo(raw, to)
	require.NoError(t, err)
}

func (v *vehicleSocket) recv(t *testing.T, timeout time.Duration) *mavlink.Frame {
	t.Helper()
	require.NoError(t, v.conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 512)
	n, _, err := v.conn.ReadFromUDP(buf)
	require.NoError(t, err)

	var d mavlink.Decoder
	d.Push(buf[:n])
	frame, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	return frame
}

func newTestLink(t *testing.T, sink Sink) *Link {
	t.Helper()
	l := New(1, Endpoint{Protocol: "udp", Host: "127.0.0.1", Port: 0}, sink)
	t.Cleanup(l.Disconnect)
	return l
}

func TestConnectUnsupportedProtocol(t *testing.T) {
	l := New(1, Endpoint{Protocol: "tcp", Host: "127.0.0.1", Port: 5760}, newRecordingSink())
	err := l.Connect()
	assert.ErrorIs(t, err, ErrUnsupportedProtocol)
}

func TestSendBeforeAnyFrameFailsPeerUnknown(t *testing.T) {
	sink := newRecordingSink()
	l := newTestLink(t, sink)
	require.NoError(t, l.Connect())

	err := l.Send([]byte{0x00})
	assert.ErrorIs(t, err, ErrPeerUnknown)
}

func TestSendBeforeConnectFailsNotConnected(t *testing.T) {
	l := New(1, Endpoint{Protocol: "udp", Host: "127.0.0.1", Port: 0}, newRecordingSink())
	err := l.Send([]byte{0x00})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPeerLearnedFromFirstFrame(t *testing.T) {
	sink := newRecordingSink()
	l := newTestLink(t, sink)
	require.NoError(t, l.Connect())

	vehicle := newVehicleSocket(t)
	vehicle.sendHeartbeat(t, l.LocalAddr())

	sink.waitStatus(t, StatusConnected, 2*time.Second)
	require.NotNil(t, l.Peer())
	assert.Equal(t, vehicle.conn.LocalAddr().(*net.UDPAddr).Port, l.Peer().Port)
}

func TestCommandRoutedToLearnedPeer(t *testing.T) {
	sink := newRecordingSink()
	l := newTestLink(t, sink)
	require.NoError(t, l.Connect())

	vehicle := newVehicleSocket(t)
	vehicle.sendHeartbeat(t, l.LocalAddr())
	sink.waitStatus(t, StatusConnected, 2*time.Second)

	sys, comp := l.Target()
	raw, err := l.Encoder().ArmDisarm(sys, comp, true)
	require.NoError(t, err)
	require.NoError(t, l.Send(raw))

	frame := vehicle.recv(t, 2*time.Second)
	assert.Equal(t, mavlink.MsgIDCommandLong, frame.MsgID)
	assert.Equal(t, byte(mavlink.GCSSystemID), frame.SystemID)
	assert.Equal(t, byte(mavlink.GCSComponentID), frame.ComponentID)
}

func TestPeerOverrideWins(t *testing.T) {
	sink := newRecordingSink()
	l := newTestLink(t, sink)
	require.NoError(t, l.Connect())

	vehicle := newVehicleSocket(t)
	vehicle.sendHeartbeat(t, l.LocalAddr())
	sink.waitStatus(t, StatusConnected, 2*time.Second)

	override := newVehicleSocket(t)
	l.SetPeerOverride(override.conn.LocalAddr().(*net.UDPAddr))

	raw, err := l.Encoder().ArmDisarm(1, 1, false)
	require.NoError(t, err)
	require.NoError(t, l.Send(raw))

	frame := override.recv(t, 2*time.Second)
	assert.Equal(t, mavlink.MsgIDCommandLong, frame.MsgID)
}

func TestHeartbeatWatchdogDisconnects(t *testing.T) {
	sink := newRecordingSink()
	l := newTestLink(t, sink)
	l.heartbeatTimeout = 80 * time.Millisecond
	l.watchdogInterval = 20 * time.Millisecond
	require.NoError(t, l.Connect())

	sink.waitStatus(t, StatusDisconnected, 2*time.Second)
	assert.Equal(t, StatusDisconnected, l.Status())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var sawTimeout bool
	for _, err := range sink.errs {
		if errors.Is(err, ErrHeartbeatTimeout) {
			sawTimeout = true
		}
	}
	assert.True(t, sawTimeout, "expected heartbeat timeout to be reported")
}

func TestDisconnectIdempotent(t *testing.T) {
	sink := newRecordingSink()
	l := newTestLink(t, sink)
	require.NoError(t, l.Connect())

	l.Disconnect()
	l.Disconnect()
	assert.Equal(t, StatusDisconnected, l.Status())
}

func TestDecodeFailureCountedNotFatal(t *testing.T) {
	sink := newRecordingSink()
	l := newTestLink(t, sink)
	require.NoError(t, l.Connect())

	vehicle := newVehicleSocket(t)

	// A datagram of garbage that contains a magic byte, then a valid frame.
	_, err := vehicle.conn.WriteTo([]byte{0xFD, 0x03, 0x00, 0x00, 0x01}, l.LocalAddr())
	require.NoError(t, err)
	vehicle.sendHeartbeat(t, l.LocalAddr())

	sink.waitStatus(t, StatusConnected, 2*time.Second)
	select {
	case msg := <-sink.msgCh:
		assert.IsType(t, mavlink.Heartbeat{}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame after garbage was not delivered")
	}
	assert.GreaterOrEqual(t, l.DecodeErrors(), uint64(1))
}
