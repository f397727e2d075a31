// Package link owns the datagram endpoint of a single vehicle: it binds the
// configured local address, learns the remote peer from inbound frames,
// decodes the MAVLink stream and sends built command frames back.
package link

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/akorchak/groundlink/internal/mavlink"
)

var (
	// ErrBindFailed is returned when the local endpoint cannot be bound.
	ErrBindFailed = errors.New("link: bind failed")

	// ErrHeartbeatTimeout is reported when no HEARTBEAT arrives within the
	// watchdog window.
	ErrHeartbeatTimeout = errors.New("link: heartbeat timeout")

	// ErrPeerUnknown is returned when a command is sent before any frame
	// has been received, so no destination is known.
	ErrPeerUnknown = errors.New("link: peer address unknown")

	// ErrNotConnected is returned when a command is sent on a link that is
	// not connected.
	ErrNotConnected = errors.New("link: not connected")
)

// Status is the lifecycle state of a vehicle link.
type Status int

const (
	StatusRegistered Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Sink receives decoded messages and lifecycle changes from a link. The
// manager implements it; links never hold a manager reference.
type Sink interface {
	HandleMessage(droneID int64, msg mavlink.Message)
	HandleStatus(droneID int64, status Status, err error)
}

const (
	defaultHeartbeatTimeout = 10 * time.Second
	defaultRebindInterval   = 5 * time.Second
	framingLogWindow        = 10 * time.Second
	readBufferSize          = 2048
)

// Link is one bound UDP endpoint serving one vehicle.
type Link struct {
	droneID  int64
	endpoint Endpoint
	sink     Sink
	enc      *mavlink.Encoder

	heartbeatTimeout time.Duration
	rebindInterval   time.Duration
	watchdogInterval time.Duration

	mu              sync.Mutex
	conn            *net.UDPConn
	status          Status
	peer            *net.UDPAddr
	peerOverride    *net.UDPAddr
	targetSystem    byte
	targetComponent byte
	lastHeartbeat   time.Time
	decodeErrors    uint64
	closed          chan struct{}
	closeOnce       sync.Once

	logWindowStart time.Time
	logWindowCount uint64
}

// New creates a link in the registered state.
func New(droneID int64, endpoint Endpoint, sink Sink) *Link {
	return &Link{
		droneID:          droneID,
		endpoint:         endpoint,
		sink:             sink,
		enc:              mavlink.NewEncoder(),
		heartbeatTimeout: defaultHeartbeatTimeout,
		rebindInterval:   defaultRebindInterval,
		watchdogInterval: time.Second,
		status:           StatusRegistered,
		closed:           make(chan struct{}),
	}
}

// Connect binds the local endpoint and starts the receive loop and heartbeat
// watchdog. The link reaches connected only once the first valid frame
// arrives and the peer is learned.
func (l *Link) Connect() error {
	switch l.endpoint.Protocol {
	case "udp", "udpin":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedProtocol, l.endpoint.Protocol)
	}

	l.mu.Lock()
	if l.status == StatusConnecting || l.status == StatusConnected {
		l.mu.Unlock()
		return nil
	}
	notify := l.setStatusLocked(StatusConnecting, nil)
	l.mu.Unlock()
	notify()

	conn, err := l.bind()
	if err != nil {
		l.mu.Lock()
		notify = l.setStatusLocked(StatusDisconnected, err)
		l.mu.Unlock()
		notify()
		return err
	}

	l.mu.Lock()
	l.conn = conn
	l.lastHeartbeat = time.Now()
	l.mu.Unlock()

	go l.recvLoop(conn)
	go l.watchdog()
	return nil
}

func (l *Link) bind() (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", l.endpoint.BindAddr())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	return conn, nil
}

// recvLoop reads datagrams until the socket is closed. A socket error while
// the link is still open moves it to reconnecting and rebinds on an interval.
func (l *Link) recvLoop(conn *net.UDPConn) {
	dec := &mavlink.Decoder{}
	buf := make([]byte, readBufferSize)

	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.closed:
				return
			default:
			}
			l.reconnect(err)
			return
		}
		l.handleDatagram(dec, buf[:n], src)
	}
}

func (l *Link) handleDatagram(dec *mavlink.Decoder, data []byte, src *net.UDPAddr) {
	dec.Push(data)
	for {
		frame, err := dec.Next()
		if err != nil {
			l.countDecodeError(err)
			continue
		}
		if frame == nil {
			return
		}
		l.handleFrame(frame, src)
	}
}

func (l *Link) handleFrame(frame *mavlink.Frame, src *net.UDPAddr) {
	msg := frame.Message()

	l.mu.Lock()
	if l.peer == nil {
		l.peer = src
		log.Printf("link[%d]: learned peer %s", l.droneID, src)
	} else if l.peer.Port != src.Port || !l.peer.IP.Equal(src.IP) {
		log.Printf("link[%d]: peer changed %s -> %s", l.droneID, l.peer, src)
		l.peer = src
	}
	l.targetSystem = frame.SystemID
	l.targetComponent = frame.ComponentID
	if _, ok := msg.(mavlink.Heartbeat); ok {
		l.lastHeartbeat = time.Now()
	}
	notify := func() {}
	if l.status == StatusConnecting || l.status == StatusReconnecting {
		notify = l.setStatusLocked(StatusConnected, nil)
	}
	l.mu.Unlock()

	notify()
	l.sink.HandleMessage(l.droneID, msg)
}

// countDecodeError tallies framing failures; at most one error line is logged
// per window, preceded by a count of the errors suppressed in the previous
// window, so a noisy transport cannot flood the log.
func (l *Link) countDecodeError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.decodeErrors++
	now := time.Now()
	if now.Sub(l.logWindowStart) >= framingLogWindow {
		if l.logWindowCount > 1 {
			log.Printf("link[%d]: %d framing errors suppressed in last window", l.droneID, l.logWindowCount-1)
		}
		log.Printf("link[%d]: %v", l.droneID, err)
		l.logWindowStart = now
		l.logWindowCount = 0
	}
	l.logWindowCount++
}

// watchdog disconnects the link when no HEARTBEAT has been seen for the
// timeout window. An explicit reconnect is required afterwards; a silent
// resurrection would hide flapping vehicles from the operator.
func (l *Link) watchdog() {
	ticker := time.NewTicker(l.watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.closed:
			return
		case <-ticker.C:
			l.mu.Lock()
			expired := time.Since(l.lastHeartbeat) > l.heartbeatTimeout
			l.mu.Unlock()
			if expired {
				l.close(StatusDisconnected, ErrHeartbeatTimeout)
				return
			}
		}
	}
}

// reconnect rebinds the socket on an interval after an unexpected loss.
func (l *Link) reconnect(cause error) {
	l.mu.Lock()
	notify := l.setStatusLocked(StatusReconnecting, cause)
	l.mu.Unlock()
	notify()

	ticker := time.NewTicker(l.rebindInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.closed:
			return
		case <-ticker.C:
			conn, err := l.bind()
			if err != nil {
				log.Printf("link[%d]: rebind failed: %v", l.droneID, err)
				continue
			}
			l.mu.Lock()
			l.conn = conn
			l.lastHeartbeat = time.Now()
			l.mu.Unlock()
			go l.recvLoop(conn)
			return
		}
	}
}

// Send transmits a built frame to the learned peer, or to the configured
// override when one is set. Datagram delivery is best effort.
func (l *Link) Send(frame []byte) error {
	l.mu.Lock()
	conn := l.conn
	status := l.status
	dest := l.peerOverride
	if dest == nil {
		dest = l.peer
	}
	l.mu.Unlock()

	if conn == nil || status == StatusDisconnected || status == StatusRegistered {
		return ErrNotConnected
	}
	if dest == nil {
		return ErrPeerUnknown
	}
	if _, err := conn.WriteToUDP(frame, dest); err != nil {
		return fmt.Errorf("link: send: %w", err)
	}
	return nil
}

// Disconnect closes the socket and stops the receive loop and watchdog.
// It is idempotent.
func (l *Link) Disconnect() {
	l.close(StatusDisconnected, nil)
}

func (l *Link) close(status Status, cause error) {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.mu.Lock()
		if l.conn != nil {
			l.conn.Close()
			l.conn = nil
		}
		notify := l.setStatusLocked(status, cause)
		l.mu.Unlock()
		notify()
	})
}

// setStatusLocked updates the status and returns the sink notification to
// run after the lock is released, preserving event order without holding the
// mutex across the callback.
func (l *Link) setStatusLocked(status Status, cause error) func() {
	if l.status == status {
		return func() {}
	}
	l.status = status
	sink, id := l.sink, l.droneID
	return func() { sink.HandleStatus(id, status, cause) }
}

// Status returns the current lifecycle state.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Peer returns the learned peer address, or nil before the first frame.
func (l *Link) Peer() *net.UDPAddr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peer
}

// SetPeerOverride pins the command destination, overriding the learned peer.
// Passing nil reverts to the learned peer.
func (l *Link) SetPeerOverride(addr *net.UDPAddr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peerOverride = addr
}

// Target returns the system and component IDs observed on inbound frames,
// used to address outbound commands.
func (l *Link) Target() (system, component byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.targetSystem, l.targetComponent
}

// Encoder returns the link's outbound frame encoder.
func (l *Link) Encoder() *mavlink.Encoder {
	return l.enc
}

// DecodeErrors returns the number of framing failures seen so far.
func (l *Link) DecodeErrors() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decodeErrors
}

// Endpoint returns the configured transport descriptor.
func (l *Link) Endpoint() Endpoint {
	return l.endpoint
}

// LocalAddr returns the bound local address, or nil before Connect.
func (l *Link) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}
