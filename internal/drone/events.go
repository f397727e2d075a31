package drone

import (
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akorchak/groundlink/internal/link"
	"github.com/akorchak/groundlink/internal/mavlink"
	"github.com/akorchak/groundlink/internal/telemetry"
)

// TelemetryUpdate is published for every decoded message of every vehicle.
// Msg is the decoded message that caused the update; Snapshot is the
// vehicle's state after folding it in.
type TelemetryUpdate struct {
	DroneID  int64
	UserID   int64
	UIN      string
	Name     string
	Msg      mavlink.Message
	Snapshot telemetry.Snapshot
}

// LinkStatus is published when a vehicle link changes lifecycle state.
type LinkStatus struct {
	DroneID int64
	UserID  int64
	Status  link.Status
	Err     error
}

// Importance grades an operator message.
type Importance string

const (
	ImportanceNormal    Importance = "normal"
	ImportanceImportant Importance = "important"
	ImportanceWarning   Importance = "warning"
	ImportanceCritical  Importance = "critical"
)

// ParseImportance maps a string to an importance grade; invalid values
// clamp to normal.
func ParseImportance(s string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(s))) {
	case ImportanceImportant:
		return ImportanceImportant
	case ImportanceWarning:
		return ImportanceWarning
	case ImportanceCritical:
		return ImportanceCritical
	default:
		return ImportanceNormal
	}
}

// OperatorMessage is a human-authored notice routed to subscriber channels,
// either broadcast to every authenticated operator or targeted at the owner
// of one drone.
type OperatorMessage struct {
	Text       string     `json:"text"`
	Importance Importance `json:"importance"`
	Broadcast  bool       `json:"-"`
	DroneID    int64      `json:"droneId,omitempty"`
	OwnerID    int64      `json:"-"`
	SentAt     time.Time  `json:"sentAt"`
}

// Bus fans manager events out to typed subscriber channels. Subscribers
// attach at startup; publishing never blocks the telemetry hot path, a full
// subscriber simply misses updates.
type Bus struct {
	mu            sync.RWMutex
	telemetrySubs []chan TelemetryUpdate
	statusSubs    []chan LinkStatus
	operatorSubs  []chan OperatorMessage
	dropped       atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeTelemetry registers a telemetry consumer.
func (b *Bus) SubscribeTelemetry(buffer int) <-chan TelemetryUpdate {
	ch := make(chan TelemetryUpdate, buffer)
	b.mu.Lock()
	b.telemetrySubs = append(b.telemetrySubs, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeStatus registers a link-lifecycle consumer.
func (b *Bus) SubscribeStatus(buffer int) <-chan LinkStatus {
	ch := make(chan LinkStatus, buffer)
	b.mu.Lock()
	b.statusSubs = append(b.statusSubs, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeOperator registers an operator-message consumer.
func (b *Bus) SubscribeOperator(buffer int) <-chan OperatorMessage {
	ch := make(chan OperatorMessage, buffer)
	b.mu.Lock()
	b.operatorSubs = append(b.operatorSubs, ch)
	b.mu.Unlock()
	return ch
}

// PublishTelemetry delivers an update to every subscriber without blocking.
func (b *Bus) PublishTelemetry(u TelemetryUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.telemetrySubs {
		select {
		case ch <- u:
		default:
			if n := b.dropped.Add(1); n%1000 == 1 {
				log.Printf("bus: telemetry subscriber full, %d updates dropped so far", n)
			}
		}
	}
}

// PublishStatus delivers a lifecycle change to every subscriber.
func (b *Bus) PublishStatus(s LinkStatus) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.statusSubs {
		select {
		case ch <- s:
		default:
			log.Printf("bus: status subscriber full, dropping %v for drone %d", s.Status, s.DroneID)
		}
	}
}

// PublishOperator delivers an operator message to every subscriber.
func (b *Bus) PublishOperator(m OperatorMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.operatorSubs {
		select {
		case ch <- m:
		default:
			log.Printf("bus: operator subscriber full, dropping message")
		}
	}
}
