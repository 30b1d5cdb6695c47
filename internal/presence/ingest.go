package presence

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/presence-core/internal/infrastructure/mqtt"
)

// DefaultWait is the bounded receive wait of both loops.
const DefaultWait = 2 * time.Second

// Subscriber delivers discovery payloads. *mqtt.Client satisfies it.
type Subscriber interface {
	SubscribeDiscovery(handler mqtt.MessageHandler) error
}

// IngestStats are counters for the metrics endpoint.
type IngestStats struct {
	Received  uint64 `json:"received"`
	Malformed uint64 `json:"malformed"`
	Dropped   uint64 `json:"dropped"`
}

// IngestLoop turns discovery messages into snapshot replacements.
//
// Bus callbacks only push into a bounded inbox; the loop itself decodes,
// replaces the coordinator snapshot and marks it dirty. A bad payload is
// logged and skipped and never ends the loop.
type IngestLoop struct {
	coord  *Coordinator
	sub    Subscriber
	inbox  *mqtt.Inbox
	wait   time.Duration
	logger Logger
	state  loopState

	received  atomic.Uint64
	malformed atomic.Uint64
}

// NewIngestLoop creates a loop that waits at most wait per iteration.
// A non-positive wait means DefaultWait.
func NewIngestLoop(coord *Coordinator, sub Subscriber, wait time.Duration) *IngestLoop {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &IngestLoop{
		coord:  coord,
		sub:    sub,
		inbox:  mqtt.NewInbox(mqtt.DefaultInboxSize),
		wait:   wait,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. Call before Run.
func (l *IngestLoop) SetLogger(logger Logger) {
	l.logger = logger
}

// State reports where the loop is in its lifecycle.
func (l *IngestLoop) State() LoopState {
	return l.state.get()
}

// Stats returns message counters.
func (l *IngestLoop) Stats() IngestStats {
	return IngestStats{
		Received:  l.received.Load(),
		Malformed: l.malformed.Load(),
		Dropped:   l.inbox.Dropped(),
	}
}

// Run subscribes to the discovery topic and processes messages until ctx
// is cancelled or the coordinator shuts down. A failed subscription is
// retried every wait interval. Run returns nil on a normal stop.
func (l *IngestLoop) Run(ctx context.Context) error {
	l.state.set(StateInit)
	defer l.state.set(StateStopped)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	for !l.subscribe() {
		timer.Reset(l.wait)
		select {
		case <-ctx.Done():
			return nil
		case <-l.coord.Done():
			return nil
		case <-timer.C:
		}
	}

	l.state.set(StateRunning)
	l.logger.Info("ingest loop running", "wait", l.wait)

	for {
		if ctx.Err() != nil || l.coord.ShuttingDown() {
			l.logger.Info("ingest loop stopped")
			return nil
		}

		timer.Reset(l.wait)
		select {
		case <-ctx.Done():
		case <-l.coord.Done():
		case msg := <-l.inbox.C():
			l.handle(msg)
		case <-timer.C:
		}
	}
}

func (l *IngestLoop) subscribe() bool {
	if err := l.sub.SubscribeDiscovery(l.inbox.Handler()); err != nil {
		l.logger.Warn("discovery subscription failed, retrying", "error", err, "retry_in", l.wait)
		return false
	}
	return true
}

func (l *IngestLoop) handle(msg mqtt.Message) {
	l.received.Add(1)

	snap, err := DecodeDiscovery(msg.Payload)
	if err != nil {
		l.malformed.Add(1)
		l.logger.Warn("ignoring malformed discovery payload",
			"topic", msg.Topic,
			"bytes", len(msg.Payload),
			"error", err,
		)
		return
	}

	snap.ReceivedAt = msg.Received
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = time.Now()
	}
	l.coord.ReplaceSnapshot(snap)
	l.coord.MarkDirty()

	l.logger.Debug("discovery snapshot replaced", "devices", snap.Len())
}
