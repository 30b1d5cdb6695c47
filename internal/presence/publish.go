package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher sends encoded summaries to the status topic. *mqtt.Client
// satisfies it; PublishStatus must bound its own wait.
type Publisher interface {
	PublishStatus(payload []byte) error
	IsConnected() bool
}

// Observer receives every summary the publish loop computes, whether or
// not the bus publish succeeded. Observers must not block.
type Observer interface {
	ObserveSummary(Summary)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Summary)

// ObserveSummary calls f(s).
func (f ObserverFunc) ObserveSummary(s Summary) { f(s) }

// PublishStats are counters for the metrics endpoint.
type PublishStats struct {
	Published     uint64    `json:"published"`
	Failed        uint64    `json:"failed"`
	Connected     bool      `json:"connected"`
	LastPublished time.Time `json:"last_published,omitempty"`
}

// PublishLoop republishes the summary whenever the coordinator is dirty.
//
// Each dirty event produces exactly one publish attempt of the latest
// state; the event is consumed before publishing, so failures are not
// retried until something marks the state dirty again. Between events the
// loop wakes every wait interval to observe the bus connection.
type PublishLoop struct {
	coord  *Coordinator
	reg    Lookup
	pub    Publisher
	wait   time.Duration
	logger Logger
	state  loopState

	observersMu sync.RWMutex
	observers   []Observer

	connected     atomic.Bool
	published     atomic.Uint64
	failed        atomic.Uint64
	lastPublished atomic.Int64
}

// NewPublishLoop creates a loop publishing Aggregate(reg, snapshot).
// A non-positive wait means DefaultWait.
func NewPublishLoop(coord *Coordinator, reg Lookup, pub Publisher, wait time.Duration) *PublishLoop {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &PublishLoop{
		coord:  coord,
		reg:    reg,
		pub:    pub,
		wait:   wait,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. Call before Run.
func (l *PublishLoop) SetLogger(logger Logger) {
	l.logger = logger
}

// AddObserver registers o for every computed summary.
func (l *PublishLoop) AddObserver(o Observer) {
	l.observersMu.Lock()
	l.observers = append(l.observers, o)
	l.observersMu.Unlock()
}

// State reports where the loop is in its lifecycle.
func (l *PublishLoop) State() LoopState {
	return l.state.get()
}

// Stats returns publish counters.
func (l *PublishLoop) Stats() PublishStats {
	stats := PublishStats{
		Published: l.published.Load(),
		Failed:    l.failed.Load(),
		Connected: l.connected.Load(),
	}
	if ms := l.lastPublished.Load(); ms > 0 {
		stats.LastPublished = time.UnixMilli(ms)
	}
	return stats
}

// Run publishes until ctx is cancelled or the coordinator shuts down.
// A dirty flag still pending at shutdown is not flushed. Run returns nil
// on a normal stop.
func (l *PublishLoop) Run(ctx context.Context) error {
	l.state.set(StateInit)
	defer l.state.set(StateStopped)

	ticker := time.NewTicker(l.wait)
	defer ticker.Stop()

	l.connected.Store(l.pub.IsConnected())
	l.state.set(StateRunning)
	l.logger.Info("publish loop running", "wait", l.wait, "connected", l.connected.Load())

	for {
		if ctx.Err() != nil || l.coord.ShuttingDown() {
			l.logger.Info("publish loop stopped")
			return nil
		}

		select {
		case <-ctx.Done():
		case <-l.coord.Done():
		case <-ticker.C:
			l.checkConnection()
		case <-l.coord.Dirty():
			l.checkConnection()
			l.publish()
		}
	}
}

func (l *PublishLoop) checkConnection() {
	now := l.pub.IsConnected()
	was := l.connected.Swap(now)
	switch {
	case was && !now:
		l.logger.Warn("bus connection lost")
	case !was && now:
		l.logger.Info("bus connection restored")
	}
}

func (l *PublishLoop) publish() {
	summary := l.coord.Current(l.reg)

	payload, err := EncodeSummary(summary)
	if err != nil {
		l.failed.Add(1)
		l.logger.Error("encoding presence summary failed", "error", err)
		return
	}

	if err := l.pub.PublishStatus(payload); err != nil {
		l.failed.Add(1)
		l.logger.Warn("publishing presence summary failed", "error", err)
	} else {
		l.published.Add(1)
		l.lastPublished.Store(time.Now().UnixMilli())
		l.logger.Debug("presence summary published",
			"people", summary.PeopleCount,
			"devices", summary.DeviceCount,
			"unknown", summary.UnknownDevicesCount,
		)
	}

	l.observersMu.RLock()
	observers := l.observers
	l.observersMu.RUnlock()
	for _, o := range observers {
		o.ObserveSummary(summary)
	}
}
