package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/presence-core/internal/device"
	"github.com/nerrad567/presence-core/internal/infrastructure/mqtt"
)

// mapLookup is a read-only registry for aggregation tests.
type mapLookup map[string]device.Settings

func (m mapLookup) Get(mac string) (device.Settings, bool) {
	s, ok := m[mac]
	return s, ok
}

// memRepository is an in-memory device.Repository.
type memRepository struct {
	mu        sync.Mutex
	entries   map[string]device.Settings
	upsertErr error
}

func newMemRepository() *memRepository {
	return &memRepository{entries: make(map[string]device.Settings)}
}

func (r *memRepository) List(_ context.Context) ([]device.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]device.Settings, 0, len(r.entries))
	for _, s := range r.entries {
		list = append(list, s)
	}
	return list, nil
}

func (r *memRepository) Upsert(_ context.Context, s device.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.entries[s.MACAddress] = s
	return nil
}

func newTestRegistry(t *testing.T, entries ...device.Settings) (*device.Registry, *memRepository) {
	t.Helper()
	repo := newMemRepository()
	for _, s := range entries {
		repo.entries[s.MACAddress] = s
	}
	reg := device.NewRegistry(repo)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return reg, repo
}

// fakeBus implements Subscriber and Publisher.
type fakeBus struct {
	mu             sync.Mutex
	handler        mqtt.MessageHandler
	failSubscribes int
	subscribeCalls int
	publishErr     error
	published      [][]byte

	subscribed chan struct{}
	publishCh  chan []byte
	connected  atomic.Bool
}

func newFakeBus() *fakeBus {
	b := &fakeBus{
		subscribed: make(chan struct{}),
		publishCh:  make(chan []byte, 16),
	}
	b.connected.Store(true)
	return b
}

func (b *fakeBus) SubscribeDiscovery(handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribeCalls++
	if b.subscribeCalls <= b.failSubscribes {
		return mqtt.ErrNotConnected
	}
	b.handler = handler
	close(b.subscribed)
	return nil
}

func (b *fakeBus) SubscribeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribeCalls
}

func (b *fakeBus) deliver(t *testing.T, payload string) {
	t.Helper()
	select {
	case <-b.subscribed:
	case <-time.After(time.Second):
		t.Fatal("loop never subscribed")
	}
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if err := handler("presence/devices", []byte(payload)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func (b *fakeBus) PublishStatus(payload []byte) error {
	b.mu.Lock()
	err := b.publishErr
	if err == nil {
		b.published = append(b.published, payload)
	}
	b.mu.Unlock()

	if err != nil {
		return err
	}
	b.publishCh <- payload
	return nil
}

func (b *fakeBus) IsConnected() bool {
	return b.connected.Load()
}

func (b *fakeBus) PublishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

var errBroker = errors.New("broker unavailable")

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// runLoop starts run in a goroutine and returns a channel carrying its
// result.
func runLoop(ctx context.Context, run func(context.Context) error) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()
	return errCh
}

func waitStopped(t *testing.T, name string, errCh <-chan error, within time.Duration) {
	t.Helper()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("%s Run() error = %v, want nil", name, err)
		}
	case <-time.After(within):
		t.Fatalf("%s did not stop within %v", name, within)
	}
}

func alice(mac, deviceAlias string, vis device.Visibility) device.Settings {
	return device.Settings{
		UserAlias:   "alice",
		DeviceAlias: deviceAlias,
		MACAddress:  mac,
		Visibility:  vis,
	}
}
