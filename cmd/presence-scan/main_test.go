package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/infrastructure/logging"
	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/scan"
)

type fakeScanner struct {
	hosts []scan.Host
	err   error

	mu    sync.Mutex
	calls int
}

func (f *fakeScanner) Scan(context.Context) ([]scan.Host, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.hosts, f.err
}

func (f *fakeScanner) Self() scan.Interface {
	mac, _ := net.ParseMAC("02:00:00:00:00:01")
	return scan.Interface{
		Name:   "eth0",
		MAC:    mac,
		Addr:   netip.MustParseAddr("10.0.0.1"),
		Prefix: netip.MustParsePrefix("10.0.0.0/24"),
	}
}

func (f *fakeScanner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	err error

	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakePublisher) PublishDiscovery(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakePublisher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}

func TestSweep_PublishesDecodableSnapshot(t *testing.T) {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	s := &fakeScanner{hosts: []scan.Host{{IP: netip.MustParseAddr("10.0.0.5"), MAC: mac}}}
	pub := &fakePublisher{}

	if err := sweep(context.Background(), s, pub, "lab"); err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if pub.Count() != 1 {
		t.Fatalf("published %d payloads, want 1", pub.Count())
	}

	snap, err := presence.DecodeDiscovery(pub.payloads[0])
	if err != nil {
		t.Fatalf("DecodeDiscovery() error = %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("snapshot has %d devices, want 1", snap.Len())
	}
	got := snap.Devices[0]
	if got.IPv4 != "10.0.0.5" || got.DeviceMAC != "aa:bb:cc:dd:ee:ff" || got.Location != "lab" {
		t.Errorf("device = %+v", got)
	}
	if got.RemoteIP != "10.0.0.1" {
		t.Errorf("RemoteIP = %q, want scanner address", got.RemoteIP)
	}
}

func TestSweep_Errors(t *testing.T) {
	scanErr := errors.New("socket closed")
	pubErr := errors.New("broker gone")

	tests := []struct {
		name    string
		scanner *fakeScanner
		pub     *fakePublisher
		want    error
	}{
		{"scan fails", &fakeScanner{err: scanErr}, &fakePublisher{}, scanErr},
		{"publish fails", &fakeScanner{}, &fakePublisher{err: pubErr}, pubErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sweep(context.Background(), tt.scanner, tt.pub, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("sweep() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoop_SweepsUntilCancelled(t *testing.T) {
	s := &fakeScanner{}
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		loop(ctx, s, pub, "", 10*time.Millisecond, quietLogger())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pub.Count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	if pub.Count() < 3 {
		t.Errorf("published %d times, want at least 3", pub.Count())
	}
}

func TestLoop_KeepsGoingAfterFailure(t *testing.T) {
	s := &fakeScanner{err: errors.New("no reply")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		loop(ctx, s, &fakePublisher{}, "", 10*time.Millisecond, quietLogger())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if s.Calls() < 2 {
		t.Errorf("scan called %d times, want retries after failure", s.Calls())
	}
}
