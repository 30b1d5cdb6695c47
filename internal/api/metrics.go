package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/presence-core/internal/device"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Registry      device.Stats    `json:"registry"`
	Snapshot      SnapshotMetrics `json:"snapshot"`
	Ingest        *LoopMetrics    `json:"ingest,omitempty"`
	Publish       *LoopMetrics    `json:"publish,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// SnapshotMetrics describes the current discovery snapshot.
type SnapshotMetrics struct {
	Devices      int    `json:"devices"`
	ReceivedAt   string `json:"received_at,omitempty"`
	Replacements uint64 `json:"replacements"`
	Dirty        bool   `json:"dirty"`
}

// LoopMetrics is the state and counters of one loop.
type LoopMetrics struct {
	State string `json:"state"`
	Stats any    `json:"stats"`
}

// handleMetrics returns runtime, bus, registry and loop statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	devices, receivedAt := s.coord.SnapshotInfo()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Registry: s.registry.Stats(),
		Snapshot: SnapshotMetrics{
			Devices:      devices,
			Replacements: s.coord.Replacements(),
			Dirty:        s.coord.IsDirty(),
		},
	}
	if !receivedAt.IsZero() {
		metrics.Snapshot.ReceivedAt = receivedAt.UTC().Format(time.RFC3339)
	}

	if s.bus != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.bus.IsConnected(),
		}
	}
	if s.ingest != nil {
		metrics.Ingest = &LoopMetrics{State: s.ingest.State().String(), Stats: s.ingest.Stats()}
	}
	if s.publish != nil {
		metrics.Publish = &LoopMetrics{State: s.publish.State().String(), Stats: s.publish.Stats()}
	}

	writeJSON(w, http.StatusOK, metrics)
}
