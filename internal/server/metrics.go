package server

import (
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftline/driftline/internal/room"
)

// Rejection reasons counted by Metrics.
const (
	RejectOrigin    = "origin"
	RejectToken     = "token"
	RejectRoom      = "room"
	RejectRateLimit = "rate_limit"
	RejectFull      = "room_full"
	RejectStale     = "round_stale"
	RejectShutdown  = "shutdown"
)

// Metrics collects process counters. It also observes rooms to count
// creations and finished matches.
type Metrics struct {
	wsConnections   atomic.Int64
	framesDropped   atomic.Int64
	sendsDropped    atomic.Int64
	roomsCreated    atomic.Int64
	matchesFinished atomic.Int64
	startTime       time.Time

	mu       sync.Mutex
	rejected map[string]int64
	statuses map[roundKey]room.Status
}

// roundKey tells a rematch apart from the round it replaced.
type roundKey struct {
	id    string
	round int
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		rejected:  make(map[string]int64),
		statuses:  make(map[roundKey]room.Status),
	}
}

func (m *Metrics) IncrWSConn()       { m.wsConnections.Add(1) }
func (m *Metrics) DecrWSConn()       { m.wsConnections.Add(-1) }
func (m *Metrics) IncrFrameDropped() { m.framesDropped.Add(1) }
func (m *Metrics) IncrSendDropped()  { m.sendsDropped.Add(1) }

func (m *Metrics) IncrRejected(reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

func (m *Metrics) Rejected(reason string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

func (m *Metrics) RoomUpdated(info room.Info) {
	m.mu.Lock()
	key := roundKey{info.ID, info.Round}
	prev, seen := m.statuses[key]
	m.statuses[key] = info.Status
	m.mu.Unlock()

	if !seen {
		m.roomsCreated.Add(1)
	}
	if info.Status == room.StatusFinished && prev != room.StatusFinished {
		m.matchesFinished.Add(1)
	}
}

func (m *Metrics) RoomClosed(info room.Info) {
	m.mu.Lock()
	delete(m.statuses, roundKey{info.ID, info.Round})
	m.mu.Unlock()
}

// LiveRooms counts rooms seen and not yet closed, by status.
func (m *Metrics) LiveRooms() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, 3)
	for _, st := range m.statuses {
		out[st.String()]++
	}
	return out
}

// ServeHTTP exposes metrics as JSON at /metrics.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	rejected := make(map[string]int64, len(m.rejected))
	for k, v := range m.rejected {
		rejected[k] = v
	}
	m.mu.Unlock()

	writeJSON(w, map[string]any{
		"uptime_seconds":   int(time.Since(m.startTime).Seconds()),
		"ws_connections":   m.wsConnections.Load(),
		"rejected":         rejected,
		"frames_dropped":   m.framesDropped.Load(),
		"sends_dropped":    m.sendsDropped.Load(),
		"rooms_created":    m.roomsCreated.Load(),
		"matches_finished": m.matchesFinished.Load(),
		"live_rooms":       m.LiveRooms(),
		"goroutines":       runtime.NumGoroutine(),
		"heap_alloc_mb":    mem.HeapAlloc / 1024 / 1024,
		"sys_mb":           mem.Sys / 1024 / 1024,
	})
}
