// Package observability aggregates realtime counters and host metrics
// for the debug inspector and periodic log lines.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/mem"
)

// Stats is one snapshot of the realtime layer.
type Stats struct {
	SessionsOpen    int64   `json:"sessions_open"`
	SessionsTotal   uint64  `json:"sessions_total"`
	MessagesCreated uint64  `json:"messages_created"`
	EventsDelivered uint64  `json:"events_delivered"`
	EventsDropped   uint64  `json:"events_dropped"`
	RateLimited     uint64  `json:"rate_limited"`
	Goroutines      int     `json:"goroutines"`
	AllocMemMb      uint64  `json:"alloc_mem_mb"`
	HostMemUsedPct  float64 `json:"host_mem_used_pct"`
	NumGC           uint32  `json:"num_gc"`
}

// Monitoring collects counters from the transport and dispatcher with
// atomic operations only; it is safe for concurrent use.
type Monitoring struct {
	log *slog.Logger

	sessionsOpen    atomic.Int64
	sessionsTotal   atomic.Uint64
	messagesCreated atomic.Uint64
	eventsDelivered atomic.Uint64
	eventsDropped   atomic.Uint64
	rateLimited     atomic.Uint64
}

func NewMonitoring(log *slog.Logger) *Monitoring {
	return &Monitoring{log: log}
}

func (m *Monitoring) SessionOpened() {
	m.sessionsOpen.Add(1)
	m.sessionsTotal.Add(1)
}

func (m *Monitoring) SessionClosed()  { m.sessionsOpen.Add(-1) }
func (m *Monitoring) MessageCreated() { m.messagesCreated.Add(1) }
func (m *Monitoring) EventDelivered() { m.eventsDelivered.Add(1) }
func (m *Monitoring) EventDropped()   { m.eventsDropped.Add(1) }
func (m *Monitoring) RateLimited()    { m.rateLimited.Add(1) }

func (m *Monitoring) Snapshot() Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := Stats{
		SessionsOpen:    m.sessionsOpen.Load(),
		SessionsTotal:   m.sessionsTotal.Load(),
		MessagesCreated: m.messagesCreated.Load(),
		EventsDelivered: m.eventsDelivered.Load(),
		EventsDropped:   m.eventsDropped.Load(),
		RateLimited:     m.rateLimited.Load(),
		Goroutines:      runtime.NumGoroutine(),
		AllocMemMb:      ms.Alloc / 1024 / 1024,
		NumGC:           ms.NumGC,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.HostMemUsedPct = vm.UsedPercent
	}
	return stats
}

// Run logs a snapshot every interval until the context ends.
func (m *Monitoring) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Snapshot()
			m.log.Info("realtime stats",
				"sessions_open", s.SessionsOpen,
				"messages_created", s.MessagesCreated,
				"events_delivered", s.EventsDelivered,
				"events_dropped", s.EventsDropped,
				"rate_limited", s.RateLimited,
				"alloc_mem_mb", s.AllocMemMb,
				"host_mem_used_pct", s.HostMemUsedPct)
		}
	}
}
