package health

import (
	"context"
	"sync"
	"time"
)

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Monitor aggregates health status from the collector's dependencies. The
// database is load-bearing, so its failure is critical; the validation cache
// only degrades service.
type Monitor struct {
	db         Pinger
	cache      Pinger
	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. cache may be nil when the
// collector runs without Redis.
func NewMonitor(db, cache Pinger) *Monitor {
	return &Monitor{db: db, cache: cache}
}

// CheckHealth probes every dependency and aggregates a report.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering dependencies from probes
	if time.Since(m.lastCheck) < 10*time.Second && len(m.lastReport.Components) > 0 {
		return m.lastReport
	}

	report := Report{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}

	db := ComponentHealth{Component: "database", Status: StatusHealthy}
	if m.db == nil {
		db.Status = StatusCritical
		db.Error = "not configured"
	} else if err := m.db.Ping(ctx); err != nil {
		db.Status = StatusCritical
		db.Error = err.Error()
	}
	report.Components["database"] = db

	if m.cache != nil {
		cache := ComponentHealth{Component: "cache", Status: StatusHealthy}
		if err := m.cache.Ping(ctx); err != nil {
			cache.Status = StatusDegraded
			cache.Error = err.Error()
		}
		report.Components["cache"] = cache
	}

	// Worst case wins
	for _, c := range report.Components {
		if c.Status == StatusCritical {
			report.SystemStatus = StatusCritical
			break
		}
		if c.Status == StatusDegraded {
			report.SystemStatus = StatusDegraded
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
