package services

import (
	"log"
	"sync"
	"time"

	"lostandfound/internal/models"
	"lostandfound/internal/repositories"
)

// DetectorService is a read-side aggregator over the auth event log. It keeps
// no state of its own beyond a cached snapshot; every number is recomputed
// from the log, so a restart loses nothing.
type DetectorService struct {
	events repositories.AuthEventRepository

	threshold int
	window    time.Duration // suspicious lookback, default 24h
	recent    time.Duration // recent-failure window, default 1h

	mu   sync.RWMutex
	last *models.DetectorSnapshot
}

func NewDetectorService(events repositories.AuthEventRepository, threshold int, window, recent time.Duration) *DetectorService {
	return &DetectorService{
		events:    events,
		threshold: threshold,
		window:    window,
		recent:    recent,
	}
}

// Snapshot recomputes the live statistics and refreshes the cache.
func (d *DetectorService) Snapshot() (*models.DetectorSnapshot, error) {
	now := time.Now()

	recentFailures, err := d.events.CountSince(now.Add(-d.recent), true)
	if err != nil {
		return nil, err
	}
	lastHour, err := d.events.CountSince(now.Add(-time.Hour), false)
	if err != nil {
		return nil, err
	}
	lastDay, err := d.events.CountSince(now.Add(-24*time.Hour), false)
	if err != nil {
		return nil, err
	}
	suspicious, err := d.events.FailureCounts(models.EventLogin, now.Add(-d.window), d.threshold)
	if err != nil {
		return nil, err
	}

	snap := &models.DetectorSnapshot{
		RecentFailures:        recentFailures,
		LastHour:              lastHour,
		LastDay:               lastDay,
		SuspiciousIdentifiers: suspicious,
		GeneratedAt:           now,
	}

	d.mu.Lock()
	d.last = snap
	d.mu.Unlock()
	return snap, nil
}

// Cached returns the last computed snapshot, or nil before the first refresh.
func (d *DetectorService) Cached() *models.DetectorSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Start runs the dashboard refresh loop. The returned stop function ends the
// loop; no cycle outlives it.
func (d *DetectorService) Start(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if snap, err := d.Snapshot(); err != nil {
					log.Printf("[detector][refresh] failed: %v", err)
				} else if len(snap.SuspiciousIdentifiers) > 0 {
					log.Printf("[detector][refresh] suspicious=%d recent_failures=%d",
						len(snap.SuspiciousIdentifiers), snap.RecentFailures)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
