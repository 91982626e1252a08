package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// CampaignCounter reports how many campaign logs exist on disk
type CampaignCounter interface {
	CountCampaigns(ctx context.Context) (int, error)
}

// Collector handles periodic system gauge updates
type Collector struct {
	metrics   *Metrics
	campaigns CampaignCounter
	interval  time.Duration
	startTime time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a new metrics collector
func NewCollector(m *Metrics, campaigns CampaignCounter, interval time.Duration) *Collector {
	if interval == 0 {
		interval = 5 * time.Second
	}

	return &Collector{
		metrics:   m,
		campaigns: campaigns,
		interval:  interval,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the collector background task
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.updateSystemMetrics(ctx)
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// updateSystemMetrics periodically updates system gauges
func (c *Collector) updateSystemMetrics(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.collectSystemMetrics(ctx)
		}
	}
}

// collectSystemMetrics collects current system state
func (c *Collector) collectSystemMetrics(ctx context.Context) {
	// Update uptime
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())

	// Update goroutines
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	// Update stored campaign count
	if c.campaigns != nil {
		n, err := c.campaigns.CountCampaigns(ctx)
		if err == nil {
			c.metrics.CampaignsStored.Set(float64(n))
		}
	}
}
