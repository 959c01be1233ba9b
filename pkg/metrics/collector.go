package metrics

import (
	"context"
	"time"
)

// Sampler is the slice of the supervisor the collector needs
type Sampler interface {
	LiveCount() int
}

// CatalogSampler is the slice of the store the collector needs
type CatalogSampler interface {
	CountProjects(ctx context.Context) (int, error)
	CountUsers(ctx context.Context) (int, error)
}

// Collector periodically samples the registry and catalog into gauges
type Collector struct {
	supervisor Sampler
	catalog    CatalogSampler
	stopCh     chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(sup Sampler, catalog CatalogSampler) *Collector {
	return &Collector{
		supervisor: sup,
		catalog:    catalog,
		stopCh:     make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ProjectsRunning.Set(float64(c.supervisor.LiveCount()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if n, err := c.catalog.CountProjects(ctx); err == nil {
		ProjectsTotal.Set(float64(n))
	}
	if n, err := c.catalog.CountUsers(ctx); err == nil {
		UsersTotal.Set(float64(n))
	}
}
