// Package redis opens the shared Redis connection used by the privacy ledger
// and exposes its pool statistics to Prometheus.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"devcred/internal/platform/config"
)

// Client wraps the go-redis client. The privacy ledger runs its check-and-debit
// scripts through it.
type Client struct {
	*redis.Client
}

// New connects and pings. Pool statistics are registered with reg when it is
// non-nil.
func New(ctx context.Context, cfg config.RedisConfig, reg prometheus.Registerer) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if reg != nil {
		if err := reg.Register(poolCollector{c.Client}); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("register redis pool metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

var (
	poolHitsDesc     = prometheus.NewDesc("devcred_redis_pool_hits_total", "Connections found in the pool", nil, nil)
	poolMissesDesc   = prometheus.NewDesc("devcred_redis_pool_misses_total", "Connections not found in the pool", nil, nil)
	poolTimeoutsDesc = prometheus.NewDesc("devcred_redis_pool_timeouts_total", "Waits for a connection that timed out", nil, nil)
	poolStaleDesc    = prometheus.NewDesc("devcred_redis_pool_stale_conns_total", "Stale connections removed from the pool", nil, nil)
	poolTotalDesc    = prometheus.NewDesc("devcred_redis_pool_conns", "Connections in the pool", nil, nil)
	poolIdleDesc     = prometheus.NewDesc("devcred_redis_pool_idle_conns", "Idle connections in the pool", nil, nil)
)

// poolCollector reads PoolStats at scrape time. go-redis keeps the counters
// cumulative, so they map onto Prometheus counters directly.
type poolCollector struct {
	pool interface{ PoolStats() *redis.PoolStats }
}

func (poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{poolHitsDesc, poolMissesDesc, poolTimeoutsDesc, poolStaleDesc, poolTotalDesc, poolIdleDesc} {
		ch <- d
	}
}

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.PoolStats()
	ch <- prometheus.MustNewConstMetric(poolHitsDesc, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(poolMissesDesc, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(poolTimeoutsDesc, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(poolStaleDesc, prometheus.CounterValue, float64(s.StaleConns))
	ch <- prometheus.MustNewConstMetric(poolTotalDesc, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(s.IdleConns))
}
