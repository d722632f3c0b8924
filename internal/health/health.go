package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner runs all checkers concurrently under a shared timeout and
// caches the combined result for cacheTTL.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration
	checkers []Checker
	now      func() time.Time

	mu       sync.Mutex
	cachedAt time.Time
	ready    bool
	results  []CheckResult
}

func NewProbeRunner(timeout, cacheTTL time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL, checkers: checkers, now: time.Now}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cacheTTL > 0 && !p.cachedAt.IsZero() && p.now().Sub(p.cachedAt) < p.cacheTTL {
		return p.ready, p.results
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]CheckResult, len(p.checkers))
	var wg sync.WaitGroup
	for i, c := range p.checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}(i, c)
	}
	wg.Wait()

	ready := true
	for _, r := range results {
		if !r.Healthy {
			ready = false
		}
	}
	p.ready, p.results, p.cachedAt = ready, results, p.now()
	return ready, results
}

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	return timed("db", func() error {
		sqlDB, err := c.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	return timed("redis", func() error {
		if c.client == nil {
			return errors.New("redis client not configured")
		}
		return c.client.Ping(ctx).Err()
	})
}

func timed(name string, fn func() error) CheckResult {
	start := time.Now()
	err := fn()
	res := CheckResult{Name: name, Healthy: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
