package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	Client      *http.Client
}

type Result struct {
	TotalRequests int64
	Failures      int64
	RateLimited   int64
	StatusClasses map[string]int64
}

type recorder struct {
	total       atomic.Int64
	failures    atomic.Int64
	rateLimited atomic.Int64

	mu      sync.Mutex
	classes map[string]int64
}

func (r *recorder) observe(status int, err error) {
	r.total.Add(1)
	if err != nil {
		r.failures.Add(1)
		return
	}
	if status == http.StatusTooManyRequests {
		r.rateLimited.Add(1)
	} else if status >= 500 {
		r.failures.Add(1)
	}
	r.mu.Lock()
	r.classes[classifyStatusClass(status)]++
	r.mu.Unlock()
}

func (r *recorder) result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	classes := make(map[string]int64, len(r.classes))
	for k, v := range r.classes {
		classes[k] = v
	}
	return Result{
		TotalRequests: r.total.Load(),
		Failures:      r.failures.Load(),
		RateLimited:   r.rateLimited.Load(),
		StatusClasses: classes,
	}
}

// Run drives traffic at cfg.RPS for cfg.Duration. 429 responses are counted
// separately; transport errors and 5xx count as failures.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg.Profile = normalizeProfile(cfg.Profile)
	if err := validate(cfg); err != nil {
		return Result{}, err
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	// Only dispatch is bounded by Duration; requests already sent finish.
	dispatchCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	rec := &recorder{classes: map[string]int64{}}
	jobs := make(chan int64)
	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(w)))
		g.Go(func() error {
			for seq := range jobs {
				runScenario(ctx, cfg, rng, seq, rec)
			}
			return nil
		})
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	var seq int64
dispatch:
	for {
		select {
		case <-dispatchCtx.Done():
			break dispatch
		case <-ticker.C:
			seq++
			select {
			case jobs <- seq:
			case <-dispatchCtx.Done():
				break dispatch
			}
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil {
		return rec.result(), err
	}
	return rec.result(), nil
}

func validate(cfg Config) error {
	var errs []error
	if cfg.BaseURL == "" {
		errs = append(errs, errors.New("base url is required"))
	}
	if cfg.Duration <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}
	if cfg.RPS <= 0 {
		errs = append(errs, errors.New("rps must be positive"))
	}
	if cfg.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	switch cfg.Profile {
	case "health", "auth", "mixed":
	default:
		errs = append(errs, fmt.Errorf("unknown profile %q", cfg.Profile))
	}
	return errors.Join(errs...)
}

func runScenario(ctx context.Context, cfg Config, rng *rand.Rand, seq int64, rec *recorder) {
	profile := cfg.Profile
	if profile == "mixed" {
		profile = "health"
		if rng.Intn(4) == 0 {
			profile = "auth"
		}
	}
	if profile == "health" {
		status, _, err := do(ctx, cfg, http.MethodGet, "/health/live", "", nil)
		rec.observe(status, err)
		return
	}
	runAuthLifecycle(ctx, cfg, seq, rec)
}

type tokenBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// runAuthLifecycle walks signup, me, refresh and logout, stopping at the first
// step that does not succeed.
func runAuthLifecycle(ctx context.Context, cfg Config, seq int64, rec *recorder) {
	creds := map[string]string{
		"email":    fmt.Sprintf("loadgen-%d-%d@example.com", cfg.Seed, seq),
		"password": "loadgen-secret",
	}
	status, body, err := do(ctx, cfg, http.MethodPost, "/auth/signup", "", creds)
	rec.observe(status, err)
	if err != nil || status != http.StatusCreated {
		return
	}
	var tokens tokenBody
	if err := json.Unmarshal(body, &tokens); err != nil {
		return
	}

	status, _, err = do(ctx, cfg, http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	rec.observe(status, err)
	if err != nil || status != http.StatusOK {
		return
	}

	status, body, err = do(ctx, cfg, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": tokens.RefreshToken})
	rec.observe(status, err)
	if err != nil || status != http.StatusOK {
		return
	}
	var rotated tokenBody
	if err := json.Unmarshal(body, &rotated); err != nil {
		return
	}

	status, _, err = do(ctx, cfg, http.MethodPost, "/auth/logout", rotated.AccessToken, map[string]string{"refreshToken": rotated.RefreshToken})
	rec.observe(status, err)
}

func do(ctx context.Context, cfg Config, method, path, bearer string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := cfg.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, raw, err
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	if p == "" {
		return "mixed"
	}
	return p
}
