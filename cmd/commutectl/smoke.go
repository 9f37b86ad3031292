package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type smokeConfig struct {
	BaseURL      string
	PredictorURL string
	DSN          string
	RedisAddr    string
	Timeout      time.Duration
	Concurrency  int
	Duration     time.Duration
	Strict       bool
}

type smokeResult struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type smokeCase struct {
	Name string
	Run  func(ctx context.Context, r *smokeRunner) smokeResult
}

type smokeRunner struct {
	cfg   smokeConfig
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

func newSmokeCmd() *cobra.Command {
	var cfg smokeConfig
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Check a running deployment: HTTP endpoints, Postgres, Redis and predictor load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
			cfg.PredictorURL = strings.TrimRight(cfg.PredictorURL, "/")
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			r := &smokeRunner{cfg: cfg, httpc: &http.Client{Timeout: 10 * time.Second}}
			defer r.close()
			results := r.runAll(ctx)

			out := cmd.OutOrStdout()
			pass, fail, skipped := 0, 0, 0
			for _, res := range results {
				fmt.Fprintf(out, "%-5s %-40s %8s %s\n", res.Status, res.Name, res.Latency.Round(time.Millisecond), res.Note)
				switch res.Status {
				case "PASS":
					pass++
				case "FAIL":
					fail++
				case "SKIP":
					skipped++
				}
			}
			fmt.Fprintf(out, "PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)
			if fail > 0 || (cfg.Strict && skipped > 0) {
				return fmt.Errorf("smoke: %d failed, %d skipped", fail, skipped)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "commute API base URL")
	fs.StringVar(&cfg.PredictorURL, "predictor-url", "http://localhost:8090", "predictor API base URL (empty to skip)")
	fs.StringVar(&cfg.DSN, "dsn", "", "Postgres DSN (empty to skip)")
	fs.StringVar(&cfg.RedisAddr, "redis", "", "Redis address (empty to skip)")
	fs.DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "total timeout")
	fs.IntVar(&cfg.Concurrency, "concurrency", 20, "workers for the predictor load check")
	fs.DurationVar(&cfg.Duration, "duration", 5*time.Second, "duration of the predictor load check")
	fs.BoolVar(&cfg.Strict, "strict", false, "treat skipped checks as failures")
	return cmd
}

func (r *smokeRunner) runAll(ctx context.Context) []smokeResult {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	cases := r.cases()
	results := make([]smokeResult, 0, len(cases))
	for _, tc := range cases {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
	}
	return results
}

func (r *smokeRunner) close() {
	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
}

func (r *smokeRunner) cases() []smokeCase {
	api := r.cfg.BaseURL
	predictor := r.cfg.PredictorURL
	arrival := time.Now().Add(2 * time.Hour).UTC()
	features := map[string]any{
		"arrival_time":     arrival,
		"route_features":   map[string]any{"baseline_duration": 1800, "current_traffic_delay": 300, "congestion_level": 2},
		"weather_features": map[string]any{"visibility": 10},
	}

	return []smokeCase{
		httpCheck("api health", http.MethodGet, api+"/health", nil, http.StatusOK),
		httpCheck("api metrics", http.MethodGet, api+"/metrics", nil, http.StatusOK),
		httpCheck("api rejects anonymous trips", http.MethodGet, api+"/api/trips", nil, http.StatusUnauthorized),
		httpCheck("api rejects anonymous location", http.MethodPut, api+"/api/location", map[string]float64{"lat": 1, "lng": 1}, http.StatusUnauthorized),
		skipUnless(predictor != "", httpCheck("predictor health", http.MethodGet, predictor+"/health", nil, http.StatusOK)),
		skipUnless(predictor != "", httpCheck("predictor predict", http.MethodPost, predictor+"/predict", features, http.StatusOK)),
		skipUnless(predictor != "", httpCheck("predictor rejects bad input", http.MethodPost, predictor+"/predict", map[string]any{}, http.StatusBadRequest)),
		skipUnless(predictor != "", smokeCase{Name: "predictor load", Run: func(ctx context.Context, r *smokeRunner) smokeResult {
			return predictorLoad(ctx, r, predictor+"/predict", features)
		}}),
		{Name: "postgres schema", Run: checkTables},
		{Name: "redis ping", Run: checkRedis},
	}
}

func skipUnless(ok bool, tc smokeCase) smokeCase {
	if ok {
		return tc
	}
	return smokeCase{Name: tc.Name, Run: func(context.Context, *smokeRunner) smokeResult {
		return smokeResult{Status: "SKIP", Note: "not configured"}
	}}
}

func httpCheck(name, method, url string, body any, want int) smokeCase {
	return smokeCase{
		Name: name,
		Run: func(ctx context.Context, r *smokeRunner) smokeResult {
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = bytes.NewReader(b)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return smokeResult{Status: "FAIL", Note: err.Error()}
			}
			req.Header.Set("Content-Type", "application/json")
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return smokeResult{Status: "FAIL", Note: err.Error()}
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			latency := time.Since(start)
			if resp.StatusCode != want {
				return smokeResult{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d want=%d", resp.StatusCode, want)}
			}
			return smokeResult{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		},
	}
}

func checkTables(ctx context.Context, r *smokeRunner) smokeResult {
	if r.db == nil {
		return smokeResult{Status: "SKIP", Note: "no database"}
	}
	start := time.Now()
	for _, table := range []string{"trips", "user_preferences", "trip_feedback"} {
		var exists bool
		err := r.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists)
		if err != nil {
			return smokeResult{Status: "FAIL", Note: err.Error()}
		}
		if !exists {
			return smokeResult{Status: "FAIL", Note: "missing table " + table}
		}
	}
	return smokeResult{Status: "PASS", Latency: time.Since(start)}
}

func checkRedis(ctx context.Context, r *smokeRunner) smokeResult {
	if r.redis == nil {
		return smokeResult{Status: "SKIP", Note: "no redis"}
	}
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return smokeResult{Status: "FAIL", Note: err.Error()}
	}
	return smokeResult{Status: "PASS", Latency: time.Since(start)}
}

func predictorLoad(ctx context.Context, r *smokeRunner, url string, payload any) smokeResult {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var ok, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			for time.Now().Before(end) && gctx.Err() == nil {
				req, err := http.NewRequestWithContext(gctx, http.MethodPost, url, bytes.NewReader(b))
				if err != nil {
					return err
				}
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					failed.Add(1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					ok.Add(1)
				} else {
					failed.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return smokeResult{Status: "FAIL", Note: err.Error()}
	}
	if ok.Load() == 0 {
		return smokeResult{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(ok.Load()) / r.cfg.Duration.Seconds()
	return smokeResult{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, failed.Load())}
}
