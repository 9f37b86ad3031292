// README: Snapshot service; cached, concurrent route+weather fetch with per-part fallbacks.
package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"commute/internal/logging"
	"commute/internal/maps"
	"commute/internal/metrics"
	"commute/internal/types"
	"commute/internal/weather"
)

type RouteProvider interface {
	GetRoute(ctx context.Context, origin, destination types.Coordinate) (maps.RouteInfo, error)
}

type WeatherProvider interface {
	GetCurrentWeather(ctx context.Context, at types.Coordinate) (weather.Data, error)
}

// Options tunes caching and provider calls. Zero fields take the defaults.
type Options struct {
	TTL             time.Duration // entry is fresh below this age
	FallbackTTL     time.Duration // stale entries still feed fallbacks below this age
	Bucket          time.Duration
	ProviderTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 90 * time.Second
	}
	if o.FallbackTTL < o.TTL {
		o.FallbackTTL = 30 * time.Minute
	}
	if o.Bucket <= 0 {
		o.Bucket = 5 * time.Minute
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 12 * time.Second
	}
	return o
}

type Service struct {
	route   RouteProvider
	weather WeatherProvider
	cache   Cache
	clock   types.Clock
	logger  *slog.Logger
	opts    Options

	writes sync.WaitGroup
}

func NewService(route RouteProvider, wx WeatherProvider, cache Cache, clock types.Clock, logger *slog.Logger, opts Options) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	opts = opts.withDefaults()
	if cache == nil {
		cache = NewMemoryCache(opts.FallbackTTL, clock)
	}
	return &Service{
		route:   route,
		weather: wx,
		cache:   cache,
		clock:   clock,
		logger:  logging.OrDefault(logger).With("component", "snapshot"),
		opts:    opts,
	}
}

// Snapshot returns travel conditions for the trip. It never fails: provider
// errors degrade to cached or synthetic data with lower confidence.
func (s *Service) Snapshot(ctx context.Context, origin, destination types.Coordinate, arrival time.Time) Snapshot {
	key := NewKey(origin, destination, arrival, s.opts.Bucket)
	now := s.clock.Now()

	cached, hasCached := s.lookup(ctx, key, now)
	if hasCached && now.Sub(cached.StoredAt) < s.opts.TTL {
		metrics.SnapshotCache.WithLabelValues("hit").Inc()
		return cached.Snapshot
	}
	metrics.SnapshotCache.WithLabelValues("miss").Inc()

	var (
		route           maps.RouteInfo
		wx              weather.Data
		routeErr, wxErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
		defer cancel()
		route, routeErr = s.route.GetRoute(cctx, origin, destination)
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
		defer cancel()
		wx, wxErr = s.weather.GetCurrentWeather(cctx, destination)
		return nil
	})
	_ = g.Wait()

	snap := Snapshot{
		GeneratedAt:   s.clock.Now(),
		RouteSource:   SourceLive,
		WeatherSource: SourceLive,
	}

	if routeErr != nil {
		metrics.ProviderFailures.WithLabelValues("route").Inc()
		snap.RouteFallback = true
		if hasCached && cached.Snapshot.RouteSource != SourceSynthetic {
			route = cached.Snapshot.Route
			snap.RouteSource = SourceCached
		} else {
			route = syntheticRoute(origin, destination)
			snap.RouteSource = SourceSynthetic
		}
		metrics.Fallbacks.WithLabelValues("route", string(snap.RouteSource)).Inc()
		s.logger.Warn("route provider failed", "error", routeErr, "fallback", snap.RouteSource)
	}
	if wxErr != nil {
		metrics.ProviderFailures.WithLabelValues("weather").Inc()
		snap.WeatherFallback = true
		if hasCached && cached.Snapshot.WeatherSource != SourceSynthetic {
			wx = cached.Snapshot.Weather
			snap.WeatherSource = SourceCached
		} else {
			wx = mildWeather(snap.GeneratedAt)
			snap.WeatherSource = SourceSynthetic
		}
		metrics.Fallbacks.WithLabelValues("weather", string(snap.WeatherSource)).Inc()
		s.logger.Warn("weather provider failed", "error", wxErr, "fallback", snap.WeatherSource)
	}

	snap.Route = route
	snap.Weather = wx
	snap.HeuristicsDelay = heuristicsDelay(route, wx)
	if snap.RouteSource == SourceSynthetic && snap.WeatherSource == SourceSynthetic {
		snap.Confidence = float64(confidenceFloor) / 100
	} else {
		snap.Confidence = confidence(snap.RouteFallback, snap.WeatherFallback, route, wx)
	}
	snap.Explanation = explain(snap)

	// A snapshot with no live part would only re-date old data.
	if snap.RouteSource == SourceLive || snap.WeatherSource == SourceLive {
		s.store(ctx, key, Entry{Snapshot: snap, StoredAt: snap.GeneratedAt})
	}
	return snap
}

// lookup returns a cache entry still usable as a fallback source.
func (s *Service) lookup(ctx context.Context, key Key, now time.Time) (Entry, bool) {
	e, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", "key", key.String(), "error", err)
		return Entry{}, false
	}
	if !ok || now.Sub(e.StoredAt) >= s.opts.FallbackTTL {
		return Entry{}, false
	}
	return e, true
}

// store writes in the background; a failed write only costs a future cache miss.
func (s *Service) store(ctx context.Context, key Key, e Entry) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ProviderTimeout)
		defer cancel()
		if err := s.cache.Put(wctx, key, e); err != nil {
			s.logger.Warn("snapshot cache write failed", "key", key.String(), "error", err)
		}
	}()
}

// Flush waits for pending cache writes.
func (s *Service) Flush() {
	s.writes.Wait()
}
