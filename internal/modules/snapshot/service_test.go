package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commute/internal/maps"
	"commute/internal/types"
	"commute/internal/weather"
)

var (
	sanFrancisco = types.Coordinate{Lat: 37.7749, Lng: -122.4194}
	sanJose      = types.Coordinate{Lat: 37.3382, Lng: -121.8863}
	errOutage    = errors.New("provider outage")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubRoute struct {
	calls atomic.Int32
	info  maps.RouteInfo
	err   error
}

func (s *stubRoute) GetRoute(context.Context, types.Coordinate, types.Coordinate) (maps.RouteInfo, error) {
	s.calls.Add(1)
	return s.info, s.err
}

type stubWeather struct {
	calls atomic.Int32
	at    types.Coordinate
	data  weather.Data
	err   error
}

func (s *stubWeather) GetCurrentWeather(_ context.Context, at types.Coordinate) (weather.Data, error) {
	s.calls.Add(1)
	s.at = at
	return s.data, s.err
}

func clearRoute() maps.RouteInfo {
	return maps.RouteInfo{DistanceMeters: 77000, Duration: 50 * time.Minute, TrafficDelay: 2 * time.Minute}
}

func clearWeather() weather.Data {
	return weather.Data{TemperatureC: 18, Conditions: weather.ConditionClear, WindSpeedMS: 3, VisibilityMeters: 10000}
}

func newTestService(r RouteProvider, w WeatherProvider) (*Service, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
	svc := NewService(r, w, NewMemoryCache(30*time.Minute, clock), clock, nil, Options{})
	return svc, clock
}

func arrival() time.Time {
	return time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
}

func TestSnapshot_LiveData(t *testing.T) {
	route := &stubRoute{info: clearRoute()}
	wx := &stubWeather{data: clearWeather()}
	svc, _ := newTestService(route, wx)

	snap := svc.Snapshot(context.Background(), sanFrancisco, sanJose, arrival())

	assert.Equal(t, 0.9, snap.Confidence)
	assert.False(t, snap.RouteFallback)
	assert.False(t, snap.WeatherFallback)
	assert.Equal(t, 2*time.Minute, snap.HeuristicsDelay)
	assert.Equal(t, sanJose, wx.at, "weather is fetched at the destination")
	assert.Equal(t, 54*time.Minute, snap.TravelTime())
	assert.Contains(t, snap.Explanation, "Clear roads adds 2 min")
}

func TestSnapshot_CacheHitIsIdempotent(t *testing.T) {
	route := &stubRoute{info: clearRoute()}
	wx := &stubWeather{data: clearWeather()}
	svc, _ := newTestService(route, wx)
	ctx := context.Background()

	first := svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())
	svc.Flush()
	second := svc.Snapshot(ctx, sanFrancisco, sanJose, arrival().Add(2*time.Minute))

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, route.calls.Load())
	assert.EqualValues(t, 1, wx.calls.Load())
}

func TestSnapshot_CacheExpiresAtTTL(t *testing.T) {
	route := &stubRoute{info: clearRoute()}
	wx := &stubWeather{data: clearWeather()}
	svc, clock := newTestService(route, wx)
	ctx := context.Background()

	svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())
	svc.Flush()

	clock.Advance(89 * time.Second)
	svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())
	assert.EqualValues(t, 1, route.calls.Load(), "89s old entry is fresh")

	clock.Advance(2 * time.Second)
	svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())
	assert.EqualValues(t, 2, route.calls.Load(), "91s old entry is stale")
}

func TestSnapshot_DifferentBucketMisses(t *testing.T) {
	route := &stubRoute{info: clearRoute()}
	wx := &stubWeather{data: clearWeather()}
	svc, _ := newTestService(route, wx)
	ctx := context.Background()

	svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())
	svc.Flush()
	svc.Snapshot(ctx, sanFrancisco, sanJose, arrival().Add(6*time.Minute))
	assert.EqualValues(t, 2, route.calls.Load())
}

func TestSnapshot_TotalOutage(t *testing.T) {
	svc, _ := newTestService(&stubRoute{err: errOutage}, &stubWeather{err: errOutage})

	snap := svc.Snapshot(context.Background(), sanFrancisco, sanJose, arrival())

	assert.Equal(t, 0.3, snap.Confidence)
	assert.True(t, snap.RouteFallback)
	assert.True(t, snap.WeatherFallback)
	assert.Equal(t, SourceSynthetic, snap.RouteSource)

	dist := sanFrancisco.DistanceMeters(sanJose)
	assert.InDelta(t, dist, snap.Route.DistanceMeters, 1e-6)
	assert.InDelta(t, dist/13, snap.Route.Duration.Seconds(), 1)
	assert.InDelta(t, snap.Route.Duration.Seconds()*0.2, snap.Route.TrafficDelay.Seconds(), 1)
	assert.Equal(t, maps.CongestionModerate, snap.Route.Congestion)

	assert.Equal(t, 20.0, snap.Weather.TemperatureC)
	assert.Equal(t, weather.ConditionPartlyCloudy, snap.Weather.Conditions)
	assert.Equal(t, 2.0, snap.Weather.WindSpeedMS)
	assert.Equal(t, 10000.0, snap.Weather.VisibilityMeters)
	assert.Equal(t, snap.Route.TrafficDelay, snap.HeuristicsDelay)
}

func TestSnapshot_WeatherFailureCostsExactlyFifteen(t *testing.T) {
	ok, _ := newTestService(&stubRoute{info: clearRoute()}, &stubWeather{data: clearWeather()})
	failed, _ := newTestService(&stubRoute{info: clearRoute()}, &stubWeather{err: errOutage})

	a := ok.Snapshot(context.Background(), sanFrancisco, sanJose, arrival())
	b := failed.Snapshot(context.Background(), sanFrancisco, sanJose, arrival())

	assert.Equal(t, 0.9, a.Confidence)
	assert.Equal(t, 0.75, b.Confidence)
	assert.True(t, b.WeatherFallback)
	assert.False(t, b.RouteFallback)
	assert.Contains(t, b.Explanation, "assuming mild conditions")
}

func TestSnapshot_RouteFailureReusesCachedRoute(t *testing.T) {
	heavy := maps.RouteInfo{DistanceMeters: 77000, Duration: 50 * time.Minute, TrafficDelay: 30 * time.Minute, Congestion: maps.CongestionHeavy}
	route := &stubRoute{info: heavy}
	svc, clock := newTestService(route, &stubWeather{data: clearWeather()})
	ctx := context.Background()

	svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())
	svc.Flush()

	clock.Advance(2 * time.Minute)
	route.err = errOutage
	snap := svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())

	assert.Equal(t, heavy, snap.Route)
	assert.Equal(t, SourceCached, snap.RouteSource)
	assert.True(t, snap.RouteFallback)
	assert.Equal(t, 0.45, snap.Confidence)
	assert.Contains(t, snap.Explanation, "using recent route data")
}

func TestSnapshot_SevereWeather(t *testing.T) {
	storm := weather.Data{TemperatureC: 9, Conditions: weather.ConditionThunderstorm, WindSpeedMS: 15, VisibilityMeters: 3000}
	svc, _ := newTestService(&stubRoute{info: clearRoute()}, &stubWeather{data: storm})

	snap := svc.Snapshot(context.Background(), sanFrancisco, sanJose, arrival())

	assert.Equal(t, 2*time.Minute+600*time.Second+120*time.Second+180*time.Second, snap.HeuristicsDelay)
	assert.Equal(t, 0.7, snap.Confidence)
	assert.Equal(t, 15*time.Minute, snap.WeatherPenalty())
}

func TestSnapshot_ConfidenceFloor(t *testing.T) {
	route := &stubRoute{err: errOutage}
	wx := &stubWeather{data: weather.Data{Conditions: weather.ConditionBlizzard, VisibilityMeters: 10000}}
	svc, clock := newTestService(route, wx)
	ctx := context.Background()

	first := svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())
	svc.Flush()
	require.Equal(t, 0.4, first.Confidence)

	clock.Advance(100 * time.Second)
	wx.err = errOutage
	snap := svc.Snapshot(ctx, sanFrancisco, sanJose, arrival())

	assert.Equal(t, SourceSynthetic, snap.RouteSource)
	assert.Equal(t, SourceCached, snap.WeatherSource)
	assert.Equal(t, 0.3, snap.Confidence)
}

func TestDefault(t *testing.T) {
	now := time.Now()
	d := Default(now)
	assert.Equal(t, 0.6, d.Confidence)
	assert.Equal(t, 120*time.Second, d.HeuristicsDelay)
	assert.Equal(t, now, d.GeneratedAt)
}

func TestNewKey_Buckets(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)
	a := NewKey(sanFrancisco, sanJose, base, 5*time.Minute)
	b := NewKey(sanFrancisco, sanJose, base.Add(3*time.Minute), 5*time.Minute)
	c := NewKey(sanFrancisco, sanJose, base.Add(5*time.Minute), 5*time.Minute)

	assert.Equal(t, a.String(), b.String())
	assert.NotEqual(t, a.String(), c.String())
	assert.Equal(t, "snapshot:37.7749,-122.4194:37.3382,-121.8863:1772442000", a.String())
}
