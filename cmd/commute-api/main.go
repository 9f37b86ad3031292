// README: Entry point; loads config, wires services, starts the HTTP API and the background workers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"commute/internal/ai"
	"commute/internal/config"
	"commute/internal/events"
	httptransport "commute/internal/http"
	"commute/internal/infra"
	"commute/internal/logging"
	"commute/internal/maps"
	"commute/internal/modules/feedback"
	"commute/internal/modules/preferences"
	"commute/internal/modules/recommend"
	"commute/internal/modules/scheduler"
	"commute/internal/modules/snapshot"
	"commute/internal/modules/trip"
	"commute/internal/notify"
	"commute/internal/prediction"
	"commute/internal/presence"
	"commute/internal/types"
	"commute/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("commute-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Firebase.ProjectID == "" {
		return errors.New("COMMUTE_FIREBASE_PROJECT_ID is required")
	}
	if cfg.Providers.GoogleMapsKey == "" {
		return errors.New("COMMUTE_PROVIDER_GOOGLE_MAPS_API_KEY is required")
	}

	fb, err := infra.NewFirebase(ctx, cfg.Firebase)
	if err != nil {
		return err
	}
	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	clock := types.RealClock{}

	routes, err := maps.NewRouteService(cfg.Providers.GoogleMapsKey)
	if err != nil {
		return err
	}
	places, err := maps.NewPlacesService(cfg.Providers.GoogleMapsKey)
	if err != nil {
		return err
	}
	wx := weather.NewClient(cfg.Providers.WeatherBaseURL, cfg.Providers.WeatherKey, nil)

	var cache snapshot.Cache
	if cfg.Snapshot.RedisCache {
		cache = snapshot.NewRedisCache(redisClient, cfg.Snapshot.FallbackTTL)
	}
	snapshots := snapshot.NewService(routes, wx, cache, clock, logger, snapshot.Options{
		TTL:             cfg.Snapshot.CacheTTL,
		FallbackTTL:     cfg.Snapshot.FallbackTTL,
		Bucket:          cfg.Snapshot.Bucket,
		ProviderTimeout: cfg.Providers.Timeout,
	})

	predictor, closePredictor, err := newPredictor(ctx, cfg.Providers, logger)
	if err != nil {
		return err
	}
	defer closePredictor()

	prefsStore := preferences.NewStore(dbPool)
	recommender := recommend.NewService(snapshots, predictor, prefsStore, clock, logger, recommend.Options{
		PredictorTimeout: cfg.Providers.Timeout,
		Verbose:          cfg.VerboseDiagnostics,
	})

	msg, err := fb.Messaging(ctx)
	if err != nil {
		return err
	}
	pushQueue := notify.NewPushQueue(redisClient, clock)
	inbox := notify.NewInbox(redisClient)
	dispatcher := notify.NewDispatcher(pushQueue, msg, cfg.Scheduler.DispatchTick, logger)

	var live scheduler.Presence = presence.Disabled{}
	if fb.HasDatabase() {
		rtdb, err := fb.Database(ctx)
		if err != nil {
			return err
		}
		live = presence.NewRTDB(rtdb)
	} else {
		logger.Info("no firebase database configured; trip presence disabled")
	}

	trips := trip.NewStore(dbPool)
	sched := scheduler.NewService(scheduler.Deps{
		Trips:       trips,
		Recommender: recommender,
		Notifier:    pushQueue,
		Fallback:    inbox,
		Presence:    live,
		Preferences: prefsStore,
		Identity:    fb.Identity(),
		Feedback:    feedback.NewService(feedback.NewStore(dbPool), clock, logger),
		Clock:       clock,
		Logger:      logger,
	}, scheduler.Options{
		Hysteresis:         cfg.Scheduler.Hysteresis,
		DebounceDistance:   cfg.Scheduler.DebounceDistanceMeters,
		DebounceInterval:   cfg.Scheduler.DebounceInterval,
		PresenceThrottle:   cfg.Scheduler.PresenceThrottle,
		NavigatingThrottle: cfg.Scheduler.NavigatingThrottle,
		FeedbackDelay:      cfg.Scheduler.FeedbackDelay,
	})

	bus := events.NewBus()
	sched.Subscribe(bus)

	locations := make(chan scheduler.LocationUpdate, cfg.Scheduler.LocationBuffer)

	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.NewRouter(httptransport.RouterDeps{
		Verifier:    fb.Verifier(),
		Trips:       trips,
		Places:      places,
		Scheduler:   sched,
		Recommender: recommender,
		Bus:         bus,
		Locations:   locations,
		Devices:     pushQueue,
		Inbox:       inbox,
		Preferences: prefsStore,
		Clock:       clock,
		Logger:      logger,
	}), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		dispatcher.RunDispatcher(gctx)
		return nil
	})
	g.Go(func() error {
		sched.RunPresenceFlush(gctx)
		return nil
	})
	g.Go(func() error {
		sched.ObserveLocations(gctx, locations)
		sched.Wait()
		return nil
	})
	return g.Wait()
}

// newPredictor prefers the predictor API, then Gemini. With neither
// configured the recommender uses its built-in heuristic.
func newPredictor(ctx context.Context, cfg config.ProvidersConfig, logger *slog.Logger) (prediction.Predictor, func(), error) {
	switch {
	case cfg.PredictorURL != "":
		logger.Info("using predictor api", "url", cfg.PredictorURL)
		return prediction.NewHTTPClient(cfg.PredictorURL, nil), func() {}, nil
	case cfg.GeminiKey != "":
		p, err := ai.NewGeminiPredictor(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using gemini predictor", "model", cfg.GeminiModel)
		return p, p.Close, nil
	default:
		logger.Info("no predictor configured; using heuristic fallback")
		return nil, func() {}, nil
	}
}
