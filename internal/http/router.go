// README: HTTP router registration for the commute API and the predictor API.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"commute/internal/http/handlers"
	"commute/internal/http/middleware"
	"commute/internal/infra"
	"commute/internal/modules/scheduler"
	"commute/internal/prediction"
	"commute/internal/types"
)

// RouterDeps are the collaborators behind the commute API routes.
type RouterDeps struct {
	Verifier    infra.TokenVerifier
	Trips       handlers.TripStore
	Places      handlers.PlaceLabeler
	Scheduler   handlers.TripScheduler
	Recommender handlers.Recommender
	Bus         handlers.Publisher
	Locations   chan<- scheduler.LocationUpdate
	Devices     handlers.DeviceRegistry
	Inbox       handlers.InboxReader
	Preferences handlers.PreferencesStore
	Clock       types.Clock
	Logger      *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := newEngine(deps.Logger)

	tripHandler := handlers.NewTripHandler(deps.Trips, deps.Scheduler, deps.Places, deps.Clock)
	actionHandler := handlers.NewActionHandler(tripHandler, deps.Bus)
	recHandler := handlers.NewRecommendationHandler(deps.Recommender)
	locationHandler := handlers.NewLocationHandler(deps.Locations)
	accountHandler := handlers.NewAccountHandler(deps.Devices, deps.Inbox, deps.Preferences, deps.Clock)

	api := r.Group("/api", middleware.Auth(deps.Verifier))
	api.POST("/trips", tripHandler.Create)
	api.GET("/trips", tripHandler.List)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/schedule", tripHandler.Schedule)
	api.DELETE("/trips/:id/schedule", tripHandler.Unschedule)
	api.POST("/trips/:id/snooze", actionHandler.Snooze)
	api.POST("/trips/:id/abort", actionHandler.Abort)
	api.POST("/trips/:id/navigation", actionHandler.StartNavigation)
	api.POST("/trips/:id/feedback", actionHandler.Feedback)

	api.POST("/recommendations", recHandler.Create)
	api.PUT("/location", locationHandler.Update)

	api.PUT("/devices", accountHandler.RegisterDevice)
	api.DELETE("/devices", accountHandler.UnregisterDevice)
	api.GET("/inbox", accountHandler.Inbox)
	api.GET("/preferences", accountHandler.GetPreferences)
	api.PUT("/preferences", accountHandler.PutPreferences)

	return r
}

// NewPredictorRouter serves the leave-time model over HTTP.
func NewPredictorRouter(model prediction.Predictor, logger *slog.Logger) http.Handler {
	r := newEngine(logger)
	r.POST("/predict", handlers.NewPredictHandler(model).Predict)
	return r
}

func newEngine(logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.Logging(logger))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
