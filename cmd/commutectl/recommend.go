package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"commute/internal/ai"
	"commute/internal/config"
	"commute/internal/logging"
	"commute/internal/maps"
	"commute/internal/modules/recommend"
	"commute/internal/modules/snapshot"
	"commute/internal/prediction"
	"commute/internal/weather"
)

type recommendFlags struct {
	from, to string
	arrive   string
	zone     string
	buffer   int
	asJSON   bool
}

func newRecommendCmd() *cobra.Command {
	var f recommendFlags
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Compute a leave-by time with the configured providers",
		Example: `  commutectl recommend --from 37.7749,-122.4194 --to 37.3382,-121.8863 \
    --arrive 2026-03-02T09:00 --zone America/Los_Angeles`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			origin, err := parseCoordinate(f.from)
			if err != nil {
				return err
			}
			dest, err := parseCoordinate(f.to)
			if err != nil {
				return err
			}
			arrival, err := parseArrival(f.arrive, f.zone)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("log-level")
			logger := logging.Init(level)
			ctx := cmd.Context()

			routes, err := maps.NewRouteService(cfg.Providers.GoogleMapsKey)
			if err != nil {
				return err
			}
			wx := weather.NewClient(cfg.Providers.WeatherBaseURL, cfg.Providers.WeatherKey, nil)
			snapshots := snapshot.NewService(routes, wx, nil, nil, logger, snapshot.Options{
				ProviderTimeout: cfg.Providers.Timeout,
			})

			var predictor prediction.Predictor
			switch {
			case cfg.Providers.PredictorURL != "":
				predictor = prediction.NewHTTPClient(cfg.Providers.PredictorURL, nil)
			case cfg.Providers.GeminiKey != "":
				g, err := ai.NewGeminiPredictor(ctx, cfg.Providers.GeminiKey, cfg.Providers.GeminiModel)
				if err != nil {
					return err
				}
				defer g.Close()
				predictor = g
			}

			svc := recommend.NewService(snapshots, predictor, nil, nil, logger, recommend.Options{
				PredictorTimeout: cfg.Providers.Timeout,
				Verbose:          f.asJSON,
			})
			rec := svc.Recommend(ctx, recommend.Request{
				Origin:        origin,
				Destination:   dest,
				ArrivalTime:   arrival,
				BufferMinutes: f.buffer,
			})
			if f.asJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\nconfidence %.2f (%s)\n",
				rec.Explanation, rec.Confidence, rec.Prediction.Source)
			return err
		},
	}
	cmd.Flags().StringVar(&f.from, "from", "", "origin as lat,lng")
	cmd.Flags().StringVar(&f.to, "to", "", "destination as lat,lng")
	cmd.Flags().StringVar(&f.arrive, "arrive", "", "arrival time, RFC 3339 or 2006-01-02T15:04 in --zone")
	cmd.Flags().StringVar(&f.zone, "zone", "Local", "IANA time zone for --arrive without an offset")
	cmd.Flags().IntVar(&f.buffer, "buffer", 0, "buffer minutes (default from preferences)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the full recommendation as JSON")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("arrive")
	return cmd
}

func parseArrival(s, zone string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("zone %q: %w", zone, err)
	}
	t, err := time.ParseInLocation("2006-01-02T15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("arrive %q: %w", s, err)
	}
	return t, nil
}
