package main

import (
	"github.com/spf13/cobra"

	"commute/internal/prediction"
)

func newPredictCmd() *cobra.Command {
	var (
		in     prediction.Input
		arrive string
		zone   string
		url    string
		from   string
		to     string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run the leave-time model on explicit features",
		Long: "Runs the rule-based model locally, or posts the features to a predictor API with --url.\n" +
			"Durations are seconds, distance is meters and visibility is kilometers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			arrival, err := parseArrival(arrive, zone)
			if err != nil {
				return err
			}
			in.ArrivalTime = arrival
			if from != "" {
				if in.Origin, err = parseCoordinate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if in.Destination, err = parseCoordinate(to); err != nil {
					return err
				}
			}

			var model prediction.Predictor = prediction.NewHeuristicModel(nil)
			if url != "" {
				model = prediction.NewHTTPClient(url, nil)
			}
			p, err := model.Predict(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&arrive, "arrive", "", "arrival time, RFC 3339 or 2006-01-02T15:04 in --zone")
	fs.StringVar(&zone, "zone", "Local", "IANA time zone for --arrive without an offset")
	fs.StringVar(&url, "url", "", "predictor API base URL")
	fs.StringVar(&from, "from", "", "origin as lat,lng")
	fs.StringVar(&to, "to", "", "destination as lat,lng")
	fs.Float64Var(&in.Route.Distance, "distance", 0, "route distance in meters")
	fs.Float64Var(&in.Route.BaselineDuration, "baseline", 0, "free-flow duration in seconds")
	fs.Float64Var(&in.Route.CurrentTrafficDelay, "delay", 0, "current traffic delay in seconds")
	fs.IntVar(&in.Route.IncidentCount, "incidents", 0, "incidents on the route")
	fs.IntVar(&in.Route.CongestionLevel, "congestion", 0, "congestion level 0 (none) to 4 (severe)")
	fs.Float64Var(&in.Weather.WeatherScore, "weather-score", 0, "weather severity 0 to 100")
	fs.Float64Var(&in.Weather.PrecipitationProbability, "precipitation", 0, "precipitation probability 0 to 100")
	fs.Float64Var(&in.Weather.Visibility, "visibility", 10, "visibility in kilometers")
	_ = cmd.MarkFlagRequired("arrive")
	return cmd
}
