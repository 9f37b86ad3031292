// README: commutectl; operator CLI for one-off recommendations, predictor calls and smoke checks.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"commute/internal/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "commutectl",
		Short:        "Leave-time recommendations and service checks",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(newRecommendCmd(), newPredictCmd(), newSmokeCmd())
	return root
}

// parseCoordinate reads "lat,lng".
func parseCoordinate(s string) (types.Coordinate, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return types.Coordinate{}, fmt.Errorf("coordinate %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("coordinate %q: latitude: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("coordinate %q: longitude: %w", s, err)
	}
	c := types.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return types.Coordinate{}, fmt.Errorf("coordinate %q: out of range", s)
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
