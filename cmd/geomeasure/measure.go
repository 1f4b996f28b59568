package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"imagery-compare/internal/geometry"
	"imagery-compare/internal/logging"
	"imagery-compare/internal/measureapi"
	"imagery-compare/internal/session"
)

type measureKind struct {
	kind  geometry.Kind
	use   string
	short string
	label string
}

var (
	areaCommand = measureKind{
		kind:  geometry.KindArea,
		use:   "area",
		short: "Measure the area of a Polygon or MultiPolygon",
		label: "Area",
	}
	distanceCommand = measureKind{
		kind:  geometry.KindDistance,
		use:   "distance",
		short: "Measure the length of a LineString or MultiLineString",
		label: "Distance",
	}
)

func newMeasureCmd(mk measureKind) *cobra.Command {
	return &cobra.Command{
		Use:   mk.use,
		Short: mk.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasure(cmd, mk)
		},
	}
}

func runMeasure(cmd *cobra.Command, mk measureKind) error {
	flags := cmd.Flags()
	apiURL, _ := flags.GetString("api-url")
	local, _ := flags.GetBool("local")
	timeout, _ := flags.GetDuration("timeout")
	file, _ := flags.GetString("file")
	inline, _ := flags.GetString("points")
	verbose, _ := flags.GetInt("verbose")

	log := logging.NewWithWriter(cmd.ErrOrStderr(), verbose)

	g, err := readGeometry(cmd, mk.kind, file, inline)
	if err != nil {
		return err
	}

	kind, err := geometry.KindOf(g)
	if err != nil {
		return err
	}
	if kind != mk.kind {
		return fmt.Errorf("%s cannot measure a %s", mk.use, g.GeoJSONType())
	}

	remoteValue, remoteErr := 0.0, error(nil)
	if local {
		remoteErr = fmt.Errorf("%w: --local", measureapi.ErrUnavailable)
	} else {
		remoteValue, remoteErr = measureRemote(cmd.Context(), apiURL, timeout, g, log)
		if remoteErr != nil {
			log.Info("backend failed, computing locally", "error", remoteErr.Error())
		}
	}

	value, source, err := session.Resolve(g, remoteValue, remoteErr)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %.4f %s (%s)\n", mk.label, value, kind.Unit(), source)
	return nil
}

func measureRemote(ctx context.Context, apiURL string, timeout time.Duration, g orb.Geometry, log logr.Logger) (float64, error) {
	client, err := measureapi.NewClient(apiURL, measureapi.WithLogger(log))
	if err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = session.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Measure(ctx, g)
}

// readGeometry parses --points, else the --file or stdin GeoJSON
func readGeometry(cmd *cobra.Command, kind geometry.Kind, file, inline string) (orb.Geometry, error) {
	if inline != "" {
		points, err := parsePoints(inline)
		if err != nil {
			return nil, err
		}
		return geometry.Build(kind, points)
	}

	var r io.Reader = cmd.InOrStdin()
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open geometry file: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry: %w", err)
	}
	return geometry.Decode(data)
}

// parsePoints reads "lat,lng;lat,lng"
func parsePoints(s string) ([]geometry.Point, error) {
	var points []geometry.Point
	for i, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("point %d: expected lat,lng, got %q", i, pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid latitude: %w", i, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid longitude: %w", i, err)
		}
		points = append(points, geometry.Point{Lat: lat, Lng: lng})
	}
	return points, nil
}
