package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "geomeasure",
		Short: "Measure GeoJSON areas and distances",
		Long: `geomeasure computes the area of a polygon or the length of a line.
It asks the measurement backend first and falls back to a local geodesic
computation when the backend is unreachable or returns an unusable value.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("api-url", "http://localhost:5000", "measurement backend base URL")
	root.PersistentFlags().Bool("local", false, "skip the backend and compute locally")
	root.PersistentFlags().Duration("timeout", 0, "backend timeout (default 20s)")
	root.PersistentFlags().StringP("file", "f", "", "GeoJSON geometry file (default: stdin)")
	root.PersistentFlags().String("points", "", `inline points as "lat,lng;lat,lng;..." instead of GeoJSON`)
	root.PersistentFlags().IntP("verbose", "v", 0, "log verbosity")

	root.AddCommand(newMeasureCmd(areaCommand), newMeasureCmd(distanceCommand))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
