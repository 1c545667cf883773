package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kwv/rigidreg/geom"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line flags
type AppOptions struct {
	ConfigFile   string
	AlignFile    string
	CentroidFile string
	IoUFile      string
	Haversine    string
	ClosestFile  string
	RenderFile   string
	OutputFile   string
	RenderFormat string
	CachePath    string
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
}

// Application is the set of modes the command line can dispatch to
type Application interface {
	ApplyOptions(opts AppOptions)
	RunAlign(path string) error
	RunCentroid(path string) error
	RunIoU(path string) error
	RunHaversine(coords string) error
	RunClosestPair(path string) error
	RunRender(path string) error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

// run parses args and dispatches to the first selected mode
func run(args []string, out io.Writer, app Application) error {
	fs := flag.NewFlagSet("rigidreg", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.AlignFile, "align", "", "Fit a rigid transform to a correspondence file (JSON or YAML)")
	fs.StringVar(&opts.CentroidFile, "centroid", "", "Print source and target centroids of a correspondence file")
	fs.StringVar(&opts.IoUFile, "iou", "", "Score a GeoJSON rect/hull pair (features with role=rect|hull)")
	fs.StringVar(&opts.Haversine, "haversine", "", "Great-circle distance in meters: \"lat1,lon1,lat2,lon2\"")
	fs.StringVar(&opts.ClosestFile, "closest", "", "Find the closest pair among GeoJSON points")
	fs.StringVar(&opts.RenderFile, "render", "", "Fit a correspondence file and render the overlay")
	fs.StringVar(&opts.OutputFile, "output", "overlay.png", "Output file for --render")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Render format: raster, vector, or both")
	fs.StringVar(&opts.CachePath, "cache", geom.DefaultTransformCachePath, "Path to the transform cache file; empty disables persistence")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode: fit incoming correspondence sets")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")

	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "rigidreg version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.AlignFile != "":
		return app.RunAlign(opts.AlignFile)
	case opts.CentroidFile != "":
		return app.RunCentroid(opts.CentroidFile)
	case opts.IoUFile != "":
		return app.RunIoU(opts.IoUFile)
	case opts.Haversine != "":
		return app.RunHaversine(opts.Haversine)
	case opts.ClosestFile != "":
		return app.RunClosestPair(opts.ClosestFile)
	case opts.RenderFile != "":
		return app.RunRender(opts.RenderFile)
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	_, _ = fmt.Fprintln(out, "No mode selected.")
	_, _ = fmt.Fprintln(out, "Use --align FILE to fit a rigid transform")
	_, _ = fmt.Fprintln(out, "Use --centroid FILE to print centroids")
	_, _ = fmt.Fprintln(out, "Use --iou FILE to score a rectangle against a hull")
	_, _ = fmt.Fprintln(out, "Use --haversine lat1,lon1,lat2,lon2 for a great-circle distance")
	_, _ = fmt.Fprintln(out, "Use --closest FILE to find the closest pair of points")
	_, _ = fmt.Fprintln(out, "Use --render FILE to draw an alignment overlay")
	_, _ = fmt.Fprintln(out, "Use --mqtt and/or --http to run the service")
	return nil
}
