package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/kwv/rigidreg/geom"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *geom.Config
	Aligner      *geom.Aligner
	StateTracker *geom.StateTracker
	MQTTClient   *geom.MQTTClient
	Publisher    *geom.Publisher
	Out          io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	OutputFile   string
	RenderFormat string
	CachePath    string
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: geom.NewStateTracker(),
		Out:          os.Stdout,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.CachePath = opts.CachePath
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
	if opts.CachePath != "" {
		a.StateTracker = geom.NewStateTrackerWithCache(opts.CachePath)
	}
}

// loadConfig loads the config file once, falling back to defaults when it is missing
func (a *App) loadConfig() error {
	if a.Config != nil {
		if a.Aligner == nil {
			a.Aligner = geom.NewAlignerFromConfig(a.Config.Alignment)
		}
		return nil
	}
	path := a.ConfigFile
	if path == "" {
		path = "config.yaml"
	}
	config, err := geom.LoadConfigOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", path, err)
	}
	a.Config = config
	a.Aligner = geom.NewAlignerFromConfig(config.Alignment)
	return nil
}

func (a *App) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// alignSet fits a correspondence set, assigning a fresh ID when it has none.
// Empty sets yield geom.ErrNoPairs.
func alignSet(aligner *geom.Aligner, set *geom.CorrespondenceSet) (geom.AlignmentRecord, error) {
	pairs, err := set.Correspondences()
	if err != nil {
		return geom.AlignmentRecord{}, err
	}
	if len(pairs) == 0 {
		return geom.AlignmentRecord{}, geom.ErrNoPairs
	}

	result, ok, err := aligner.Fit(pairs)
	if err != nil {
		return geom.AlignmentRecord{}, err
	}
	if !ok {
		return geom.AlignmentRecord{}, geom.ErrNoPairs
	}

	if set.ID == "" {
		set.ID = uuid.New().String()
	}
	return geom.NewAlignmentRecord(set.ID, result), nil
}

// recordAlignment stores a fitted set and publishes it when a publisher is available
func recordAlignment(st *geom.StateTracker, pub *geom.Publisher, set *geom.CorrespondenceSet, rec geom.AlignmentRecord) {
	st.Update(rec)
	st.SetCorrespondences(set)
	if pub != nil {
		if err := pub.PublishAlignment(rec); err != nil {
			log.Printf("[MQTT] Error publishing alignment for %s: %v", rec.ID, err)
		}
	}
}

// RunAlign fits a correspondence file and prints the alignment record
func (a *App) RunAlign(path string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	set, err := geom.ParseCorrespondenceFile(path)
	if err != nil {
		return err
	}

	rec, err := alignSet(a.Aligner, set)
	if err != nil {
		return fmt.Errorf("aligning %s: %w", path, err)
	}
	a.StateTracker.Update(rec)

	if rec.Degenerate {
		_, _ = fmt.Fprintf(a.Out, "warning: correspondences are degenerate (rank %d); rotation is not unique\n", rec.Rank)
	}
	return a.printJSON(rec)
}

// RunCentroid prints the centroids of both sides of a correspondence file
func (a *App) RunCentroid(path string) error {
	set, err := geom.ParseCorrespondenceFile(path)
	if err != nil {
		return err
	}

	summary := geom.Summarize(set)
	if !summary.HasCentroids {
		return fmt.Errorf("%s: %w", path, geom.ErrNoPairs)
	}

	_, _ = fmt.Fprintf(a.Out, "=== %s ===\n", summary.ID)
	_, _ = fmt.Fprintf(a.Out, "Points: %d\n", summary.Count)
	_, _ = fmt.Fprintf(a.Out, "Source centroid: (%.6f, %.6f, %.6f)\n",
		summary.SourceCentroid.X, summary.SourceCentroid.Y, summary.SourceCentroid.Z)
	_, _ = fmt.Fprintf(a.Out, "Target centroid: (%.6f, %.6f, %.6f)\n",
		summary.TargetCentroid.X, summary.TargetCentroid.Y, summary.TargetCentroid.Z)
	return nil
}

// RunIoU scores the rect and hull features of a GeoJSON file and prints their
// intersection as a GeoJSON feature
func (a *App) RunIoU(path string) error {
	fc, err := geom.LoadFeatureCollection(path)
	if err != nil {
		return err
	}
	rect, hull, err := geom.OverlapInput(fc)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	score, err := geom.RectHullIoU(rect, hull)
	if err != nil {
		return err
	}
	jaccard, err := geom.RectHullJaccard(rect, hull)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.Out, "IoU: %.6f\n", score)
	_, _ = fmt.Fprintf(a.Out, "Jaccard: %.6f\n", jaccard)

	overlap, ok, err := geom.RectHullIntersection(rect, hull)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(a.Out, "Intersection: none")
		return nil
	}
	_, _ = fmt.Fprintln(a.Out, "Intersection:")
	return a.printJSON(geom.PolygonFeature(overlap, map[string]interface{}{
		"iou":     score,
		"jaccard": jaccard,
	}))
}

// parseHaversineArg parses "lat1,lon1,lat2,lon2"
func parseHaversineArg(s string) (geom.GeoCoord, geom.GeoCoord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geom.GeoCoord{}, geom.GeoCoord{}, fmt.Errorf("expected lat1,lon1,lat2,lon2, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.GeoCoord{}, geom.GeoCoord{}, fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		v[i] = f
	}
	return geom.GeoCoord{Lat: v[0], Lon: v[1]}, geom.GeoCoord{Lat: v[2], Lon: v[3]}, nil
}

// RunHaversine prints the great-circle distance between two coordinates
func (a *App) RunHaversine(coords string) error {
	p, q, err := parseHaversineArg(coords)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.Out, "Distance: %.3f m\n", geom.HaversineDistance(p, q))
	return nil
}

// RunClosestPair prints the closest two points of a GeoJSON file
func (a *App) RunClosestPair(path string) error {
	fc, err := geom.LoadFeatureCollection(path)
	if err != nil {
		return err
	}
	points := geom.CollectPoints(fc)
	pair, ok := geom.ClosestPair(points)
	if !ok {
		return fmt.Errorf("%s: need at least 2 points, found %d", path, len(points))
	}
	return a.printJSON(pair)
}

// RunRender fits a correspondence file and renders the overlay in the selected format
func (a *App) RunRender(path string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	set, err := geom.ParseCorrespondenceFile(path)
	if err != nil {
		return err
	}
	rec, err := alignSet(a.Aligner, set)
	if err != nil {
		return fmt.Errorf("aligning %s: %w", path, err)
	}
	a.StateTracker.Update(rec)

	overlay, err := geom.NewOverlay(set, rec.Transform)
	if err != nil {
		return err
	}

	output := a.OutputFile
	if output == "" {
		output = "overlay.png"
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))

	switch a.RenderFormat {
	case "", "raster":
		return a.renderRaster(overlay, output)
	case "vector":
		return a.renderVector(overlay, output)
	case "both":
		if err := a.renderRaster(overlay, base+".png"); err != nil {
			return err
		}
		return a.renderVector(overlay, base+".svg")
	default:
		return fmt.Errorf("unknown render format %q (want raster, vector, or both)", a.RenderFormat)
	}
}

func (a *App) renderRaster(overlay *geom.Overlay, path string) error {
	renderer := geom.NewOverlayRenderer(overlay, a.Config.Render)
	if err := renderer.SavePNG(path); err != nil {
		return err
	}
	log.Printf("[RENDER] Wrote raster overlay to %s", path)
	return nil
}

// renderVector writes SVG, or a rasterized vector PNG when path ends in .png
func (a *App) renderVector(overlay *geom.Overlay, path string) error {
	renderer := geom.NewVectorOverlayRenderer(overlay, a.Config.Render)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		err = renderer.RenderToPNG(f)
	} else {
		err = renderer.RenderToSVG(f)
	}
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	log.Printf("[RENDER] Wrote vector overlay to %s", path)
	return nil
}

// handleMQTTSet is the service loop's MQTT message handler
func (a *App) handleMQTTSet(setID string, set *geom.CorrespondenceSet, err error) {
	if err != nil {
		log.Printf("[MQTT] Error receiving correspondences for %s: %v", setID, err)
		return
	}

	rec, err := alignSet(a.Aligner, set)
	if err != nil {
		if errors.Is(err, geom.ErrNoPairs) {
			log.Printf("[MQTT] %s: empty correspondence set, skipping", setID)
			return
		}
		log.Printf("[MQTT] %s: alignment failed: %v", setID, err)
		return
	}

	log.Printf("[KABSCH] %s: pairs=%d rank=%d rmsd=%.6f reflected=%v",
		rec.ID, rec.Count, rec.Rank, rec.RMSD, rec.Reflected)
	recordAlignment(a.StateTracker, a.Publisher, set, rec)
}

// RunService runs the MQTT and/or HTTP service until interrupted
func (a *App) RunService() error {
	_, _ = fmt.Fprintln(a.Out, "Starting rigidreg service...")

	if err := a.loadConfig(); err != nil {
		return err
	}
	log.Printf("Loaded config from %s", a.ConfigFile)

	if a.MqttMode {
		mqttClient, err := geom.InitMQTT(a.Config, a.handleMQTTSet)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.MQTTClient = mqttClient
		a.Publisher = geom.NewPublisher(mqttClient.GetClient(), a.Config.MQTT.PublishPrefix)
		_, _ = fmt.Fprintln(a.Out, "MQTT alignment publisher initialized")
	}

	if a.HttpMode {
		handler := newHTTPServer(a.StateTracker, a.Aligner, a.Config, a.Publisher)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	_, _ = fmt.Fprintln(a.Out, "\nService Running")
	_, _ = fmt.Fprintln(a.Out, "===============")

	if a.MqttMode {
		_, _ = fmt.Fprintln(a.Out, "\nMQTT:")
		_, _ = fmt.Fprintf(a.Out, "  Subscribed topic: %s\n", a.Config.MQTT.InputTopic)
		_, _ = fmt.Fprintf(a.Out, "  Publishing to: %s/{id}/transform\n", a.Publisher.Prefix())
		_, _ = fmt.Fprintf(a.Out, "  Combined transforms: %s/transforms\n", a.Publisher.Prefix())
	}

	if a.HttpMode {
		_, _ = fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		_, _ = fmt.Fprintln(a.Out, "  GET  /health                - Health check")
		_, _ = fmt.Fprintln(a.Out, "  POST /api/align             - Fit a correspondence set")
		_, _ = fmt.Fprintln(a.Out, "  GET  /api/transforms        - All alignment records")
		_, _ = fmt.Fprintln(a.Out, "  GET  /api/transforms/{id}   - One alignment record")
		_, _ = fmt.Fprintln(a.Out, "  GET  /render/{id}.png|.svg  - Overlay of a fitted set")
	}

	_, _ = fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	_, _ = fmt.Fprintln(a.Out, "\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	_, _ = fmt.Fprintln(a.Out, "Service stopped")
	return nil
}
