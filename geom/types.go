package geom

import (
	"encoding/json"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Point3 represents a 3D coordinate
type Point3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Vec converts the point to a gonum vector
func (p Point3) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// PointFromVec converts a gonum vector to a Point3
func PointFromVec(v r3.Vec) Point3 {
	return Point3{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns p + q
func (p Point3) Add(q Point3) Point3 {
	return Point3{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q
func (p Point3) Sub(q Point3) Point3 {
	return Point3{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// point3Object mirrors Point3 without its custom decoders
type point3Object struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// UnmarshalJSON accepts either {"x":1,"y":2,"z":3} or [1,2,3]
func (p *Point3) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		return p.fromSlice(arr)
	}

	var obj point3Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parsing point: %w", err)
	}
	*p = Point3(obj)
	return nil
}

// UnmarshalYAML accepts either a mapping with x/y/z keys or a 3-element sequence
func (p *Point3) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var arr []float64
		if err := node.Decode(&arr); err != nil {
			return fmt.Errorf("parsing point at line %d: %w", node.Line, err)
		}
		return p.fromSlice(arr)
	}

	var obj point3Object
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("parsing point at line %d: %w", node.Line, err)
	}
	*p = Point3(obj)
	return nil
}

func (p *Point3) fromSlice(arr []float64) error {
	if len(arr) != 3 {
		return fmt.Errorf("point must have 3 coordinates, got %d", len(arr))
	}
	*p = Point3{X: arr[0], Y: arr[1], Z: arr[2]}
	return nil
}

// Correspondence pairs a source point with the target it should map onto
type Correspondence struct {
	Source Point3 `json:"source" yaml:"source"`
	Target Point3 `json:"target" yaml:"target"`
}

// Config is the unified configuration loaded from config.yaml
type Config struct {
	Alignment AlignmentConfig `yaml:"alignment" json:"alignment"`
	MQTT      MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Render    RenderConfig    `yaml:"render" json:"render"`
}

// AlignmentConfig tunes the Kabsch aligner
type AlignmentConfig struct {
	RankTolerance      float64 `yaml:"rankTolerance,omitempty" json:"rankTolerance,omitempty"`           // Relative singular value cutoff when counting rank
	MinCorrespondences int     `yaml:"minCorrespondences,omitempty" json:"minCorrespondences,omitempty"` // Warn below this many pairs
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	InputTopic    string `yaml:"inputTopic" json:"inputTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
}

// RenderConfig holds overlay rendering settings
type RenderConfig struct {
	Width       int     `yaml:"width,omitempty" json:"width,omitempty"`
	Height      int     `yaml:"height,omitempty" json:"height,omitempty"`
	PointRadius float64 `yaml:"pointRadius,omitempty" json:"pointRadius,omitempty"`
	Resolution  float64 `yaml:"resolution,omitempty" json:"resolution,omitempty"` // DPI for vector PNG output
}

// Default configuration values
const (
	DefaultRankTolerance      = 1e-9
	DefaultMinCorrespondences = 3
	DefaultClientID           = "rigidreg"
	DefaultInputTopic         = "rigidreg/+/correspondences"
	DefaultPublishPrefix      = "rigidreg"
	DefaultRenderWidth        = 800
	DefaultRenderHeight       = 800
	DefaultPointRadius        = 4.0
	DefaultRenderResolution   = 96.0
)

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued fields with defaults
func (c *Config) ApplyDefaults() {
	if c.Alignment.RankTolerance == 0 {
		c.Alignment.RankTolerance = DefaultRankTolerance
	}
	if c.Alignment.MinCorrespondences == 0 {
		c.Alignment.MinCorrespondences = DefaultMinCorrespondences
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}
	if c.MQTT.InputTopic == "" {
		c.MQTT.InputTopic = DefaultInputTopic
	}
	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = DefaultPublishPrefix
	}
	if c.Render.Width == 0 {
		c.Render.Width = DefaultRenderWidth
	}
	if c.Render.Height == 0 {
		c.Render.Height = DefaultRenderHeight
	}
	if c.Render.PointRadius == 0 {
		c.Render.PointRadius = DefaultPointRadius
	}
	if c.Render.Resolution == 0 {
		c.Render.Resolution = DefaultRenderResolution
	}
}

// AlignmentRecord is the published/persisted outcome of one alignment
type AlignmentRecord struct {
	ID         string         `json:"id"`
	Transform  RigidTransform `json:"transform"`
	RMSD       float64        `json:"rmsd"`
	Count      int            `json:"count"`
	Rank       int            `json:"rank"`
	Reflected  bool           `json:"reflected"`
	Degenerate bool           `json:"degenerate"`
	Timestamp  int64          `json:"timestamp"`
}

// NewAlignmentRecord builds a record for the given alignment, stamped with the current time
func NewAlignmentRecord(id string, a Alignment) AlignmentRecord {
	return AlignmentRecord{
		ID:         id,
		Transform:  a.Transform,
		RMSD:       a.RMSD,
		Count:      a.Count,
		Rank:       a.Rank,
		Reflected:  a.Reflected,
		Degenerate: a.Degenerate,
		Timestamp:  time.Now().Unix(),
	}
}
