package geom

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoPairs is returned when a correspondence set holds neither pairs nor point lists
var ErrNoPairs = errors.New("correspondence set has no pairs")

// CorrespondenceSet is a named batch of correspondences, given either as
// explicit pairs or as two parallel point lists
type CorrespondenceSet struct {
	ID     string           `json:"id,omitempty" yaml:"id,omitempty"`
	Pairs  []Correspondence `json:"pairs,omitempty" yaml:"pairs,omitempty"`
	Source []Point3         `json:"source,omitempty" yaml:"source,omitempty"`
	Target []Point3         `json:"target,omitempty" yaml:"target,omitempty"`
}

// Correspondences returns the set's pairs, zipping Source and Target when
// no explicit pairs are given
func (s *CorrespondenceSet) Correspondences() ([]Correspondence, error) {
	if len(s.Pairs) > 0 {
		if len(s.Source) > 0 || len(s.Target) > 0 {
			return nil, fmt.Errorf("set %q: use either pairs or source/target, not both", s.ID)
		}
		return s.Pairs, nil
	}
	if len(s.Source) == 0 && len(s.Target) == 0 {
		return nil, nil
	}
	return Pair(s.Source, s.Target)
}

// SourcePoints returns the source side of every correspondence
func (s *CorrespondenceSet) SourcePoints() []Point3 {
	if len(s.Pairs) == 0 {
		return s.Source
	}
	points := make([]Point3, len(s.Pairs))
	for i, p := range s.Pairs {
		points[i] = p.Source
	}
	return points
}

// TargetPoints returns the target side of every correspondence
func (s *CorrespondenceSet) TargetPoints() []Point3 {
	if len(s.Pairs) == 0 {
		return s.Target
	}
	points := make([]Point3, len(s.Pairs))
	for i, p := range s.Pairs {
		points[i] = p.Target
	}
	return points
}

// ParseCorrespondenceFile reads a correspondence set from a .json, .yaml or .yml file.
// The set ID defaults to the file name without extension.
func ParseCorrespondenceFile(path string) (*CorrespondenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	format := "json"
	if ext == ".yaml" || ext == ".yml" {
		format = "yaml"
	}

	set, err := ParseCorrespondences(data, format)
	if err != nil {
		return nil, err
	}
	if set.ID == "" {
		set.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return set, nil
}

// ParseCorrespondences parses a correspondence set in the given format ("json" or "yaml")
func ParseCorrespondences(data []byte, format string) (*CorrespondenceSet, error) {
	var set CorrespondenceSet
	switch format {
	case "json":
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if _, err := set.Correspondences(); err != nil {
		return nil, err
	}
	return &set, nil
}

// SetSummary contains key information extracted from a correspondence set
type SetSummary struct {
	ID             string
	Count          int
	SourceCentroid Point3
	TargetCentroid Point3
	HasCentroids   bool
}

// Summarize extracts key information from a correspondence set
func Summarize(s *CorrespondenceSet) SetSummary {
	summary := SetSummary{ID: s.ID}
	pairs, err := s.Correspondences()
	if err != nil {
		return summary
	}
	summary.Count = len(pairs)

	var src, tgt PointAccumulator
	for _, p := range pairs {
		src.Add(p.Source)
		tgt.Add(p.Target)
	}
	sc, ok1 := src.Centroid()
	tc, ok2 := tgt.Centroid()
	summary.SourceCentroid = sc
	summary.TargetCentroid = tc
	summary.HasCentroids = ok1 && ok2
	return summary
}
