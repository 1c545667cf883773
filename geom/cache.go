package geom

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultTransformCachePath is the default path for the persisted alignment records
const DefaultTransformCachePath = ".transform-cache.json"

// TransformCache is the on-disk collection of the latest alignment per ID
type TransformCache struct {
	Alignments  map[string]AlignmentRecord `json:"alignments"`
	LastUpdated int64                      `json:"lastUpdated"`
}

// NewTransformCache creates an empty cache
func NewTransformCache() *TransformCache {
	return &TransformCache{Alignments: make(map[string]AlignmentRecord)}
}

// LoadTransformCache loads alignment records from a JSON cache file.
// A missing file yields a nil cache and no error.
func LoadTransformCache(path string) (*TransformCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No cache yet
		}
		return nil, fmt.Errorf("reading transform cache: %w", err)
	}

	var cache TransformCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing transform cache: %w", err)
	}
	if cache.Alignments == nil {
		cache.Alignments = make(map[string]AlignmentRecord)
	}

	return &cache, nil
}

// SaveTransformCache writes the cache to disk, stamping LastUpdated
func SaveTransformCache(path string, cache *TransformCache) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	cache.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling transform cache: %w", err)
	}

	// Write to a sibling file and rename so readers never see a partial cache
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing transform cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing transform cache: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("writing transform cache: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing transform cache: %w", err)
	}

	return nil
}

// Get returns the record for id, or false when the cache holds none
func (c *TransformCache) Get(id string) (AlignmentRecord, bool) {
	if c == nil || c.Alignments == nil {
		return AlignmentRecord{}, false
	}
	rec, ok := c.Alignments[id]
	return rec, ok
}

// IDs returns the cached IDs in sorted order
func (c *TransformCache) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Alignments))
	for id := range c.Alignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsStale reports whether the cache is older than maxAge
func (c *TransformCache) IsStale(maxAge time.Duration) bool {
	if c == nil || c.LastUpdated == 0 {
		return true
	}
	return time.Since(time.Unix(c.LastUpdated, 0)) > maxAge
}
