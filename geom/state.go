package geom

import (
	"log"
	"sort"
	"sync"
	"time"
)

// StaleCacheAge is the age after which a loaded transform cache is reported as stale
const StaleCacheAge = 24 * time.Hour

// StateTracker holds the latest alignment and correspondence set per ID for
// the HTTP endpoints and the MQTT service loop
type StateTracker struct {
	mu         sync.RWMutex
	alignments map[string]AlignmentRecord
	sets       map[string]*CorrespondenceSet
	cachePath  string // path to the transform cache file; empty disables persistence

	version uint64 // bumped on every Update, guarded by mu

	saveMu       sync.Mutex // serializes cache writes
	savedVersion uint64     // version of the snapshot last written, guarded by saveMu
}

// NewStateTracker creates a new state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{
		alignments: make(map[string]AlignmentRecord),
		sets:       make(map[string]*CorrespondenceSet),
	}
}

// NewStateTrackerWithCache creates a state tracker that persists alignment
// records to cachePath. Records already in the file are loaded on creation.
func NewStateTrackerWithCache(cachePath string) *StateTracker {
	st := NewStateTracker()
	st.cachePath = cachePath
	if cachePath == "" {
		return st
	}

	cache, err := LoadTransformCache(cachePath)
	if err != nil {
		log.Printf("[CACHE] Warning: ignoring unreadable cache %s: %v", cachePath, err)
		return st
	}
	if cache != nil {
		ids := cache.IDs()
		for _, id := range ids {
			rec, _ := cache.Get(id)
			st.alignments[id] = rec
		}
		log.Printf("[CACHE] Loaded %d alignment(s) from %s: %v", len(ids), cachePath, ids)
		if cache.IsStale(StaleCacheAge) {
			log.Printf("[CACHE] Warning: %s was last updated more than %v ago", cachePath, StaleCacheAge)
		}
	}
	return st
}

// Update stores the record for its ID and persists all records when a cache path is set.
// A snapshot older than the last one written is never saved over it.
func (st *StateTracker) Update(rec AlignmentRecord) {
	st.mu.Lock()
	st.alignments[rec.ID] = rec
	st.version++
	version := st.version
	var snapshot *TransformCache
	if st.cachePath != "" {
		snapshot = NewTransformCache()
		for id, r := range st.alignments {
			snapshot.Alignments[id] = r
		}
	}
	st.mu.Unlock()

	if snapshot == nil {
		return
	}

	st.saveMu.Lock()
	defer st.saveMu.Unlock()
	if version <= st.savedVersion {
		return
	}
	if err := SaveTransformCache(st.cachePath, snapshot); err != nil {
		log.Printf("[CACHE] Warning: failed to save transform cache: %v", err)
		return
	}
	st.savedVersion = version
}

// Get returns the record stored for id
func (st *StateTracker) Get(id string) (AlignmentRecord, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	rec, ok := st.alignments[id]
	return rec, ok
}

// List returns every record sorted by ID
func (st *StateTracker) List() []AlignmentRecord {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make([]AlignmentRecord, 0, len(st.alignments))
	for _, rec := range st.alignments {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// SetCorrespondences stores the correspondence set a record was fitted from
func (st *StateTracker) SetCorrespondences(set *CorrespondenceSet) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sets[set.ID] = set
}

// Set returns the correspondence set stored for id
func (st *StateTracker) Set(id string) (*CorrespondenceSet, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	set, ok := st.sets[id]
	return set, ok
}

// HasAlignments returns true if at least one record is stored
func (st *StateTracker) HasAlignments() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.alignments) > 0
}
