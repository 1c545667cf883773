package geom

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func testRecord(id string) AlignmentRecord {
	return AlignmentRecord{
		ID:        id,
		Transform: NewRigidTransform(RotationAbout(Point3{Z: 1}, 0.5), Point3{X: 1, Y: 2, Z: 3}),
		RMSD:      0.01,
		Count:     4,
		Rank:      3,
		Timestamp: 1700000000,
	}
}

func TestLoadTransformCache_Missing(t *testing.T) {
	cache, err := LoadTransformCache(filepath.Join(t.TempDir(), "none.json"))
	assert.NoError(t, err)
	assert.Nil(t, cache)
}

func TestLoadTransformCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadTransformCache(path)
	assert.ErrorContains(t, err, "parsing transform cache")
}

func TestSaveAndLoadTransformCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	cache := NewTransformCache()
	cache.Alignments["a"] = testRecord("a")
	cache.Alignments["b"] = AlignmentRecord{ID: "b", Transform: IdentityTransform()}

	before := time.Now().Unix()
	require.NoError(t, SaveTransformCache(path, cache))
	assert.GreaterOrEqual(t, cache.LastUpdated, before)

	loaded, err := LoadTransformCache(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, []string{"a", "b"}, loaded.IDs())
	rec, ok := loaded.Get("a")
	require.True(t, ok)
	assert.Equal(t, 4, rec.Count)
	assert.True(t, rec.Transform.ApproxEqual(testRecord("a").Transform, 1e-12))
	assert.False(t, loaded.IsStale(time.Hour))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should be renamed into place")
}

func TestSaveTransformCache_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := NewTransformCache()
	first.Alignments["a"] = testRecord("a")
	first.Alignments["b"] = testRecord("b")
	require.NoError(t, SaveTransformCache(path, first))

	second := NewTransformCache()
	second.Alignments["c"] = testRecord("c")
	require.NoError(t, SaveTransformCache(path, second))

	loaded, err := LoadTransformCache(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, loaded.IDs())
}

func TestTransformCache_NilSafe(t *testing.T) {
	var c *TransformCache
	_, ok := c.Get("x")
	assert.False(t, ok)
	assert.Nil(t, c.IDs())
	assert.True(t, c.IsStale(time.Hour))
}

func TestTransformCache_EmptyAlignmentsDecoded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"lastUpdated": 1}`), 0644))

	cache, err := LoadTransformCache(path)
	require.NoError(t, err)
	assert.NotNil(t, cache.Alignments)
	assert.True(t, cache.IsStale(time.Minute))
}

func TestNewAlignmentRecord(t *testing.T) {
	a := Alignment{
		Transform:  NewRigidTransform(r3.Rotation{Real: 1}, Point3{X: 1}),
		Rank:       1,
		Degenerate: true,
		Reflected:  true,
		RMSD:       0.5,
		Count:      2,
	}
	rec := NewAlignmentRecord("id1", a)
	assert.Equal(t, "id1", rec.ID)
	assert.Equal(t, 1, rec.Rank)
	assert.True(t, rec.Degenerate)
	assert.True(t, rec.Reflected)
	assert.Equal(t, 0.5, rec.RMSD)
	assert.Equal(t, 2, rec.Count)
	assert.NotZero(t, rec.Timestamp)
}
