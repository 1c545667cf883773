package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SumSquaredResidual returns Σ‖t(source) − target‖² over all pairs
func SumSquaredResidual(t RigidTransform, pairs []Correspondence) float64 {
	var sum float64
	for _, p := range pairs {
		sum += r3.Norm2(t.Apply(p.Source).Sub(p.Target).Vec())
	}
	return sum
}

// RMSD returns the root-mean-square distance between transformed sources and targets.
// Returns 0 for no pairs.
func RMSD(t RigidTransform, pairs []Correspondence) float64 {
	if len(pairs) == 0 {
		return 0
	}
	return math.Sqrt(SumSquaredResidual(t, pairs) / float64(len(pairs)))
}
