package geom

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrSVDNotConverged is returned when the decomposition of the
	// cross-covariance matrix fails
	ErrSVDNotConverged = errors.New("svd did not converge")

	// ErrLengthMismatch is returned when source and target lists differ in length
	ErrLengthMismatch = errors.New("source and target point counts differ")
)

// Decomposition holds the factors of M = U·diag(Values)·Vᵀ for a 3x3 matrix
type Decomposition struct {
	U      *r3.Mat
	V      *r3.Mat
	Values [3]float64 // Singular values in descending order
}

// Decomposer computes the singular value decomposition of a 3x3 matrix
type Decomposer interface {
	Decompose(m mat.Matrix) (Decomposition, error)
}

// GonumSVD decomposes with gonum's dense SVD
type GonumSVD struct{}

// Decompose implements Decomposer
func (GonumSVD) Decompose(m mat.Matrix) (Decomposition, error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return Decomposition{}, fmt.Errorf("decomposing %dx%d matrix: %w", r, c, mat.ErrShape)
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return Decomposition{}, ErrSVDNotConverged
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	d := Decomposition{U: r3.NewMat(nil), V: r3.NewMat(nil)}
	d.U.CloneFrom(&u)
	d.V.CloneFrom(&v)
	copy(d.Values[:], svd.Values(nil))
	return d, nil
}

// Alignment is the full outcome of a Kabsch fit
type Alignment struct {
	Transform      RigidTransform
	Rotation       *r3.Mat    // Proper rotation matrix the transform was built from
	SingularValues [3]float64 // Singular values of the cross-covariance matrix
	Rank           int        // Singular values above RankTolerance·max
	Reflected      bool       // Sign correction flipped the last axis to avoid a mirror solution
	Degenerate     bool       // Fewer than 2 independent directions; rotation is not unique
	RMSD           float64    // Root-mean-square residual of the fitted transform
	Count          int        // Number of correspondences used
}

// Aligner fits rigid transforms to point correspondences with the Kabsch algorithm
type Aligner struct {
	Decomposer         Decomposer
	RankTolerance      float64 // Relative cutoff used to count independent directions
	MinCorrespondences int     // Fits with fewer pairs log a warning
}

// AlignerOption configures an Aligner
type AlignerOption func(*Aligner)

// WithDecomposer replaces the SVD backend
func WithDecomposer(d Decomposer) AlignerOption {
	return func(a *Aligner) { a.Decomposer = d }
}

// WithRankTolerance sets the relative singular value cutoff
func WithRankTolerance(tol float64) AlignerOption {
	return func(a *Aligner) { a.RankTolerance = tol }
}

// WithMinCorrespondences sets the warning threshold for small inputs
func WithMinCorrespondences(n int) AlignerOption {
	return func(a *Aligner) { a.MinCorrespondences = n }
}

// NewAligner creates an aligner backed by gonum's SVD
func NewAligner(opts ...AlignerOption) *Aligner {
	a := &Aligner{
		Decomposer:         GonumSVD{},
		RankTolerance:      DefaultRankTolerance,
		MinCorrespondences: DefaultMinCorrespondences,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAlignerFromConfig creates an aligner using the alignment section of a config
func NewAlignerFromConfig(cfg AlignmentConfig) *Aligner {
	var opts []AlignerOption
	if cfg.RankTolerance > 0 {
		opts = append(opts, WithRankTolerance(cfg.RankTolerance))
	}
	if cfg.MinCorrespondences > 0 {
		opts = append(opts, WithMinCorrespondences(cfg.MinCorrespondences))
	}
	return NewAligner(opts...)
}

var defaultAligner = NewAligner()

// Kabsch fits the least-squares rigid transform mapping each source onto its target
// using the default aligner. Returns false when pairs is empty.
func Kabsch(pairs []Correspondence) (RigidTransform, bool, error) {
	return defaultAligner.Align(pairs)
}

// Pair zips two equal-length point lists into correspondences
func Pair(source, target []Point3) ([]Correspondence, error) {
	if len(source) != len(target) {
		return nil, fmt.Errorf("%w: %d source, %d target", ErrLengthMismatch, len(source), len(target))
	}
	pairs := make([]Correspondence, len(source))
	for i := range source {
		pairs[i] = Correspondence{Source: source[i], Target: target[i]}
	}
	return pairs, nil
}

// Align returns only the fitted transform. See Fit.
func (a *Aligner) Align(pairs []Correspondence) (RigidTransform, bool, error) {
	result, ok, err := a.Fit(pairs)
	if err != nil || !ok {
		return RigidTransform{}, ok, err
	}
	return result.Transform, true, nil
}

// Fit computes the proper rigid transform minimizing Σ‖R·Pᵢ + t − Qᵢ‖².
//
// Returns false with a nil error when pairs is empty. With fewer than three
// non-collinear pairs the rotation is underdetermined; the SVD result is
// returned as is and Degenerate is set.
func (a *Aligner) Fit(pairs []Correspondence) (Alignment, bool, error) {
	if len(pairs) == 0 {
		return Alignment{}, false, nil
	}

	var srcAcc, tgtAcc PointAccumulator
	for _, p := range pairs {
		srcAcc.Add(p.Source)
		tgtAcc.Add(p.Target)
	}
	srcCentroid, _ := srcAcc.Centroid()
	tgtCentroid, _ := tgtAcc.Centroid()

	// H = Σ (Pᵢ − Cs)(Qᵢ − Ct)ᵀ; source is the row axis, target the column axis.
	// Swapping them moves the sign correction onto the wrong factor.
	covariance := r3.NewMat(nil)
	outer := r3.NewMat(nil)
	for _, p := range pairs {
		outer.Outer(1, p.Source.Sub(srcCentroid).Vec(), p.Target.Sub(tgtCentroid).Vec())
		covariance.Add(covariance, outer)
	}

	dec, err := a.decomposer().Decompose(covariance)
	if err != nil {
		return Alignment{}, false, fmt.Errorf("decomposing cross-covariance: %w", err)
	}

	// d = sign(det(U·Vᵀ)) detects a reflection in the unconstrained optimum
	uvt := r3.NewMat(nil)
	uvt.Mul(dec.U, dec.V.T())
	d := 1.0
	if uvt.Det() < 0 {
		d = -1.0
	}

	// R = (U·diag(1,1,d)·Vᵀ)ᵀ = V·diag(1,1,d)·Uᵀ maps source onto target
	correction := r3.NewMat([]float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, d,
	})
	vd := r3.NewMat(nil)
	vd.Mul(dec.V, correction)
	rotation := r3.NewMat(nil)
	rotation.Mul(vd, dec.U.T())

	transform := RigidTransform{Rotation: RotationFromMatrix(rotation)}
	rotatedCentroid := PointFromVec(rotation.MulVec(srcCentroid.Vec()))
	transform.Translation = tgtCentroid.Sub(rotatedCentroid)

	result := Alignment{
		Transform:      transform,
		Rotation:       rotation,
		SingularValues: dec.Values,
		Rank:           a.rank(dec.Values),
		Reflected:      d < 0,
		Count:          len(pairs),
	}
	result.Degenerate = result.Rank < 2
	result.RMSD = RMSD(transform, pairs)

	if result.Degenerate {
		log.Printf("[KABSCH] rotation underdetermined: rank %d from %d correspondences (singular values %.3g)",
			result.Rank, len(pairs), dec.Values)
	} else if a.MinCorrespondences > 0 && len(pairs) < a.MinCorrespondences {
		log.Printf("[KABSCH] only %d correspondences (want at least %d)", len(pairs), a.MinCorrespondences)
	}

	return result, true, nil
}

func (a *Aligner) decomposer() Decomposer {
	if a.Decomposer == nil {
		return GonumSVD{}
	}
	return a.Decomposer
}

// rank counts singular values above RankTolerance times the largest one
func (a *Aligner) rank(values [3]float64) int {
	largest := math.Max(values[0], math.Max(values[1], values[2]))
	if largest == 0 {
		return 0
	}
	tol := a.RankTolerance
	if tol <= 0 {
		tol = DefaultRankTolerance
	}
	n := 0
	for _, s := range values {
		if s > tol*largest {
			n++
		}
	}
	return n
}
