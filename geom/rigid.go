package geom

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// RigidTransform is a proper rotation followed by a translation.
// Rotation is stored as a unit quaternion, so det(R) = +1 by construction.
type RigidTransform struct {
	Rotation    r3.Rotation
	Translation Point3
}

// IdentityTransform returns the transform that leaves every point in place
func IdentityTransform() RigidTransform {
	return RigidTransform{Rotation: r3.Rotation{Real: 1}}
}

// NewRigidTransform creates a transform from a rotation and translation.
// The rotation is renormalized to a unit quaternion.
func NewRigidTransform(rot r3.Rotation, translation Point3) RigidTransform {
	return RigidTransform{Rotation: normalizeRotation(rot), Translation: translation}
}

// RotationAbout returns the rotation by angle (radians) around axis
func RotationAbout(axis Point3, angle float64) r3.Rotation {
	return r3.NewRotation(angle, axis.Vec())
}

// Apply rotates p and then translates it
func (t RigidTransform) Apply(p Point3) Point3 {
	return PointFromVec(t.Rotation.Rotate(p.Vec())).Add(t.Translation)
}

// ApplyAll applies the transform to every point
func (t RigidTransform) ApplyAll(points []Point3) []Point3 {
	result := make([]Point3, len(points))
	for i, p := range points {
		result[i] = t.Apply(p)
	}
	return result
}

// Compose returns t∘u: applying the result is equivalent to applying u first, then t
func (t RigidTransform) Compose(u RigidTransform) RigidTransform {
	rot := quat.Mul(quat.Number(t.Rotation), quat.Number(u.Rotation))
	return RigidTransform{
		Rotation:    normalizeRotation(r3.Rotation(rot)),
		Translation: t.Apply(u.Translation),
	}
}

// Inverse returns the transform that undoes t
func (t RigidTransform) Inverse() RigidTransform {
	inv := r3.Rotation(quat.Conj(quat.Number(t.Rotation)))
	back := PointFromVec(inv.Rotate(t.Translation.Vec()))
	return RigidTransform{
		Rotation:    inv,
		Translation: Point3{X: -back.X, Y: -back.Y, Z: -back.Z},
	}
}

// Matrix returns the 3x3 rotation matrix
func (t RigidTransform) Matrix() *r3.Mat {
	return t.Rotation.Mat()
}

// Quaternion returns the rotation as a unit quaternion
func (t RigidTransform) Quaternion() quat.Number {
	return quat.Number(t.Rotation)
}

// Angle returns the rotation angle in radians, in [0, π]
func (t RigidTransform) Angle() float64 {
	w := math.Abs(t.Rotation.Real)
	if w > 1 {
		w = 1
	}
	return 2 * math.Acos(w)
}

// ApproxEqual reports whether two transforms agree within tol.
// q and -q describe the same rotation and compare equal.
func (t RigidTransform) ApproxEqual(u RigidTransform, tol float64) bool {
	if math.Abs(t.Translation.X-u.Translation.X) > tol ||
		math.Abs(t.Translation.Y-u.Translation.Y) > tol ||
		math.Abs(t.Translation.Z-u.Translation.Z) > tol {
		return false
	}
	p, q := quat.Number(t.Rotation), quat.Number(u.Rotation)
	return quat.Abs(quat.Sub(p, q)) <= tol || quat.Abs(quat.Add(p, q)) <= tol
}

func (t RigidTransform) String() string {
	return fmt.Sprintf("RigidTransform{rotation: %.6g, translation: (%.6g, %.6g, %.6g)}",
		t.Quaternion(), t.Translation.X, t.Translation.Y, t.Translation.Z)
}

// RotationFromMatrix converts a proper rotation matrix to a unit quaternion
// using Shepperd's method, which branches on the largest diagonal term to
// stay well conditioned.
func RotationFromMatrix(m *r3.Mat) r3.Rotation {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	var q quat.Number
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		q = quat.Number{Real: s / 4, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{Real: (m21 - m12) / s, Imag: s / 4, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: s / 4, Kmag: (m12 + m21) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: s / 4}
	}
	return normalizeRotation(r3.Rotation(q))
}

func normalizeRotation(r r3.Rotation) r3.Rotation {
	q := quat.Number(r)
	n := quat.Abs(q)
	if n == 0 {
		return r3.Rotation{Real: 1}
	}
	if n != 1 {
		q = quat.Scale(1/n, q)
	}
	return r3.Rotation(q)
}

// rigidTransformJSON is the wire form of a RigidTransform
type rigidTransformJSON struct {
	Rotation    quaternionJSON `json:"rotation"`
	Translation Point3         `json:"translation"`
	Matrix      *[3][3]float64 `json:"matrix,omitempty"`
}

type quaternionJSON struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MarshalJSON encodes the rotation both as a quaternion and as a row-major matrix
func (t RigidTransform) MarshalJSON() ([]byte, error) {
	m := t.Matrix()
	var rows [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return json.Marshal(rigidTransformJSON{
		Rotation: quaternionJSON{
			W: t.Rotation.Real,
			X: t.Rotation.Imag,
			Y: t.Rotation.Jmag,
			Z: t.Rotation.Kmag,
		},
		Translation: t.Translation,
		Matrix:      &rows,
	})
}

// UnmarshalJSON decodes the quaternion and translation; the matrix is ignored
func (t *RigidTransform) UnmarshalJSON(data []byte) error {
	var raw rigidTransformJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing rigid transform: %w", err)
	}
	rot := r3.Rotation{Real: raw.Rotation.W, Imag: raw.Rotation.X, Jmag: raw.Rotation.Y, Kmag: raw.Rotation.Z}
	*t = NewRigidTransform(rot, raw.Translation)
	return nil
}
