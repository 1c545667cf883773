package geom

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRigidTransform_Apply(t *testing.T) {
	tests := []struct {
		name string
		tr   RigidTransform
		in   Point3
		want Point3
	}{
		{"identity", IdentityTransform(), Point3{X: 1, Y: 2, Z: 3}, Point3{X: 1, Y: 2, Z: 3}},
		{"translate", NewRigidTransform(r3.Rotation{Real: 1}, Point3{X: 1}), Point3{Y: 1}, Point3{X: 1, Y: 1}},
		{"quarter turn about z", NewRigidTransform(RotationAbout(Point3{Z: 1}, math.Pi/2), Point3{}), Point3{X: 1}, Point3{Y: 1}},
		{"rotate then translate", NewRigidTransform(RotationAbout(Point3{Z: 1}, math.Pi), Point3{X: 10}), Point3{X: 1, Y: 1}, Point3{X: 9, Y: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tr.Apply(tt.in)
			if !pointsAlmostEqual(got, tt.want, 1e-12) {
				t.Errorf("Apply(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRigidTransform_InverseAndCompose(t *testing.T) {
	a := NewRigidTransform(RotationAbout(Point3{X: 1, Y: -2, Z: 0.5}, 0.8), Point3{X: 3, Y: 4, Z: -5})
	b := NewRigidTransform(RotationAbout(Point3{Z: 1}, -1.9), Point3{X: -1, Z: 2})

	if !a.Compose(a.Inverse()).ApproxEqual(IdentityTransform(), 1e-12) {
		t.Errorf("a∘a⁻¹ = %v, want identity", a.Compose(a.Inverse()))
	}
	if !a.Inverse().Compose(a).ApproxEqual(IdentityTransform(), 1e-12) {
		t.Errorf("a⁻¹∘a = %v, want identity", a.Inverse().Compose(a))
	}

	p := Point3{X: 0.5, Y: 7, Z: -3}
	want := a.Apply(b.Apply(p))
	got := a.Compose(b).Apply(p)
	if !pointsAlmostEqual(got, want, 1e-12) {
		t.Errorf("Compose applied = %+v, want %+v", got, want)
	}
}

func TestRigidTransform_ApproxEqualSignOfQuaternion(t *testing.T) {
	q := RotationAbout(Point3{X: 1}, 0.3)
	neg := r3.Rotation{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
	a := RigidTransform{Rotation: q}
	b := RigidTransform{Rotation: neg}
	if !a.ApproxEqual(b, 1e-12) {
		t.Error("q and -q should describe the same rotation")
	}
	if a.ApproxEqual(RigidTransform{Rotation: q, Translation: Point3{Z: 1}}, 1e-12) {
		t.Error("transforms with different translation should differ")
	}
}

func TestRotationFromMatrix(t *testing.T) {
	axes := []Point3{{X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -0.2, Y: 0.9, Z: 0.1}}
	angles := []float64{0, 0.1, 1, math.Pi / 2, 3, math.Pi}

	for _, axis := range axes {
		for _, angle := range angles {
			want := NewRigidTransform(RotationAbout(axis, angle), Point3{})
			got := RigidTransform{Rotation: RotationFromMatrix(want.Matrix())}
			if !got.ApproxEqual(want, 1e-9) {
				t.Errorf("axis %+v angle %.2f: got %v, want %v", axis, angle, got, want)
			}
		}
	}
}

func TestNewRigidTransform_Normalizes(t *testing.T) {
	tr := NewRigidTransform(r3.Rotation{Real: 2}, Point3{})
	if tr.Rotation.Real != 1 {
		t.Errorf("Real = %v, want 1", tr.Rotation.Real)
	}
	zero := NewRigidTransform(r3.Rotation{}, Point3{})
	if !zero.ApproxEqual(IdentityTransform(), 0) {
		t.Errorf("zero quaternion should normalize to identity, got %v", zero)
	}
}

func TestRigidTransform_Angle(t *testing.T) {
	tr := NewRigidTransform(RotationAbout(Point3{Y: 1}, 1.25), Point3{})
	if !almostEqual(tr.Angle(), 1.25, 1e-12) {
		t.Errorf("Angle() = %v, want 1.25", tr.Angle())
	}
}

func TestRigidTransform_JSON(t *testing.T) {
	tr := NewRigidTransform(RotationAbout(Point3{Z: 1}, math.Pi/2), Point3{X: 1, Y: 2, Z: 3})

	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, key := range []string{`"rotation"`, `"translation"`, `"matrix"`, `"w"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded transform missing %s: %s", key, data)
		}
	}

	var decoded RigidTransform
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	opt := cmpopts.EquateApprox(0, 1e-12)
	if diff := cmp.Diff(tr.Translation, decoded.Translation, opt); diff != "" {
		t.Errorf("translation mismatch (-want +got):\n%s", diff)
	}
	if !decoded.ApproxEqual(tr, 1e-12) {
		t.Errorf("decoded = %v, want %v", decoded, tr)
	}
}

func TestRigidTransform_ApplyAll(t *testing.T) {
	tr := NewRigidTransform(r3.Rotation{Real: 1}, Point3{X: 1, Y: 1, Z: 1})
	got := tr.ApplyAll([]Point3{{}, {X: 1}})
	want := []Point3{{X: 1, Y: 1, Z: 1}, {X: 2, Y: 1, Z: 1}}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("ApplyAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestRMSD(t *testing.T) {
	pairs := []Correspondence{
		{Source: Point3{}, Target: Point3{X: 3}},
		{Source: Point3{}, Target: Point3{Y: 4}},
	}
	if got := SumSquaredResidual(IdentityTransform(), pairs); !almostEqual(got, 25, 1e-12) {
		t.Errorf("SumSquaredResidual() = %v, want 25", got)
	}
	if got := RMSD(IdentityTransform(), pairs); !almostEqual(got, math.Sqrt(12.5), 1e-12) {
		t.Errorf("RMSD() = %v, want %v", got, math.Sqrt(12.5))
	}
	if got := RMSD(IdentityTransform(), nil); got != 0 {
		t.Errorf("RMSD(nil) = %v, want 0", got)
	}
}
