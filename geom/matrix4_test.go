package geom

import (
	"math"
	"testing"
)

func TestMatrix4_MulInverse(t *testing.T) {
	const eps = 0.00001

	mat := NewTranslateMatrix4(1, 2, 3).
		Mul(NewEulerRotationMatrix4(10*math.Pi/180, 20*math.Pi/180, 30*math.Pi/180, 1)).
		Mul(NewScaleMatrix4(1.5, 1.6, 1.7))
	ident := mat.Mul(mat.Inverse())

	for i, v := range NewMatrix4() {
		if math.Abs(float64(ident[i]-v)) > eps {
			t.Error("not identity: ", ident)
			break
		}
	}
}

func TestMatrix4_Det(t *testing.T) {
	const eps = 0.00001

	if d := NewScaleMatrix4(2, 3, 4).Det(); math.Abs(float64(d-24)) > eps {
		t.Error("det: ", d)
	}
	if d := NewScaleMatrix4(-1, 1, 1).Det(); d >= 0 {
		t.Error("mirror det should be negative: ", d)
	}
}

func TestMatrix4_ApplyTo(t *testing.T) {
	const eps = 0.00001

	mat := NewTranslateMatrix4(10, 20, 30).Mul(NewScaleMatrix4(2, 2, 2))
	p := mat.ApplyTo(NewVector3(1, 1, 1))
	if p.Sub(NewVector3(12, 22, 32)).Len() > eps {
		t.Error("point: ", p)
	}
	d := mat.ApplyToDirection(NewVector3(1, 0, 0))
	if d.Sub(NewVector3(2, 0, 0)).Len() > eps {
		t.Error("direction should ignore translation: ", d)
	}
}

func TestMatrix4_NormalMatrix(t *testing.T) {
	const eps = 0.0001

	// Non-uniform scale: the plain transform would tilt this normal.
	mat := NewScaleMatrix4(2, 1, 1)
	n := mat.NormalMatrix().ApplyToDirection(NewVector3(1, 1, 0).Normalize()).Normalize()
	expected := NewVector3(0.5, 1, 0).Normalize()
	if n.Sub(expected).Len() > eps {
		t.Error("normal: ", n, " expected: ", expected)
	}
}
