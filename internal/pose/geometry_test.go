package pose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/asana/internal/detector"
)

func pt(x, y float64) detector.Point3D {
	return detector.Point3D{X: x, Y: y}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c detector.Point3D
		want    float64
	}{
		{"collinear", pt(0.1, 0.5), pt(0.3, 0.5), pt(0.9, 0.5), 180},
		{"right angle", pt(0.5, 0.2), pt(0.5, 0.5), pt(0.8, 0.5), 90},
		{"folded back", pt(0.2, 0.2), pt(0.5, 0.5), pt(0.2, 0.2), 0},
		{"diagonal", pt(0.6, 0.4), pt(0.5, 0.5), pt(0.6, 0.5), 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Angle(tt.a, tt.b, tt.c), 1e-6)
		})
	}
}

func TestAngle_Degenerate(t *testing.T) {
	t.Run("a equals c", func(t *testing.T) {
		got := Angle(pt(0.3, 0.3), pt(0.5, 0.5), pt(0.3, 0.3))
		assert.False(t, math.IsNaN(got))
		assert.False(t, math.IsInf(got, 0))
	})

	t.Run("coincident vertex", func(t *testing.T) {
		got := Angle(pt(0.5, 0.5), pt(0.5, 0.5), pt(0.7, 0.1))
		assert.False(t, math.IsNaN(got))
		assert.InDelta(t, 90, got, 1e-9)
	})

	t.Run("all coincident is stable", func(t *testing.T) {
		p := pt(0.4, 0.4)
		first := Angle(p, p, p)
		assert.False(t, math.IsNaN(first))
		assert.Equal(t, first, Angle(p, p, p))
	})
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 100, Distance(pt(0, 0), pt(0.25, 0), 400, 300), 1e-9)
	assert.InDelta(t, 150, Distance(pt(0, 0), pt(0, 0.5), 400, 300), 1e-9)
	assert.InDelta(t, 5, Distance(pt(0, 0), pt(0.03, 0.04), 100, 100), 1e-9)
	assert.Zero(t, Distance(pt(0.2, 0.2), pt(0.2, 0.2), 640, 480))
}

func TestTiltFromVertical(t *testing.T) {
	assert.InDelta(t, 0, TiltFromVertical(pt(0.5, 0.8), pt(0.5, 0.2), 640, 480), 1e-9)
	assert.InDelta(t, 90, TiltFromVertical(pt(0.2, 0.5), pt(0.8, 0.5), 640, 480), 1e-9)
	assert.InDelta(t, 180, TiltFromVertical(pt(0.5, 0.2), pt(0.5, 0.8), 640, 480), 1e-9)
	// 100px right, 100px up.
	assert.InDelta(t, 45, TiltFromVertical(pt(0, 1), pt(0.25, 0.5), 400, 200), 1e-9)
}
