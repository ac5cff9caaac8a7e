package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/asana/internal/detector"
)

// uniformFrame returns a full frame with every landmark at the centre.
func uniformFrame(visibility float64) *detector.Frame {
	lms := make([]detector.Landmark, detector.NumLandmarks)
	for i := range lms {
		lms[i] = detector.Landmark{Point3D: pt(0.5, 0.5), Visibility: visibility}
	}
	return &detector.Frame{Landmarks: lms, Width: 640, Height: 480}
}

func set(f *detector.Frame, i int, x, y float64) {
	f.Landmarks[i].X, f.Landmarks[i].Y = x, y
}

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, SideRight, SideLeft.Opposite())
	assert.Equal(t, SideLeft, SideRight.Opposite())
	assert.Equal(t, SideNone, SideNone.Opposite())
}

func TestVisibilitySide(t *testing.T) {
	t.Run("more visible side wins", func(t *testing.T) {
		f := uniformFrame(0.9)
		for _, i := range wristToToeSide.Right {
			f.Landmarks[i].Visibility = 0.3
		}
		assert.Equal(t, SideLeft, wristToToeSide.Choose(f))

		f = uniformFrame(0.9)
		for _, i := range wristToToeSide.Left {
			f.Landmarks[i].Visibility = 0.3
		}
		assert.Equal(t, SideRight, wristToToeSide.Choose(f))
	})

	t.Run("near tie uses shorter wrist to toe distance", func(t *testing.T) {
		f := uniformFrame(0.9)
		// Visibility sums differ by 0.4, under the epsilon.
		f.Landmarks[detector.LeftHip].Visibility = 0.5
		set(f, detector.LeftWrist, 0.2, 0.2)
		set(f, detector.LeftFootIndex, 0.8, 0.8)
		set(f, detector.RightWrist, 0.45, 0.7)
		set(f, detector.RightFootIndex, 0.5, 0.8)

		for i := 0; i < 5; i++ {
			assert.Equal(t, SideRight, wristToToeSide.Choose(f))
		}
	})

	t.Run("exact tie goes left", func(t *testing.T) {
		f := uniformFrame(0.9)
		assert.Equal(t, SideLeft, wristToToeSide.Choose(f))
	})

	t.Run("zero epsilon uses default", func(t *testing.T) {
		chooser := wristToToeSide
		chooser.Epsilon = 0
		f := uniformFrame(0.9)
		f.Landmarks[detector.LeftHip].Visibility = 0.6
		set(f, detector.LeftWrist, 0.5, 0.55)
		set(f, detector.RightWrist, 0.1, 0.1)
		assert.Equal(t, SideLeft, chooser.Choose(f))
	})
}

func TestBentKneeSide(t *testing.T) {
	chooser := BentKneeSide{Target: 90, Tolerance: 40}

	t.Run("right knee bent", func(t *testing.T) {
		f := uniformFrame(0.9)
		set(f, detector.LeftHip, 0.5, 0.5)
		set(f, detector.LeftKnee, 0.5, 0.7)
		set(f, detector.LeftAnkle, 0.5, 0.9)
		set(f, detector.RightHip, 0.5, 0.5)
		set(f, detector.RightKnee, 0.3, 0.5)
		set(f, detector.RightAnkle, 0.3, 0.8)
		assert.Equal(t, SideRight, chooser.Choose(f))
	})

	t.Run("both legs straight falls back to left", func(t *testing.T) {
		f := uniformFrame(0.9)
		for _, idx := range [][3]int{
			{detector.LeftHip, detector.LeftKnee, detector.LeftAnkle},
			{detector.RightHip, detector.RightKnee, detector.RightAnkle},
		} {
			set(f, idx[0], 0.5, 0.5)
			set(f, idx[1], 0.5, 0.7)
			set(f, idx[2], 0.5, 0.9)
		}
		assert.Equal(t, SideLeft, chooser.Choose(f))
	})

	t.Run("fixture lunge picks the bent left leg", func(t *testing.T) {
		f := loadFrame(t, "crescent_lunge")
		assert.Equal(t, SideLeft, chooser.Choose(&f))
	})
}
