package pose

import (
	"math"

	"github.com/ayusman/asana/internal/detector"
)

// Side identifies the lateral half of the body a rule is evaluated on.
// The zero value means no side was selected.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Opposite returns the other side. SideNone stays SideNone.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	}
	return SideNone
}

// pick returns left when s is SideLeft and right otherwise.
func (s Side) pick(left, right int) int {
	if s == SideLeft {
		return left
	}
	return right
}

// SideChooser selects the side to evaluate for one frame. It must be
// deterministic for identical input.
type SideChooser interface {
	Choose(f *detector.Frame) Side
}

// DefaultSideEpsilon is the visibility-sum difference under which both sides
// count as equally visible.
const DefaultSideEpsilon = 0.5

// VisibilitySide picks the side whose landmark subset is more visible. When the
// summed visibilities differ by less than Epsilon, the side with the shorter
// characteristic distance wins, on the assumption that it is foreshortened
// toward the camera. Exact ties go to the left side.
type VisibilitySide struct {
	Left, Right         []int
	LeftPair, RightPair [2]int
	Epsilon             float64
}

// Choose implements SideChooser.
func (v VisibilitySide) Choose(f *detector.Frame) Side {
	var visL, visR float64
	for _, i := range v.Left {
		visL += f.At(i).Visibility
	}
	for _, i := range v.Right {
		visR += f.At(i).Visibility
	}

	eps := v.Epsilon
	if eps <= 0 {
		eps = DefaultSideEpsilon
	}

	if math.Abs(visL-visR) < eps {
		w, h := f.Size()
		dL := Distance(f.At(v.LeftPair[0]).Point3D, f.At(v.LeftPair[1]).Point3D, float64(w), float64(h))
		dR := Distance(f.At(v.RightPair[0]).Point3D, f.At(v.RightPair[1]).Point3D, float64(w), float64(h))
		if dL <= dR {
			return SideLeft
		}
		return SideRight
	}

	if visL > visR {
		return SideLeft
	}
	return SideRight
}

// BentKneeSide picks the leg whose knee angle is closest to Target degrees,
// used to find the front leg of a lunge. When neither knee is within
// Tolerance of the target the left side is returned.
type BentKneeSide struct {
	Target    float64
	Tolerance float64
}

// Choose implements SideChooser.
func (b BentKneeSide) Choose(f *detector.Frame) Side {
	kL := Angle(f.At(detector.LeftHip).Point3D, f.At(detector.LeftKnee).Point3D, f.At(detector.LeftAnkle).Point3D)
	kR := Angle(f.At(detector.RightHip).Point3D, f.At(detector.RightKnee).Point3D, f.At(detector.RightAnkle).Point3D)

	dL := math.Abs(kL - b.Target)
	dR := math.Abs(kR - b.Target)
	if math.Min(dL, dR) > b.Tolerance {
		return SideLeft
	}
	if dL <= dR {
		return SideLeft
	}
	return SideRight
}

// wristToToeSide is the side chooser shared by the side-on floor and fold poses.
var wristToToeSide = VisibilitySide{
	Left: []int{
		detector.LeftShoulder, detector.LeftHip, detector.LeftKnee,
		detector.LeftAnkle, detector.LeftWrist, detector.LeftFootIndex,
	},
	Right: []int{
		detector.RightShoulder, detector.RightHip, detector.RightKnee,
		detector.RightAnkle, detector.RightWrist, detector.RightFootIndex,
	},
	LeftPair:  [2]int{detector.LeftWrist, detector.LeftFootIndex},
	RightPair: [2]int{detector.RightWrist, detector.RightFootIndex},
	Epsilon:   DefaultSideEpsilon,
}
