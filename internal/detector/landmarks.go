// Package detector provides body pose detection interfaces and landmark types.
package detector

// Pose landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// Default frame dimensions used when a source does not report its own.
const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480
)

// Point3D represents a 3D point. X and Y are normalized to the frame (0..1).
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Landmark is a tracked body keypoint with a visibility confidence (0..1).
type Landmark struct {
	Point3D
	Visibility float64 `json:"visibility"`
}

// Frame is one sample from the landmark source. A frame with no landmarks
// means the tracker lost the subject for this tick.
type Frame struct {
	Landmarks   []Landmark `json:"landmarks"`
	TimestampMs int64      `json:"timestamp"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
}

// HasSubject reports whether the frame carries a full landmark set.
func (f *Frame) HasSubject() bool {
	return f != nil && len(f.Landmarks) >= NumLandmarks
}

// At returns the landmark at index i, or a zero landmark when out of range.
func (f *Frame) At(i int) Landmark {
	if f == nil || i < 0 || i >= len(f.Landmarks) {
		return Landmark{}
	}
	return f.Landmarks[i]
}

// Size returns the frame dimensions, falling back to the defaults.
func (f *Frame) Size() (int, int) {
	w, h := DefaultFrameWidth, DefaultFrameHeight
	if f != nil && f.Width > 0 {
		w = f.Width
	}
	if f != nil && f.Height > 0 {
		h = f.Height
	}
	return w, h
}

// NoSubject returns an empty frame stamped with ts.
func NoSubject(ts int64, width, height int) Frame {
	return Frame{TimestampMs: ts, Width: width, Height: height}
}
