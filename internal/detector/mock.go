package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu        sync.Mutex
	landmarks []Landmark
	err       error
	calls     int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetLandmarks sets the landmarks returned by Detect. nil means nobody in view.
func (m *MockDetector) SetLandmarks(landmarks []Landmark) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.landmarks = landmarks
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured landmarks or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Landmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.landmarks, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

type preset struct {
	index      int
	x, y       float64
	visibility float64
}

func fromPresets(points []preset) []Landmark {
	landmarks := make([]Landmark, NumLandmarks)
	for _, p := range points {
		landmarks[p.index] = Landmark{
			Point3D:    Point3D{X: p.x, Y: p.y},
			Visibility: p.visibility,
		}
	}
	// Face and hand detail points are not used by any rule; park them on
	// their anchors so every index is populated.
	for i := LeftEyeInner; i <= MouthRight; i++ {
		landmarks[i] = landmarks[Nose]
	}
	for i := LeftPinky; i <= RightThumb; i++ {
		if i%2 == 1 {
			landmarks[i] = landmarks[LeftWrist]
		} else {
			landmarks[i] = landmarks[RightWrist]
		}
	}
	return landmarks
}

// StandingLandmarks returns an upright, front-facing person with arms down.
// It satisfies none of the built-in hold poses.
func StandingLandmarks() []Landmark {
	return fromPresets([]preset{
		{Nose, 0.50, 0.22, 0.9},
		{LeftShoulder, 0.47, 0.30, 0.9}, {RightShoulder, 0.53, 0.30, 0.9},
		{LeftElbow, 0.46, 0.42, 0.9}, {RightElbow, 0.54, 0.42, 0.9},
		{LeftWrist, 0.45, 0.55, 0.9}, {RightWrist, 0.55, 0.55, 0.9},
		{LeftHip, 0.48, 0.55, 0.9}, {RightHip, 0.52, 0.55, 0.9},
		{LeftKnee, 0.48, 0.75, 0.9}, {RightKnee, 0.52, 0.75, 0.9},
		{LeftAnkle, 0.48, 0.95, 0.9}, {RightAnkle, 0.52, 0.95, 0.9},
		{LeftHeel, 0.49, 0.96, 0.9}, {RightHeel, 0.53, 0.96, 0.9},
		{LeftFootIndex, 0.47, 0.97, 0.9}, {RightFootIndex, 0.53, 0.97, 0.9},
	})
}

// BridgeLandmarks returns a side-on bridge with the left side facing the
// camera: hips lifted in line with shoulders and straight legs, wrists
// tucked by the hips and toes pointing up.
func BridgeLandmarks() []Landmark {
	return fromPresets([]preset{
		{Nose, 0.20, 0.80, 0.9},
		{LeftShoulder, 0.25, 0.80, 0.95}, {RightShoulder, 0.26, 0.80, 0.55},
		{LeftElbow, 0.36, 0.77, 0.95}, {RightElbow, 0.37, 0.77, 0.55},
		{LeftWrist, 0.47, 0.74, 0.95}, {RightWrist, 0.48, 0.74, 0.55},
		{LeftHip, 0.50, 0.70, 0.95}, {RightHip, 0.51, 0.70, 0.55},
		{LeftKnee, 0.65, 0.64, 0.95}, {RightKnee, 0.66, 0.64, 0.55},
		{LeftAnkle, 0.80, 0.58, 0.95}, {RightAnkle, 0.81, 0.58, 0.55},
		{LeftHeel, 0.81, 0.62, 0.95}, {RightHeel, 0.82, 0.62, 0.55},
		{LeftFootIndex, 0.83, 0.57, 0.95}, {RightFootIndex, 0.84, 0.57, 0.55},
	})
}
