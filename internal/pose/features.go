package pose

import (
	"errors"
	"math"

	"github.com/ayusman/asana/internal/detector"
)

// ErrNoSubject is returned when a frame carries no usable landmarks.
var ErrNoSubject = errors.New("no subject in frame")

// FeatureSet holds the measurements derived from one frame. A measurement is
// absent when any landmark it depends on was below the visibility floor.
type FeatureSet struct {
	Side   Side               `json:"side,omitempty"`
	Values map[string]float64 `json:"values"`
}

// Get returns a measurement and whether it was computed.
func (fs FeatureSet) Get(name string) (float64, bool) {
	v, ok := fs.Values[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Measurer computes named measurements from a frame, skipping any whose
// landmarks are not visible enough.
type Measurer struct {
	frame         *detector.Frame
	width, height float64
	minVisibility float64
	values        map[string]float64
}

func newMeasurer(f *detector.Frame, minVisibility float64) *Measurer {
	w, h := f.Size()
	return &Measurer{
		frame:         f,
		width:         float64(w),
		height:        float64(h),
		minVisibility: minVisibility,
		values:        make(map[string]float64),
	}
}

// Visible reports whether every index clears the visibility floor.
func (m *Measurer) Visible(indices ...int) bool {
	for _, i := range indices {
		if m.frame.At(i).Visibility < m.minVisibility {
			return false
		}
	}
	return true
}

func (m *Measurer) p(i int) detector.Point3D {
	return m.frame.At(i).Point3D
}

// Angle records the angle a-b-c under name.
func (m *Measurer) Angle(name string, a, b, c int) {
	if m.Visible(a, b, c) {
		m.values[name] = Angle(m.p(a), m.p(b), m.p(c))
	}
}

// Ratio records dist(p,q) / dist(r,s) in pixel space under name. The
// reference length is floored at one pixel.
func (m *Measurer) Ratio(name string, p, q, r, s int) {
	if !m.Visible(p, q, r, s) {
		return
	}
	ref := Distance(m.p(r), m.p(s), m.width, m.height)
	if ref < 1 {
		ref = 1
	}
	m.values[name] = Distance(m.p(p), m.p(q), m.width, m.height) / ref
}

// OffsetX records (p.x - q.x) as a fraction of frame width.
func (m *Measurer) OffsetX(name string, p, q int) {
	if m.Visible(p, q) {
		m.values[name] = m.p(p).X - m.p(q).X
	}
}

// OffsetY records (p.y - q.y) as a fraction of frame height. Positive means p
// is lower on screen than q.
func (m *Measurer) OffsetY(name string, p, q int) {
	if m.Visible(p, q) {
		m.values[name] = m.p(p).Y - m.p(q).Y
	}
}

// Tilt records the angle of hip->shoulder from vertical.
func (m *Measurer) Tilt(name string, from, to int) {
	if m.Visible(from, to) {
		m.values[name] = TiltFromVertical(m.p(from), m.p(to), m.width, m.height)
	}
}

// Set records a derived value. Callers are responsible for visibility.
func (m *Measurer) Set(name string, v float64) {
	m.values[name] = v
}

// AbsOffsetX records |p.x - q.x| as a fraction of frame width.
func (m *Measurer) AbsOffsetX(name string, p, q int) {
	if m.Visible(p, q) {
		m.values[name] = math.Abs(m.p(p).X - m.p(q).X)
	}
}

// Min records the smaller of two recorded measurements. Missing inputs make
// the result missing.
func (m *Measurer) Min(name, a, b string) {
	va, okA := m.values[a]
	vb, okB := m.values[b]
	if okA && okB {
		m.values[name] = math.Min(va, vb)
	}
}

// hasUsableLandmarks reports whether at least one landmark clears the floor.
func hasUsableLandmarks(f *detector.Frame, minVisibility float64) bool {
	if !f.HasSubject() {
		return false
	}
	for _, lm := range f.Landmarks[:detector.NumLandmarks] {
		if lm.Visibility >= minVisibility {
			return true
		}
	}
	return false
}
