package pose

// Smoother is a fixed-size ring of recent pass/fail verdicts. The pose is
// stable-good when at least minGood of the last Size verdicts passed. The
// ring starts full of failures so a fresh session needs minGood passes
// before it turns stable.
type Smoother struct {
	window []bool
	next   int
	good   int
}

// NewSmoother returns a smoother over size verdicts. Sizes below one fall
// back to DefaultWindowSize.
func NewSmoother(size int) *Smoother {
	if size < 1 {
		size = DefaultWindowSize
	}
	return &Smoother{window: make([]bool, size)}
}

// Push records one verdict, evicting the oldest, and reports whether the
// window is stable-good along with the current pass count. minGood is
// clamped into [1, Size].
func (s *Smoother) Push(pass bool, minGood int) (bool, int) {
	if s.window[s.next] {
		s.good--
	}
	s.window[s.next] = pass
	if pass {
		s.good++
	}
	s.next = (s.next + 1) % len(s.window)

	if minGood < 1 {
		minGood = 1
	}
	if minGood > len(s.window) {
		minGood = len(s.window)
	}
	return s.good >= minGood, s.good
}

// Good returns the number of passing verdicts in the window.
func (s *Smoother) Good() int {
	return s.good
}

// Size returns the window length.
func (s *Smoother) Size() int {
	return len(s.window)
}

// Reset clears the window back to all failures.
func (s *Smoother) Reset() {
	for i := range s.window {
		s.window[i] = false
	}
	s.next = 0
	s.good = 0
}
