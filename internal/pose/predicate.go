package pose

// Predicate is one named, stateless check of a FeatureSet against a RuleSet.
// A missing measurement or threshold makes the check fail.
type Predicate struct {
	Name  string
	Check func(fs FeatureSet, rs RuleSet) bool
}

// Check is the outcome of one predicate, kept for diagnostics.
type Check struct {
	Name string `json:"name"`
	Pass bool   `json:"pass"`
}

// Verdict is the per-frame evaluation result.
type Verdict struct {
	Pass     bool       `json:"pass"`
	Features FeatureSet `json:"features"`
	Checks   []Check    `json:"checks"`
}

// Evaluate runs every predicate and ANDs the results. All predicates are run
// so the caller can show which ones failed. An empty list never passes.
func Evaluate(fs FeatureSet, rs RuleSet, predicates []Predicate) Verdict {
	v := Verdict{
		Pass:     len(predicates) > 0,
		Features: fs,
		Checks:   make([]Check, 0, len(predicates)),
	}
	for _, p := range predicates {
		ok := p.Check != nil && p.Check(fs, rs)
		v.Checks = append(v.Checks, Check{Name: p.Name, Pass: ok})
		if !ok {
			v.Pass = false
		}
	}
	return v
}

// AtMost passes when feature <= threshold.
func AtMost(name, feature, threshold string) Predicate {
	return compare(name, feature, threshold, func(v, t float64) bool { return v <= t })
}

// AtLeast passes when feature >= threshold.
func AtLeast(name, feature, threshold string) Predicate {
	return compare(name, feature, threshold, func(v, t float64) bool { return v >= t })
}

// Above passes when feature > threshold.
func Above(name, feature, threshold string) Predicate {
	return compare(name, feature, threshold, func(v, t float64) bool { return v > t })
}

// Within passes when lo <= feature <= hi.
func Within(name, feature, lo, hi string) Predicate {
	return Predicate{
		Name: name,
		Check: func(fs FeatureSet, rs RuleSet) bool {
			v, ok := fs.Get(feature)
			if !ok {
				return false
			}
			lower, okLo := rs.Threshold(lo)
			upper, okHi := rs.Threshold(hi)
			return okLo && okHi && v >= lower && v <= upper
		},
	}
}

// Between passes when lo < feature < hi.
func Between(name, feature, lo, hi string) Predicate {
	return Predicate{
		Name: name,
		Check: func(fs FeatureSet, rs RuleSet) bool {
			v, ok := fs.Get(feature)
			if !ok {
				return false
			}
			lower, okLo := rs.Threshold(lo)
			upper, okHi := rs.Threshold(hi)
			return okLo && okHi && v > lower && v < upper
		},
	}
}

// AnyOf passes when at least one of preds passes.
func AnyOf(name string, preds ...Predicate) Predicate {
	return Predicate{
		Name: name,
		Check: func(fs FeatureSet, rs RuleSet) bool {
			for _, p := range preds {
				if p.Check(fs, rs) {
					return true
				}
			}
			return false
		},
	}
}

// AllOf passes when every one of preds passes.
func AllOf(name string, preds ...Predicate) Predicate {
	return Predicate{
		Name: name,
		Check: func(fs FeatureSet, rs RuleSet) bool {
			if len(preds) == 0 {
				return false
			}
			for _, p := range preds {
				if !p.Check(fs, rs) {
					return false
				}
			}
			return true
		},
	}
}

func compare(name, feature, threshold string, cmp func(v, t float64) bool) Predicate {
	return Predicate{
		Name: name,
		Check: func(fs FeatureSet, rs RuleSet) bool {
			v, ok := fs.Get(feature)
			if !ok {
				return false
			}
			t, ok := rs.Threshold(threshold)
			if !ok {
				return false
			}
			return cmp(v, t)
		},
	}
}
