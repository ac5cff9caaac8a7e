package pose

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Reserved rule document fields. Every other field names a threshold.
const (
	FieldHoldMs        = "holdMs"
	FieldGraceMs       = "graceMs"
	FieldMinGoodCount  = "minGoodCount"
	FieldMinVisibility = "minVisibility"
)

// DefaultMinVisibility is the landmark visibility floor below which a
// measurement is treated as missing.
const DefaultMinVisibility = 0.5

// ErrInvalidRuleSet is returned when a rule set cannot be evaluated safely.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// RuleSet is an immutable snapshot of the thresholds and timing for one pose.
// Treat values as read-only once published; use Merge to derive a new one.
type RuleSet struct {
	Pose           string             `json:"pose"`
	Thresholds     map[string]float64 `json:"thresholds"`
	HoldDurationMs int64              `json:"holdMs"`
	GraceMs        int64              `json:"graceMs"`
	MinGoodCount   int                `json:"minGoodCount"`
	MinVisibility  float64            `json:"minVisibility"`
}

// Threshold returns a finite threshold value.
func (r RuleSet) Threshold(name string) (float64, bool) {
	v, ok := r.Thresholds[name]
	if !ok || !finite(v) {
		return 0, false
	}
	return v, true
}

// Clone returns a deep copy.
func (r RuleSet) Clone() RuleSet {
	out := r
	out.Thresholds = make(map[string]float64, len(r.Thresholds))
	for k, v := range r.Thresholds {
		out.Thresholds[k] = v
	}
	return out
}

// Fields flattens the rule set into a single document, the inverse of Merge.
func (r RuleSet) Fields() map[string]float64 {
	fields := make(map[string]float64, len(r.Thresholds)+4)
	for k, v := range r.Thresholds {
		fields[k] = v
	}
	fields[FieldHoldMs] = float64(r.HoldDurationMs)
	fields[FieldGraceMs] = float64(r.GraceMs)
	fields[FieldMinGoodCount] = float64(r.MinGoodCount)
	fields[FieldMinVisibility] = r.MinVisibility
	return fields
}

// Validate reports whether every value is usable.
func (r RuleSet) Validate() error {
	for name, v := range r.Thresholds {
		if !finite(v) {
			return fmt.Errorf("%w: threshold %q is not finite", ErrInvalidRuleSet, name)
		}
	}
	if r.HoldDurationMs < 0 {
		return fmt.Errorf("%w: negative hold duration", ErrInvalidRuleSet)
	}
	if r.GraceMs < 0 {
		return fmt.Errorf("%w: negative grace period", ErrInvalidRuleSet)
	}
	if r.MinGoodCount < 1 {
		return fmt.Errorf("%w: min good count must be at least 1", ErrInvalidRuleSet)
	}
	if !finite(r.MinVisibility) || r.MinVisibility < 0 || r.MinVisibility > 1 {
		return fmt.Errorf("%w: min visibility must be within [0, 1]", ErrInvalidRuleSet)
	}
	return nil
}

// Merge applies a flat rule document over r and returns the result together
// with the sorted names of rejected fields. A rejected field keeps its
// previous value. Unknown threshold names are rejected so a typo in a remote
// document cannot silently add an unused threshold.
func (r RuleSet) Merge(fields map[string]float64) (RuleSet, []string) {
	out := r.Clone()
	var rejected []string

	for name, v := range fields {
		if !finite(v) {
			rejected = append(rejected, name)
			continue
		}

		switch name {
		case FieldHoldMs:
			if v < 0 {
				rejected = append(rejected, name)
				continue
			}
			out.HoldDurationMs = int64(math.Round(v))
		case FieldGraceMs:
			if v < 0 {
				rejected = append(rejected, name)
				continue
			}
			out.GraceMs = int64(math.Round(v))
		case FieldMinGoodCount:
			if v < 1 {
				rejected = append(rejected, name)
				continue
			}
			out.MinGoodCount = int(math.Round(v))
		case FieldMinVisibility:
			if v < 0 || v > 1 {
				rejected = append(rejected, name)
				continue
			}
			out.MinVisibility = v
		default:
			if _, known := out.Thresholds[name]; !known {
				rejected = append(rejected, name)
				continue
			}
			out.Thresholds[name] = v
		}
	}

	sort.Strings(rejected)
	return out, rejected
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
