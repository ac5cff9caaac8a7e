package pose

import (
	"errors"
	"fmt"
	"math"
	"sort"

	d "github.com/ayusman/asana/internal/detector"
)

// ErrUnknownPose is returned when a pose name is not in the catalog.
var ErrUnknownPose = errors.New("unknown pose")

// DefaultWindowSize is the number of recent verdicts the smoother votes over.
const DefaultWindowSize = 8

// Definition describes one holdable pose: how to pick a side, what to
// measure and which predicates must all pass.
type Definition struct {
	Name       string
	Title      string
	Side       SideChooser
	Measure    func(m *Measurer, side Side)
	Predicates []Predicate
	defaults   RuleSet
}

// Defaults returns a copy of the built-in rule set.
func (def *Definition) Defaults() RuleSet {
	return def.defaults.Clone()
}

// Extract computes the feature set for one frame. The side is chosen once
// and used for every measurement.
func (def *Definition) Extract(f *d.Frame, minVisibility float64) (FeatureSet, error) {
	if !hasUsableLandmarks(f, minVisibility) {
		return FeatureSet{}, ErrNoSubject
	}

	side := SideNone
	if def.Side != nil {
		side = def.Side.Choose(f)
	}

	m := newMeasurer(f, minVisibility)
	def.Measure(m, side)

	return FeatureSet{Side: side, Values: m.values}, nil
}

// Evaluate checks a feature set against the pose predicates.
func (def *Definition) Evaluate(fs FeatureSet, rs RuleSet) Verdict {
	return Evaluate(fs, rs, def.Predicates)
}

var catalog = map[string]*Definition{}

func register(def *Definition) {
	def.defaults.Pose = def.Name
	catalog[def.Name] = def
}

// Lookup returns the catalog definition for name.
func Lookup(name string) (*Definition, error) {
	def, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPose, name)
	}
	return def, nil
}

// Catalog returns every registered definition ordered by name.
func Catalog() []*Definition {
	defs := make([]*Definition, 0, len(catalog))
	for _, def := range catalog {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func init() {
	register(bigToe)
	register(bridge)
	register(crescentLunge)
	register(plank)
}

// Padangusthasana: standing forward fold holding the big toe.
var bigToe = &Definition{
	Name:  "bigtoe",
	Title: "Big Toe Pose",
	Side:  wristToToeSide,
	Measure: func(m *Measurer, s Side) {
		sh, hip := s.pick(d.LeftShoulder, d.RightShoulder), s.pick(d.LeftHip, d.RightHip)
		knee, ankle := s.pick(d.LeftKnee, d.RightKnee), s.pick(d.LeftAnkle, d.RightAnkle)
		wrist, toe := s.pick(d.LeftWrist, d.RightWrist), s.pick(d.LeftFootIndex, d.RightFootIndex)

		m.Angle("hipAngle", sh, hip, knee)
		m.Angle("kneeAngle", hip, knee, ankle)
		m.Ratio("wristToeRatio", wrist, toe, hip, ankle)
		m.Ratio("wristAnkleRatio", wrist, ankle, hip, ankle)
		m.AbsOffsetX("wristToeDX", wrist, toe)
		m.OffsetY("wristAboveToe", toe, wrist)
	},
	Predicates: []Predicate{
		AtMost("torso folded", "hipAngle", "maxHipAngle"),
		AtLeast("leg straight", "kneeAngle", "minKneeAngle"),
		AnyOf("hand at toe",
			AtMost("wrist near toe", "wristToeRatio", "maxWristToeRatio"),
			AtMost("wrist near ankle", "wristAnkleRatio", "maxWristAnkleRatio"),
			AllOf("wrist over toe",
				AtMost("wrist aligned with toe", "wristToeDX", "maxWristToeDX"),
				AtMost("wrist low enough", "wristAboveToe", "maxWristAboveToe"),
			),
		),
	},
	defaults: RuleSet{
		Thresholds: map[string]float64{
			"maxHipAngle":        80,
			"minKneeAngle":       165,
			"maxWristToeRatio":   0.40,
			"maxWristAnkleRatio": 0.35,
			"maxWristToeDX":      0.08,
			"maxWristAboveToe":   0.06,
		},
		HoldDurationMs: 60000,
		GraceMs:        2000,
		MinGoodCount:   6,
		MinVisibility:  DefaultMinVisibility,
	},
}

// Setu Bandhasana: hips lifted, legs straight, hands tucked by the hips.
var bridge = &Definition{
	Name:  "bridge",
	Title: "Bridge Pose",
	Side:  wristToToeSide,
	Measure: func(m *Measurer, s Side) {
		sh, hip := s.pick(d.LeftShoulder, d.RightShoulder), s.pick(d.LeftHip, d.RightHip)
		knee, ankle := s.pick(d.LeftKnee, d.RightKnee), s.pick(d.LeftAnkle, d.RightAnkle)
		wrist := s.pick(d.LeftWrist, d.RightWrist)
		heel, foot := s.pick(d.LeftHeel, d.RightHeel), s.pick(d.LeftFootIndex, d.RightFootIndex)

		m.Angle("hipAngle", sh, hip, knee)
		m.Angle("kneeAngle", hip, knee, ankle)
		m.Ratio("wristHipRatio", wrist, hip, hip, ankle)
		m.OffsetY("toeLift", heel, foot)
	},
	Predicates: []Predicate{
		AtLeast("hips lifted", "hipAngle", "minHipAngle"),
		AtLeast("legs straight", "kneeAngle", "minKneeAngle"),
		AtMost("wrist near hip", "wristHipRatio", "maxWristHipRatio"),
		AtLeast("toes up", "toeLift", "minToeLift"),
	},
	defaults: RuleSet{
		Thresholds: map[string]float64{
			"minHipAngle":      140,
			"minKneeAngle":     165,
			"maxWristHipRatio": 0.24,
			"minToeLift":       0.02,
		},
		HoldDurationMs: 20000,
		GraceMs:        1500,
		MinGoodCount:   4,
		MinVisibility:  DefaultMinVisibility,
	},
}

// Ashta Chandrasana: high lunge with arms overhead. The chosen side is the
// front leg.
var crescentLunge = &Definition{
	Name:  "crescent_lunge",
	Title: "Crescent Lunge",
	Side:  BentKneeSide{Target: 90, Tolerance: 40},
	Measure: func(m *Measurer, front Side) {
		back := front.Opposite()

		shF, hipF := front.pick(d.LeftShoulder, d.RightShoulder), front.pick(d.LeftHip, d.RightHip)
		kneeF, ankleF := front.pick(d.LeftKnee, d.RightKnee), front.pick(d.LeftAnkle, d.RightAnkle)
		hipB, kneeB := back.pick(d.LeftHip, d.RightHip), back.pick(d.LeftKnee, d.RightKnee)
		ankleB := back.pick(d.LeftAnkle, d.RightAnkle)
		heelB, toeB := back.pick(d.LeftHeel, d.RightHeel), back.pick(d.LeftFootIndex, d.RightFootIndex)

		m.Angle("frontKneeAngle", hipF, kneeF, ankleF)
		m.AbsOffsetX("frontKneeAnkleDX", kneeF, ankleF)
		m.OffsetY("frontKneeRise", ankleF, kneeF)
		m.Angle("backKneeAngle", hipB, kneeB, ankleB)

		// The back heel sits further from the front foot than the back toe.
		if back == SideLeft {
			m.OffsetX("backHeelBehind", toeB, heelB)
		} else {
			m.OffsetX("backHeelBehind", heelB, toeB)
		}
		m.OffsetY("backHeelRise", heelB, toeB)

		m.Tilt("torsoTilt", hipF, shF)

		m.Angle("leftElbowAngle", d.LeftShoulder, d.LeftElbow, d.LeftWrist)
		m.Angle("rightElbowAngle", d.RightShoulder, d.RightElbow, d.RightWrist)
		m.Min("elbowAngle", "leftElbowAngle", "rightElbowAngle")
		m.OffsetY("leftWristLift", d.LeftShoulder, d.LeftWrist)
		m.OffsetY("rightWristLift", d.RightShoulder, d.RightWrist)
		m.Min("wristLift", "leftWristLift", "rightWristLift")
	},
	Predicates: []Predicate{
		Within("front knee bent", "frontKneeAngle", "minFrontKneeAngle", "maxFrontKneeAngle"),
		AtMost("front knee over ankle", "frontKneeAnkleDX", "maxKneeAnkleDX"),
		AtLeast("front knee above ankle", "frontKneeRise", "minKneeRise"),
		AtLeast("back leg straight", "backKneeAngle", "minBackKneeAngle"),
		AtLeast("back heel pressed back", "backHeelBehind", "minHeelBehind"),
		AtMost("back heel low", "backHeelRise", "maxHeelRise"),
		AtMost("torso upright", "torsoTilt", "maxTorsoTilt"),
		AtLeast("elbows straight", "elbowAngle", "minElbowAngle"),
		AtLeast("wrists overhead", "wristLift", "minWristLift"),
	},
	defaults: RuleSet{
		Thresholds: map[string]float64{
			"minFrontKneeAngle": 80,
			"maxFrontKneeAngle": 110,
			"maxKneeAnkleDX":    0.07,
			"minKneeRise":       0.01,
			"minBackKneeAngle":  165,
			"minHeelBehind":     0.02,
			"maxHeelRise":       0.12,
			"maxTorsoTilt":      15,
			"minElbowAngle":     165,
			"minWristLift":      0.05,
		},
		HoldDurationMs: 30000,
		GraceMs:        2500,
		MinGoodCount:   5,
		MinVisibility:  DefaultMinVisibility,
	},
}

// Forearm plank, evaluated on both sides at once.
var plank = &Definition{
	Name:  "plank",
	Title: "Plank",
	Measure: func(m *Measurer, _ Side) {
		m.Angle("leftArmAngle", d.LeftShoulder, d.LeftElbow, d.LeftWrist)
		m.Angle("rightArmAngle", d.RightShoulder, d.RightElbow, d.RightWrist)
		m.Angle("leftBodyAngle", d.LeftShoulder, d.LeftHip, d.LeftKnee)
		m.Angle("rightBodyAngle", d.RightShoulder, d.RightHip, d.RightKnee)

		if m.Visible(d.Nose, d.LeftHip, d.RightHip, d.LeftAnkle) {
			midHipY := (m.p(d.LeftHip).Y + m.p(d.RightHip).Y) / 2
			legLen := Distance(m.p(d.LeftHip), m.p(d.LeftAnkle), m.width, m.height)
			if legLen < 1 {
				legLen = 1
			}
			m.Set("headHipDrop", math.Abs(m.p(d.Nose).Y-midHipY)*m.height/legLen)
		}
	},
	Predicates: []Predicate{
		Between("left arm bent", "leftArmAngle", "minArmAngle", "maxArmAngle"),
		Between("right arm bent", "rightArmAngle", "minArmAngle", "maxArmAngle"),
		Above("left side straight", "leftBodyAngle", "minBodyAngle"),
		Above("right side straight", "rightBodyAngle", "minBodyAngle"),
		AtMost("head level with hips", "headHipDrop", "maxHeadHipDrop"),
	},
	defaults: RuleSet{
		Thresholds: map[string]float64{
			"minArmAngle":    70,
			"maxArmAngle":    110,
			"minBodyAngle":   160,
			"maxHeadHipDrop": 0.35,
		},
		HoldDurationMs: 60000,
		GraceMs:        2500,
		MinGoodCount:   4,
		MinVisibility:  DefaultMinVisibility,
	},
}
