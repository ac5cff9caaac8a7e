package pose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/asana/internal/detector"
	"github.com/ayusman/asana/testdata"
)

func loadFrame(t *testing.T, name string) detector.Frame {
	t.Helper()
	f, err := testdata.LoadFrame(name)
	require.NoError(t, err)
	return f
}

func TestCatalog(t *testing.T) {
	defs := Catalog()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
		require.NoError(t, def.Defaults().Validate(), def.Name)
		assert.Equal(t, def.Name, def.Defaults().Pose)
		assert.NotEmpty(t, def.Predicates)
		assert.NotEmpty(t, def.Title)
	}
	assert.Equal(t, []string{"bigtoe", "bridge", "crescent_lunge", "plank"}, names)
}

func TestLookup(t *testing.T) {
	def, err := Lookup("bridge")
	require.NoError(t, err)
	assert.Equal(t, "bridge", def.Name)

	_, err = Lookup("headstand")
	assert.True(t, errors.Is(err, ErrUnknownPose))
}

func TestDefinition_DefaultsIsCopy(t *testing.T) {
	def, err := Lookup("plank")
	require.NoError(t, err)

	rs := def.Defaults()
	rs.Thresholds["minBodyAngle"] = 0
	assert.Equal(t, 160.0, def.Defaults().Thresholds["minBodyAngle"])
}

func TestFixtures_MatchOnlyTheirPose(t *testing.T) {
	fixtures := []string{"bigtoe", "bridge", "crescent_lunge", "plank", "standing"}

	for _, fixture := range fixtures {
		frame := loadFrame(t, fixture)
		for _, def := range Catalog() {
			t.Run(fixture+"/"+def.Name, func(t *testing.T) {
				rs := def.Defaults()
				fs, err := def.Extract(&frame, rs.MinVisibility)
				require.NoError(t, err)

				v := def.Evaluate(fs, rs)
				assert.Equal(t, fixture == def.Name, v.Pass, "checks: %+v", v.Checks)
			})
		}
	}
}

func TestExtract_Features(t *testing.T) {
	t.Run("bridge", func(t *testing.T) {
		def, _ := Lookup("bridge")
		frame := loadFrame(t, "bridge")
		fs, err := def.Extract(&frame, DefaultMinVisibility)
		require.NoError(t, err)

		assert.Equal(t, SideLeft, fs.Side)
		assert.InDelta(t, 180, fs.Values["hipAngle"], 0.5)
		assert.InDelta(t, 180, fs.Values["kneeAngle"], 0.5)
		assert.InDelta(t, 0.135, fs.Values["wristHipRatio"], 0.005)
		assert.InDelta(t, 0.05, fs.Values["toeLift"], 1e-6)
	})

	t.Run("crescent lunge", func(t *testing.T) {
		def, _ := Lookup("crescent_lunge")
		frame := loadFrame(t, "crescent_lunge")
		fs, err := def.Extract(&frame, DefaultMinVisibility)
		require.NoError(t, err)

		assert.Equal(t, SideLeft, fs.Side)
		assert.InDelta(t, 96.5, fs.Values["frontKneeAngle"], 0.5)
		assert.InDelta(t, 180, fs.Values["backKneeAngle"], 0.5)
		assert.InDelta(t, 0.06, fs.Values["backHeelBehind"], 1e-6)
		assert.InDelta(t, 0.2, fs.Values["wristLift"], 1e-6)
	})

	t.Run("plank has no side", func(t *testing.T) {
		def, _ := Lookup("plank")
		frame := loadFrame(t, "plank")
		fs, err := def.Extract(&frame, DefaultMinVisibility)
		require.NoError(t, err)

		assert.Equal(t, SideNone, fs.Side)
		assert.InDelta(t, 90, fs.Values["leftArmAngle"], 0.5)
		assert.Less(t, fs.Values["headHipDrop"], 0.1)
	})
}

func TestExtract_NoSubject(t *testing.T) {
	def, _ := Lookup("bridge")

	empty := detector.NoSubject(0, 640, 480)
	_, err := def.Extract(&empty, DefaultMinVisibility)
	assert.True(t, errors.Is(err, ErrNoSubject))

	faint := loadFrame(t, "bridge")
	for i := range faint.Landmarks {
		faint.Landmarks[i].Visibility = 0.1
	}
	_, err = def.Extract(&faint, DefaultMinVisibility)
	assert.True(t, errors.Is(err, ErrNoSubject))
}

func TestEvaluate_LowVisibilityFails(t *testing.T) {
	def, _ := Lookup("bridge")
	frame := loadFrame(t, "bridge")
	// Hide the left knee; the left side is still the most visible.
	frame.Landmarks[detector.LeftKnee].Visibility = 0.2

	rs := def.Defaults()
	fs, err := def.Extract(&frame, rs.MinVisibility)
	require.NoError(t, err)
	_, ok := fs.Get("kneeAngle")
	assert.False(t, ok)

	v := def.Evaluate(fs, rs)
	assert.False(t, v.Pass)
}

func TestBigToe_AlternateHandCondition(t *testing.T) {
	def, _ := Lookup("bigtoe")
	frame := loadFrame(t, "bigtoe")

	rs := def.Defaults()
	rs.Thresholds["maxWristToeRatio"] = 0
	rs.Thresholds["maxWristAnkleRatio"] = 0

	fs, err := def.Extract(&frame, rs.MinVisibility)
	require.NoError(t, err)
	assert.True(t, def.Evaluate(fs, rs).Pass, "wrist over toe should still count")

	rs.Thresholds["maxWristToeDX"] = 0
	assert.False(t, def.Evaluate(fs, rs).Pass)
}
