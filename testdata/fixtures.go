// Package testdata embeds recorded landmark frames for tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ayusman/asana/internal/detector"
)

//go:embed poses/*.json
var posesFS embed.FS

// LoadFrame loads a recorded landmark frame by name, e.g. "bridge". The
// timestamp is left at zero.
func LoadFrame(name string) (detector.Frame, error) {
	data, err := posesFS.ReadFile(path.Join("poses", name+".json"))
	if err != nil {
		return detector.Frame{}, fmt.Errorf("load frame %s: %w", name, err)
	}

	var frame detector.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return detector.Frame{}, fmt.Errorf("decode frame %s: %w", name, err)
	}
	if !frame.HasSubject() {
		return detector.Frame{}, fmt.Errorf("frame %s: want %d landmarks, got %d",
			name, detector.NumLandmarks, len(frame.Landmarks))
	}

	return frame, nil
}

// MustLoadFrame is LoadFrame for test setup; it panics on error.
func MustLoadFrame(name string) detector.Frame {
	frame, err := LoadFrame(name)
	if err != nil {
		panic(err)
	}
	return frame
}

// Names returns the names of every recorded frame.
func Names() ([]string, error) {
	entries, err := posesFS.ReadDir("poses")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}

// Sequence repeats frame count times, stamping timestamps start, start+step, ...
func Sequence(frame detector.Frame, start, step int64, count int) []detector.Frame {
	frames := make([]detector.Frame, count)
	for i := range frames {
		f := frame
		f.Landmarks = append([]detector.Landmark(nil), frame.Landmarks...)
		f.TimestampMs = start + int64(i)*step
		frames[i] = f
	}
	return frames
}
