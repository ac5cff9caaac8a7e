// Package pose turns body landmark frames into pass/fail, stable-good and
// hold/complete verdicts for a target pose.
package pose

import (
	"math"

	"github.com/ayusman/asana/internal/detector"
)

// Angle returns the angle at vertex b between rays b->a and b->c, in degrees
// (0-180). Only X and Y are used. Zero-length rays floor the denominator at 1,
// so coincident points yield a finite angle instead of NaN.
func Angle(a, b, c detector.Point3D) float64 {
	abx, aby := a.X-b.X, a.Y-b.Y
	cbx, cby := c.X-b.X, c.Y-b.Y

	dot := abx*cbx + aby*cby
	denom := math.Hypot(abx, aby) * math.Hypot(cbx, cby)
	if denom == 0 {
		denom = 1
	}

	return math.Acos(clamp(dot/denom, -1, 1)) * 180 / math.Pi
}

// Distance returns the pixel-space distance between p and q after
// de-normalizing by the frame dimensions.
func Distance(p, q detector.Point3D, width, height float64) float64 {
	return math.Hypot((p.X-q.X)*width, (p.Y-q.Y)*height)
}

// TiltFromVertical returns the angle in degrees between the pixel-space
// vector from->to and straight up on screen.
func TiltFromVertical(from, to detector.Point3D, width, height float64) float64 {
	vx := (to.X - from.X) * width
	vy := (to.Y - from.Y) * height
	mag := math.Hypot(vx, vy)
	if mag == 0 {
		mag = 1
	}
	return math.Acos(clamp(-vy/mag, -1, 1)) * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
