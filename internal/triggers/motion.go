package triggers

import "math"

// MotionThreshold is the summed absolute acceleration (m/s^2) above which
// a sample counts as a snatch.
const MotionThreshold = 30.0

// IsViolentMotion applies the threshold to one accelerometer sample.
func IsViolentMotion(x, y, z float64) bool {
	return math.Abs(x)+math.Abs(y)+math.Abs(z) > MotionThreshold
}
