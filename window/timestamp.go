package window

// Magnitude boundaries for timestamp unit inference. A timestamp with at most
// ten digits is taken as seconds, 11-13 digits as milliseconds, 14-16 as
// microseconds and 17-19 as nanoseconds.
const (
	maxSeconds      = 9_999_999_999
	maxMilliseconds = 9_999_999_999_999
	maxMicroseconds = 9_999_999_999_999_999
)

// NormalizeToMillis converts a Unix timestamp in seconds, milliseconds,
// microseconds or nanoseconds to milliseconds, inferring the unit from its
// magnitude. Non-positive values are returned unchanged.
func NormalizeToMillis(ts int64) int64 {
	switch {
	case ts <= 0:
		return ts
	case ts <= maxSeconds:
		return ts * 1000
	case ts <= maxMilliseconds:
		return ts
	case ts <= maxMicroseconds:
		return ts / 1_000
	default:
		return ts / 1_000_000
	}
}
