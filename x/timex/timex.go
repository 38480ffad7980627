package timex

import (
	"time"

	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/mathx"
)

// NowMs is the timestamp stamped onto bus payloads, Unix milliseconds.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ticks converts a duration to a whole number of engine ticks of the given
// period, rounding up so short delays never collapse to zero. period==0 is
// coerced to 1ns to avoid division by zero.
func Ticks(d, period time.Duration) int {
	if period <= 0 {
		period = time.Nanosecond
	}
	if d <= 0 {
		return 0
	}
	return int(mathx.CeilDiv(uint64(d), uint64(period)))
}
