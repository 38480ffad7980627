// Package divider performs unsigned long division the way the FPGA
// block it stands in for does: restoring division, one quotient bit per
// tick, with an idle/busy handshake instead of a blocking call. The
// frequency solver leans on it for every divide in the reprogramming
// pipeline, so its timing (width ticks per operation) sets the pace of
// the whole cycle.
package divider

import "github.com/DouglasWWolf/tb-pgm-clock-gens/x/wide"

// MaxWidth is the widest supported dividend. Divisors must stay below
// 2^127 so the working remainder cannot overflow during a step.
const MaxWidth = 128

// Engine is a width-configurable restoring divider. Start a division
// while Idle, tick until Idle re-rises, then read the quotient and
// remainder. Results are full width: Quotient*divisor+Remainder equals
// the (width-masked) dividend for every accepted operation.
type Engine struct {
	width int

	dividend wide.U128
	divisor  wide.U128
	quot     wide.U128
	rem      wide.U128

	step int
	busy bool
	dbz  bool
}

// New returns an idle engine for dividends of the given bit width.
// Out-of-range widths are clamped to MaxWidth.
func New(width int) *Engine {
	if width <= 0 || width > MaxWidth {
		width = MaxWidth
	}
	return &Engine{width: width}
}

// Idle reports whether the engine can accept a new division and, after
// a completed run, whether Quotient and Remainder are valid.
func (e *Engine) Idle() bool { return !e.busy }

// DivideByZero reports the latched zero-divisor fault. It is set by a
// Start with a zero divisor and cleared by the next accepted Start.
func (e *Engine) DivideByZero() bool { return e.dbz }

// Start begins dividing dividend by divisor. It is honored only while
// the engine is idle. A zero divisor latches the divide-by-zero fault
// and leaves the engine idle with no result.
func (e *Engine) Start(dividend, divisor wide.U128) bool {
	if e.busy {
		return false
	}
	if divisor.IsZero() {
		e.dbz = true
		return false
	}
	e.dbz = false
	e.dividend = dividend.Mask(uint(e.width))
	e.divisor = divisor
	e.quot = wide.U128{}
	e.rem = wide.U128{}
	e.step = 0
	e.busy = true
	return true
}

// Tick retires one quotient bit. The run completes, and Idle re-rises,
// after exactly width ticks.
func (e *Engine) Tick() {
	if !e.busy {
		return
	}
	i := uint(e.width - 1 - e.step)
	e.rem = e.rem.Shl(1).Add64(e.dividend.Bit(i))
	if e.rem.Cmp(e.divisor) >= 0 {
		e.rem = e.rem.Sub(e.divisor)
		e.quot = e.quot.Or(wide.From64(1).Shl(i))
	}
	e.step++
	if e.step == e.width {
		e.busy = false
	}
}

// Quotient is valid while Idle after a completed run.
func (e *Engine) Quotient() wide.U128 { return e.quot }

// Remainder is valid while Idle after a completed run.
func (e *Engine) Remainder() wide.U128 { return e.rem }

// Reset discards any in-flight division and clears the fault latch.
func (e *Engine) Reset() {
	*e = Engine{width: e.width}
}
