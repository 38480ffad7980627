// Package solver computes the frequency retarget for one oscillator.
// Given the configuration read back from a part it recovers the true
// crystal frequency, then derives the RFREQ word that produces the
// desired output from that crystal. All arithmetic is unsigned fixed
// point driven through the shared division engine, so the solver is a
// small gated state machine rather than a function call.
package solver

import (
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/divider"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/x/wide"
)

// Fixed-point geometry. Working values are Q40.28; the crystal
// frequency lands in Q36.28. Dividends are lifted by the fraction width
// twice before dividing, which is why the division engine needs
// DivWidth-bit operands.
const (
	FracBits = 28
	IntBits  = 40
	WorkBits = IntBits + FracBits
	DivWidth = WorkBits + FracBits
)

// DefaultTargetHz is the output frequency the carrier needs from both
// channels.
const DefaultTargetHz = 322_265_625

// Fault classifies how a solve ended early.
type Fault uint8

const (
	FaultNone Fault = iota
	FaultDivideByZero // zero RFREQ or zero crystal presented to the divider
	FaultRange        // target DCO or computed RFREQ outside the part's range
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultDivideByZero:
		return "divide_by_zero"
	case FaultRange:
		return "range"
	}
	return "unknown"
}

// Code maps the fault onto the bus-facing taxonomy.
func (f Fault) Code() errcode.Code {
	switch f {
	case FaultNone:
		return errcode.OK
	case FaultDivideByZero:
		return errcode.DivideByZero
	case FaultRange:
		return errcode.RangeFault
	}
	return errcode.Error
}

// Config fixes the retargeting policy. Frequencies are output
// frequencies at the pin; the dividers are chosen at design time to
// keep the DCO in range, not searched. The zero value targets
// DefaultTargetHz from the stock 156.25 MHz part with HS_DIV=4, N1=4.
type Config struct {
	OldFreqHz uint64 // factory output frequency
	NewFreqHz uint64 // desired output frequency
	NewHSDiv  uint32
	NewN1     uint32
}

func (c Config) withDefaults() Config {
	if c.OldFreqHz == 0 {
		c.OldFreqHz = si570.Factory156M25.OutHz
	}
	if c.NewFreqHz == 0 {
		c.NewFreqHz = DefaultTargetHz
	}
	if c.NewHSDiv == 0 {
		c.NewHSDiv = 4
	}
	if c.NewN1 == 0 {
		c.NewN1 = 4
	}
	return c
}

type state uint8

const (
	stIdle state = iota
	stDecode
	stXtalStart
	stXtalWait
	stRFREQStart
	stRFREQWait
)

// Solver runs the four-stage solve over a division engine it borrows
// while busy. Start a solve while Idle, tick until Idle re-rises, then
// read NewConfig, CrystalHz and Fault.
type Solver struct {
	cfg Config
	div *divider.Engine

	newNum  wide.U128 // target DCO, lifted for the RFREQ division
	rangeOK bool

	state state
	old   si570.Config
	num   wide.U128
	xtal  wide.U128 // crystal frequency, Q36.28
	out   si570.Config
	fault Fault
	done  bool
}

func New(cfg Config, div *divider.Engine) *Solver {
	s := &Solver{cfg: cfg.withDefaults(), div: div}
	dcoHz := s.cfg.NewFreqHz * uint64(s.cfg.NewHSDiv) * uint64(s.cfg.NewN1)
	s.newNum = wide.Mul64(s.cfg.NewFreqHz,
		uint64(s.cfg.NewHSDiv)*uint64(s.cfg.NewN1)).Shl(2 * FracBits)
	s.rangeOK = si570.DCOInRange(dcoHz)
	return s
}

// Idle reports whether the solver can accept a new solve. After a run
// it stays true until the next Start.
func (s *Solver) Idle() bool { return s.state == stIdle }

// Start begins solving against the given read-back configuration. It is
// honored only while Idle.
func (s *Solver) Start(old si570.Config) bool {
	if s.state != stIdle {
		return false
	}
	s.old = old
	s.fault = FaultNone
	s.done = false
	s.state = stDecode
	return true
}

func (s *Solver) Tick() {
	switch s.state {
	case stIdle:

	case stDecode:
		if !s.rangeOK {
			s.fail(FaultRange)
			return
		}
		divs := uint64(s.old.HSDiv()) * uint64(s.old.N1())
		// Lifting by the fraction width twice makes the stage-3 quotient
		// land in Q36.28.
		s.num = wide.Mul64(s.cfg.OldFreqHz, divs).Shl(2 * FracBits)
		s.state = stXtalStart

	case stXtalStart:
		if !s.div.Idle() {
			return
		}
		if !s.div.Start(s.num, wide.From64(s.old.RFREQ())) {
			s.fail(FaultDivideByZero)
			return
		}
		s.state = stXtalWait

	case stXtalWait:
		if !s.div.Idle() {
			return
		}
		s.xtal = s.div.Quotient()
		s.state = stRFREQStart

	case stRFREQStart:
		if !s.div.Idle() {
			return
		}
		if !s.div.Start(s.newNum, s.xtal) {
			s.fail(FaultDivideByZero)
			return
		}
		s.state = stRFREQWait

	case stRFREQWait:
		if !s.div.Idle() {
			return
		}
		q := s.div.Quotient()
		// Round half up, the only rounding in the pipeline.
		if s.div.Remainder().Shl(1).Cmp(s.xtal) >= 0 {
			q = q.Add64(1)
		}
		if !q.Shr(si570.RFREQBits).IsZero() {
			s.fail(FaultRange)
			return
		}
		s.out = si570.Pack(s.cfg.NewHSDiv, s.cfg.NewN1, q.Lo)
		s.done = true
		s.state = stIdle
	}
}

func (s *Solver) fail(f Fault) {
	s.fault = f
	s.state = stIdle
}

// Fault reports how the last solve ended. It is meaningful while Idle.
func (s *Solver) Fault() Fault { return s.fault }

// NewConfig returns the computed configuration. Valid after a completed
// solve with FaultNone.
func (s *Solver) NewConfig() si570.Config { return s.out }

// CrystalHz returns the recovered crystal frequency in integer hertz.
func (s *Solver) CrystalHz() uint64 { return s.xtal.Shr(FracBits).Lo }

// CrystalFP returns the recovered crystal frequency in Q36.28.
func (s *Solver) CrystalFP() wide.U128 { return s.xtal }

// Done reports whether the last solve ran to completion.
func (s *Solver) Done() bool { return s.done }

// Reset discards any in-flight solve and its results.
func (s *Solver) Reset() {
	s.state = stIdle
	s.old = 0
	s.num = wide.U128{}
	s.xtal = wide.U128{}
	s.out = 0
	s.fault = FaultNone
	s.done = false
}
