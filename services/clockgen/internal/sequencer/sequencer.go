// Package sequencer drives the register program that retargets one
// oscillator channel: route the bus switch, recall the factory
// configuration, read it back, run the solver, then freeze, rewrite,
// unfreeze and commit. The program is a fixed list of steps; the
// recurring "write N bytes to register R" and "read N bytes from
// register R" sequences are shared subroutines entered through a small
// return stack, exactly one transport interaction per tick.
package sequencer

import (
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/pca9543"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/drivers/si570"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/errcode"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/services/clockgen/internal/solver"
	"github.com/DouglasWWolf/tb-pgm-clock-gens/transport"
)

// Config for one sequencer. The zero value matches the stock carrier:
// switch at 0x70, oscillators at 0x55, 1.5 ms transaction timeout and a
// short post-recall settle.
type Config struct {
	SwitchAddr        uint16
	OscAddr           uint16
	TimeoutUS         uint32
	RecallSettleTicks int
}

func (c Config) withDefaults() Config {
	if c.SwitchAddr == 0 {
		c.SwitchAddr = pca9543.AddressDefault
	}
	if c.OscAddr == 0 {
		c.OscAddr = si570.AddressDefault
	}
	if c.TimeoutUS == 0 {
		c.TimeoutUS = 1500
	}
	if c.RecallSettleTicks == 0 {
		c.RecallSettleTicks = 10
	}
	return c
}

type step uint8

const (
	stepIdle step = iota

	// Main program, in execution order.
	stepTimeout
	stepSwitchAddr
	stepSwitchRegLen
	stepSwitchSelect
	stepOscAddr
	stepOscRegLen
	stepRecall
	stepSettle
	stepReadHi
	stepReadLo
	stepSolveStart
	stepSolveWait
	stepFreeze
	stepWriteHi
	stepWriteLo
	stepUnfreeze
	stepCommit

	// write_register subroutine.
	wrRegNum
	wrData
	wrLen
	wrWait
	wrStatus

	// read_register subroutine.
	rdRegNum
	rdLen
	rdWait
	rdData
	rdStatus
)

// Sequencer programs a single channel per run. Start a channel while
// Idle, tick until Idle re-rises, then read OrigConfig, NewConfig,
// Fault and Cause. A transaction status other than success, or a
// solver fault, aborts the whole run: the return stack is discarded and
// no further bus traffic is issued for that channel.
type Sequencer struct {
	cfg Config
	tr  transport.Transport
	sol *solver.Solver

	pc     step
	stack  [4]step
	sp     int
	settle int

	wrReg, wrVal uint32
	wrN          int
	rdReg        uint32
	rdN          int
	rdOut        uint32

	channel int
	hi      uint32
	orig    si570.Config
	newCfg  si570.Config
	crystal uint64
	fault   bool
	cause   errcode.Code
}

func New(cfg Config, tr transport.Transport, sol *solver.Solver) *Sequencer {
	return &Sequencer{cfg: cfg.withDefaults(), tr: tr, sol: sol}
}

// Idle reports whether the sequencer can accept a new channel run and,
// afterwards, whether its results are valid.
func (s *Sequencer) Idle() bool { return s.pc == stepIdle }

// Fault reports whether the last run aborted.
func (s *Sequencer) Fault() bool { return s.fault }

// Cause classifies the abort. Empty unless Fault.
func (s *Sequencer) Cause() errcode.Code { return s.cause }

// Channel returns the channel of the current or last run.
func (s *Sequencer) Channel() int { return s.channel }

// OrigConfig returns the configuration read back from the part before
// reprogramming, valid once the run has passed the read-back steps.
func (s *Sequencer) OrigConfig() si570.Config { return s.orig }

// NewConfig returns the configuration committed to the part, valid
// after a fault-free run.
func (s *Sequencer) NewConfig() si570.Config { return s.newCfg }

// CrystalHz returns the crystal frequency the solver recovered during
// the last run, zero if the run never got that far.
func (s *Sequencer) CrystalHz() uint64 { return s.crystal }

// Start begins programming the given channel. Honored only while Idle.
func (s *Sequencer) Start(channel int) bool {
	if s.pc != stepIdle {
		return false
	}
	s.channel = channel & 1
	s.hi = 0
	s.orig, s.newCfg = 0, 0
	s.crystal = 0
	s.fault = false
	s.cause = ""
	s.sp = 0
	s.settle = s.cfg.RecallSettleTicks
	s.pc = stepTimeout
	return true
}

// Reset aborts any run in progress and clears all results.
func (s *Sequencer) Reset() {
	s.pc = stepIdle
	s.sp = 0
	s.settle = 0
	s.hi = 0
	s.orig, s.newCfg = 0, 0
	s.crystal = 0
	s.fault = false
	s.cause = ""
}

func (s *Sequencer) Tick() {
	switch s.pc {
	case stepIdle:

	case stepTimeout:
		if s.writeReg(transport.RegTimeout, s.cfg.TimeoutUS) {
			s.pc = stepSwitchAddr
		}
	case stepSwitchAddr:
		if s.writeReg(transport.RegDevAddr, uint32(s.cfg.SwitchAddr)) {
			s.pc = stepSwitchRegLen
		}
	case stepSwitchRegLen:
		// The switch takes its control byte raw, with no register number.
		if s.writeReg(transport.RegRegNumLen, 0) {
			s.pc = stepSwitchSelect
		}
	case stepSwitchSelect:
		s.callWrite(0, uint32(pca9543.ChannelMask(s.channel)), 1, stepOscAddr)
	case stepOscAddr:
		if s.writeReg(transport.RegDevAddr, uint32(s.cfg.OscAddr)) {
			s.pc = stepOscRegLen
		}
	case stepOscRegLen:
		if s.writeReg(transport.RegRegNumLen, 1) {
			s.pc = stepRecall
		}
	case stepRecall:
		s.callWrite(si570.RegControl, si570.CtlRecall, 1, stepSettle)
	case stepSettle:
		// Let the part finish reloading its NVM block.
		if s.settle > 0 {
			s.settle--
			return
		}
		s.pc = stepReadHi
	case stepReadHi:
		s.callRead(si570.RegFreqConfig, 4, stepReadLo)
	case stepReadLo:
		s.hi = s.rdOut
		s.callRead(si570.RegFreqConfigLo, 2, stepSolveStart)
	case stepSolveStart:
		s.orig = si570.FromWords(s.hi, uint16(s.rdOut))
		if !s.sol.Idle() {
			return
		}
		if !s.sol.Start(s.orig) {
			return
		}
		s.pc = stepSolveWait
	case stepSolveWait:
		if !s.sol.Idle() {
			return
		}
		if f := s.sol.Fault(); f != solver.FaultNone {
			s.abort(f.Code())
			return
		}
		s.newCfg = s.sol.NewConfig()
		s.crystal = s.sol.CrystalHz()
		s.pc = stepFreeze
	case stepFreeze:
		s.callWrite(si570.RegFreezeDCO, si570.FreezeDCO, 1, stepWriteHi)
	case stepWriteHi:
		hi, _ := s.newCfg.Words()
		s.callWrite(si570.RegFreqConfig, hi, 4, stepWriteLo)
	case stepWriteLo:
		_, lo := s.newCfg.Words()
		s.callWrite(si570.RegFreqConfigLo, uint32(lo), 2, stepUnfreeze)
	case stepUnfreeze:
		s.callWrite(si570.RegFreezeDCO, 0, 1, stepCommit)
	case stepCommit:
		s.callWrite(si570.RegControl, si570.CtlNewFreq, 1, stepIdle)

	case wrRegNum:
		if s.writeReg(transport.RegRegNum, s.wrReg) {
			s.pc = wrData
		}
	case wrData:
		if s.writeReg(transport.RegTxData, s.wrVal) {
			s.pc = wrLen
		}
	case wrLen:
		// Posting drops transport Idle within the same tick, so only
		// completion needs a wait state.
		if s.writeReg(transport.RegWriteLen, uint32(s.wrN)) {
			s.pc = wrWait
		}
	case wrWait:
		if !s.tr.Idle() {
			return
		}
		s.pc = wrStatus
	case wrStatus:
		s.checkStatus()

	case rdRegNum:
		if s.writeReg(transport.RegRegNum, s.rdReg) {
			s.pc = rdLen
		}
	case rdLen:
		if s.writeReg(transport.RegReadLen, uint32(s.rdN)) {
			s.pc = rdWait
		}
	case rdWait:
		if !s.tr.Idle() {
			return
		}
		s.pc = rdData
	case rdData:
		// Fetch the data word before the status so a failed status can
		// never leave a half-sampled word behind.
		s.rdOut, _ = s.tr.Read(transport.RegRxData)
		s.pc = rdStatus
	case rdStatus:
		s.checkStatus()
	}
}

func (s *Sequencer) writeReg(reg int, val uint32) bool {
	if !s.tr.Ready() {
		return false
	}
	return s.tr.Write(reg, val)
}

func (s *Sequencer) checkStatus() {
	st, ok := s.tr.Read(transport.RegStatus)
	if !ok || st != transport.StatusSuccess {
		s.abort(errcode.TransactionFault)
		return
	}
	s.ret()
}

func (s *Sequencer) callWrite(reg, val uint32, n int, resume step) {
	s.wrReg, s.wrVal, s.wrN = reg, val, n
	s.call(wrRegNum, resume)
}

func (s *Sequencer) callRead(reg uint32, n int, resume step) {
	s.rdReg, s.rdN = reg, n
	s.call(rdRegNum, resume)
}

func (s *Sequencer) call(entry, resume step) {
	if s.sp == len(s.stack) {
		s.abort(errcode.Error)
		return
	}
	s.stack[s.sp] = resume
	s.sp++
	s.pc = entry
}

func (s *Sequencer) ret() {
	s.sp--
	s.pc = s.stack[s.sp]
}

// abort ends the run immediately: the fault and its cause are recorded,
// the return stack is discarded and the sequencer goes idle without
// issuing any further bus traffic for this channel.
func (s *Sequencer) abort(c errcode.Code) {
	s.fault = true
	s.cause = c
	s.sp = 0
	s.pc = stepIdle
}
