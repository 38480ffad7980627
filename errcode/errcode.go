// Package errcode defines the error identifiers the firmware puts on
// the bus. Control replies carry one in Ack.Code; a channel report
// carries one when its programming run aborted.
package errcode

// Code is one such identifier. It doubles as an error value, so the
// packages that produce codes return the constants directly. The empty
// Code stands for nothing recorded.
type Code string

// Error makes Code satisfy error; the message is the identifier itself.
func (c Code) Error() string { return string(c) }

// Reply codes.
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	NotDone        Code = "not_done" // cycle still running, come back later
	InvalidPayload Code = "invalid_payload"
)

// Fault taxonomy, recorded per channel as the abort cause.
const (
	TransactionFault Code = "transaction_fault" // register access status readback failed
	DivideByZero     Code = "divide_by_zero"    // zero divisor reached the division engine
	RangeFault       Code = "dco_out_of_range"  // computed DCO or RFREQ outside the part's limits
	Error            Code = "error"             // unclassified abort
)
