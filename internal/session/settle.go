package session

import "sync/atomic"

// Outcome identifies which event settled a bootstrap.
type Outcome int32

const (
	OutcomeNone Outcome = iota
	OutcomeExisting
	OutcomeNotFound
	OutcomeStoreError
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExisting:
		return "existing"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeStoreError:
		return "store_error"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "none"
	}
}

const cellClosed int32 = -1

// settleCell is a single-assignment completion signal. The first claim wins; later claims,
// and any claim after close, are rejected.
type settleCell struct {
	v atomic.Int32
}

func (c *settleCell) claim(o Outcome) bool {
	return c.v.CompareAndSwap(int32(OutcomeNone), int32(o))
}

// close rejects all future claims. A cell that already settled keeps its outcome.
func (c *settleCell) close() {
	c.v.CompareAndSwap(int32(OutcomeNone), cellClosed)
}

func (c *settleCell) outcome() Outcome {
	v := c.v.Load()
	if v == cellClosed {
		return OutcomeNone
	}
	return Outcome(v)
}
