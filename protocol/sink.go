package protocol

// Sink receives what the protocols produce. Workers may call it concurrently
// when they share a process.
type Sink interface {
	// Bit reports the sum bit computed by the leaf at rank, chain position pos.
	Bit(rank, pos, bit int)
	// Overflow is reported once by the root when the sum needs one more bit.
	Overflow()
	// Value is called by the root for each sorted value, in order.
	Value(v int)
}

type discard struct{}

func (discard) Bit(int, int, int) {}
func (discard) Overflow()         {}
func (discard) Value(int)         {}

// Discard drops every result. Benchmark runs use it.
var Discard Sink = discard{}
