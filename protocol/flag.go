package protocol

import "fmt"

// Flag classifies how a run of bit positions treats an incoming carry.
type Flag int

const (
	Propagate Flag = 1 // Pass the incoming carry through.
	Generate  Flag = 2 // Produce a carry regardless of input.
	Stop      Flag = 3 // Absorb the incoming carry.
)

func (f Flag) String() string {
	switch f {
	case Propagate:
		return "P"
	case Generate:
		return "G"
	case Stop:
		return "S"
	default:
		return fmt.Sprintf("Flag(%d)", int(f))
	}
}

// Combine composes a more significant flag a with a less significant flag b.
//
//	# | S | P | G
//	S | S | S | S
//	P | S | P | G
//	G | G | G | G
//
// Propagate is the identity on both sides and the operation is associative,
// which is what lets the tree scan it.
func Combine(a, b Flag) Flag {
	if a == Propagate {
		return b
	}
	return a
}

// InitFlag classifies one full-adder position from its two input bits.
func InitFlag(digit1, digit2 int) Flag {
	switch digit1 + digit2 {
	case 2:
		return Generate
	case 1:
		return Propagate
	default:
		return Stop
	}
}

// CarryStrategy selects how a leaf turns its scanned flag into a carry bit.
type CarryStrategy int

const (
	// CarryShift runs the MSB->LSB then LSB->MSB shift passes over the leaf
	// chain, completing the flag scan before reading the carry.
	CarryShift CarryStrategy = iota
	// CarryDirect reads the carry straight from the down-sweep flag.
	CarryDirect
)

func (c CarryStrategy) String() string {
	if c == CarryDirect {
		return "direct"
	}
	return "shift"
}

func ParseCarryStrategy(s string) (CarryStrategy, error) {
	switch s {
	case "", "shift":
		return CarryShift, nil
	case "direct":
		return CarryDirect, nil
	default:
		return CarryShift, fmt.Errorf("unknown carry strategy %q", s)
	}
}
