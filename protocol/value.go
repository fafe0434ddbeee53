package protocol

// Sentinels share the message channel with real values, which are never
// negative.
const (
	Padding = -1 // Fills leaves beyond the dataset. Sorts last, never emitted.
	Empty   = -2 // No candidate held.
	Quit    = -3 // Subtree permanently exhausted.
)

// Less orders candidates with Padding above every real value.
func Less(a, b int) bool {
	if a == Padding {
		return false
	}
	if b == Padding {
		return true
	}
	return a < b
}

// pick runs one tournament match between the two child slots. It returns the
// value pulled up into the parent's slot and the new child slots. Ties go to
// the left child, which keeps the output stable.
func pick(left, right int) (winner, newLeft, newRight int) {
	leftEmpty := left == Empty
	rightEmpty := right == Empty

	switch {
	case leftEmpty && rightEmpty:
		// Retire both subtrees together so neither child is left waiting on a
		// reply that never comes.
		return Empty, Quit, Quit
	case !leftEmpty && (rightEmpty || !Less(right, left)):
		return left, Empty, right
	default:
		return right, left, Empty
	}
}
