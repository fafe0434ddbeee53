// Package topology maps a process rank onto an implicit complete binary tree.
//
// Ranks are binary heap indexes: the tree is never materialised, every
// relationship is computed from (rank, size). For size 7:
//
//	            0
//	       1         2
//	     3   4     5   6
//
// Ranks below size/2 are the root and internal nodes, every other rank is a
// leaf. Leaves form a chain ordered by in-order position, position 0 being the
// most significant bit for the adder and the first input value for the sort.
package topology

import (
	"errors"
	"fmt"
	"math/bits"
)

const Root = 0

// None marks a relationship that does not exist (the root's parent, a leaf's
// children, the ends of the leaf chain).
const None = -1

var (
	ErrSize = errors.New("topology: size must be at least 1")
	// An even size leaves rank size/2-1 with a right child outside the tree.
	ErrEvenSize = errors.New("topology: size must be odd")
	ErrRank     = errors.New("topology: rank out of range")
)

type Node struct {
	Rank        int  // Process rank, 0 <= Rank < Size.
	Size        int  // Total process count.
	Parent      int  // floor((rank-1)/2), None for the root.
	LeftChild   int  // 2*rank+1, None for leaves.
	RightChild  int  // 2*rank+2, None for leaves.
	FirstLeaf   int  // floor(size/2), the first leaf rank.
	IsRoot      bool // Rank 0.
	IsNode      bool // Internal node (neither root nor leaf).
	IsLeaf      bool // Rank >= FirstLeaf.
	IsFirstLeaf bool // Rank == FirstLeaf.
	IsLastLeaf  bool // Rank == Size-1.
	LeafPos     int  // In-order chain position, None for non-leaves.
	MSBNeighbor int  // Previous leaf in the chain, None at the head.
	LSBNeighbor int  // Next leaf in the chain, None at the tail.
}

// Validate checks that size describes a complete binary tree.
func Validate(size int) error {
	if size < 1 {
		return ErrSize
	}
	if size%2 == 0 {
		return fmt.Errorf("%w: got %d", ErrEvenSize, size)
	}
	return nil
}

// MakeNode derives every topology field of rank. A rank of size 1 is both root
// and leaf.
func MakeNode(rank, size int) (Node, error) {
	if err := Validate(size); err != nil {
		return Node{}, err
	}
	if rank < 0 || rank >= size {
		return Node{}, fmt.Errorf("%w: rank %d, size %d", ErrRank, rank, size)
	}

	n := Node{
		Rank:        rank,
		Size:        size,
		Parent:      None,
		LeftChild:   None,
		RightChild:  None,
		FirstLeaf:   size / 2,
		LeafPos:     None,
		MSBNeighbor: None,
		LSBNeighbor: None,
	}
	n.IsRoot = rank == Root
	n.IsNode = !n.IsRoot && rank < n.FirstLeaf
	n.IsLeaf = rank >= n.FirstLeaf
	n.IsFirstLeaf = rank == n.FirstLeaf
	n.IsLastLeaf = rank == size-1

	if !n.IsRoot {
		n.Parent = (rank - 1) / 2
	}
	if !n.IsLeaf {
		n.LeftChild = 2*rank + 1
		n.RightChild = 2*rank + 2
	}
	if n.IsLeaf {
		n.LeafPos = LeafPos(rank, size)
		if n.LeafPos > 0 {
			n.MSBNeighbor = LeafRank(n.LeafPos-1, size)
		}
		if n.LeafPos < LeafCount(size)-1 {
			n.LSBNeighbor = LeafRank(n.LeafPos+1, size)
		}
	}
	return n, nil
}

// IsChainHead reports whether n holds the most significant chain position.
func (n Node) IsChainHead() bool { return n.IsLeaf && n.LeafPos == 0 }

// IsChainTail reports whether n holds the least significant chain position.
func (n Node) IsChainTail() bool { return n.IsLeaf && n.LSBNeighbor == None }

// LeafCount is ceil(size/2).
func LeafCount(size int) int {
	return (size + 1) / 2
}

// Depth returns the number of edges between the root and the deepest leaf.
func Depth(size int) int {
	return bits.Len(uint(size)) - 1
}

// deepest returns the first rank of the bottom level.
func deepest(size int) int {
	return 1<<Depth(size) - 1
}

// LeafRank returns the rank holding in-order leaf position pos.
//
// The bottom level sits leftmost in-order, so its leaves come first, followed
// by the leaves of the level above. For a perfect tree the bottom level holds
// every leaf and LeafRank(pos) == size/2 + pos.
func LeafRank(pos, size int) int {
	d := deepest(size)
	bottom := size - d
	if pos < bottom {
		return d + pos
	}
	return size/2 + pos - bottom
}

// LeafPos is the inverse of LeafRank.
func LeafPos(rank, size int) int {
	d := deepest(size)
	if rank >= d {
		return rank - d
	}
	return size - d + rank - size/2
}
