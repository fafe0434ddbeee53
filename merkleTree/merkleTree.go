// Package merkletree commits to an ordered list of transcript lines. Nodes
// are stored heap style: the root at index 1, children of i at 2i and 2i+1,
// leaves starting at the first power of two not below the line count.
package merkletree

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/bits"
)

// Leaf and inner digests are domain separated so a leaf can never be passed
// off as an inner node.
const (
	leafPrefix  = 0x00
	innerPrefix = 0x01
)

var ErrEmpty = errors.New("merkle tree needs at least one line")

type Tree struct {
	nodes [][]byte // Heap indexed, nodes[0] unused.
	count int      // Number of real leaves.
}

func leafHash(val []byte) []byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(val)
	return h.Sum(nil)
}

func innerHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{innerPrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// width returns the smallest power of two not below n.
func width(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func MakeMerkleTree(lines [][]byte) (*Tree, error) {
	n := len(lines)
	if n < 1 {
		return nil, ErrEmpty
	}
	bottom := width(n)
	t := &Tree{nodes: make([][]byte, 2*bottom), count: n}

	// Unused leaves hash as empty lines.
	for i := 0; i < bottom; i++ {
		var val []byte
		if i < n {
			val = lines[i]
		}
		t.nodes[bottom+i] = leafHash(val)
	}
	for i := bottom - 1; i > 0; i-- {
		t.nodes[i] = innerHash(t.nodes[2*i], t.nodes[2*i+1])
	}
	return t, nil
}

func (t *Tree) Root() []byte { return t.nodes[1] }

func (t *Tree) Len() int { return t.count }

// GetMerkleBranch returns the sibling digests from the leaf at index up to
// the root.
func (t *Tree) GetMerkleBranch(index int) ([][]byte, error) {
	if index < 0 || index >= t.count {
		return nil, fmt.Errorf("leaf %d out of range [0, %d)", index, t.count)
	}
	var branch [][]byte
	for i := index + len(t.nodes)/2; i > 1; i /= 2 {
		branch = append(branch, t.nodes[i^1])
	}
	return branch, nil
}

// MerkleTreeVerify checks that val sits at index under root.
func MerkleTreeVerify(val, root []byte, branch [][]byte, index int) bool {
	digest := leafHash(val)
	for _, sibling := range branch {
		if index&1 == 1 {
			digest = innerHash(sibling, digest)
		} else {
			digest = innerHash(digest, sibling)
		}
		index >>= 1
	}
	return index == 0 && bytes.Equal(digest, root)
}
