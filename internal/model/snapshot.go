package model

import (
	"crypto/sha256"
	"fmt"
)

// NodeHash computes an identity hash for a node from its semantic content
// and its path in the tree. It lets nodes be matched across builds whose
// traversal-order ids have shifted.
func NodeHash(t *Tree, n Node) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", n.Role, n.Label, n.Description, PathOf(t, n.ID))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// DiffByContent compares two trees matching nodes by content hash instead
// of id. Nodes sharing a hash are paired in tree order. Since role, label
// and description are part of the hash, modified entries only report
// geometry and state fields; their id is the node's id in b.
func DiffByContent(a, b *Tree) []Change {
	prevByHash := make(map[string][]Node)
	if a != nil {
		for _, n := range a.Nodes {
			h := NodeHash(a, n)
			prevByHash[h] = append(prevByHash[h], n)
		}
	}

	var added, modified []Change
	if b != nil {
		for _, n := range b.Nodes {
			h := NodeHash(b, n)
			queue := prevByHash[h]
			if len(queue) == 0 {
				nc := n.Clone()
				added = append(added, Change{Type: ChangeAdded, ID: n.ID, Node: &nc})
				continue
			}
			prev := queue[0]
			prevByHash[h] = queue[1:]
			modified = append(modified, diffFields(prev, n, false)...)
		}
	}

	var removed []Change
	if a != nil {
		for _, n := range a.Nodes {
			h := NodeHash(a, n)
			for i, left := range prevByHash[h] {
				if left.ID == n.ID {
					nc := n.Clone()
					removed = append(removed, Change{Type: ChangeRemoved, ID: n.ID, Node: &nc})
					prevByHash[h] = append(prevByHash[h][:i:i], prevByHash[h][i+1:]...)
					break
				}
			}
		}
	}

	changes := append(removed, added...)
	return append(changes, modified...)
}
