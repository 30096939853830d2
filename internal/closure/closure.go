// Package closure maintains the transitive ancestor/descendant index over the
// requirement parent tree. The index is an arena of opaque ids with adjacency
// maps; cycle checks are explicit bounded traversals over the children map,
// never pointer chasing.
package closure

import (
	"fmt"
	"sort"
	"sync"

	"reqcore/pkg/domain"
)

// Triple is one closure row: descendant reaches ancestor in Depth parent
// hops (Depth >= 1).
type Triple struct {
	Ancestor   string `json:"ancestor"`
	Descendant string `json:"descendant"`
	Depth      int    `json:"depth"`
}

// Delta reports the closure rows removed and added by one structural change.
// Ordering is deterministic (ancestor, then descendant) so effect logs stay
// auditable.
type Delta struct {
	Removed []Triple
	Added   []Triple
}

// Index holds the materialized closure. Safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	parent    map[string]string              // node -> direct parent ("" roots are absent)
	children  map[string]map[string]struct{} // node -> direct children
	ancestors map[string]map[string]int      // node -> ancestor -> depth
}

// New constructs an empty index.
func New() *Index {
	return &Index{
		parent:    make(map[string]string),
		children:  make(map[string]map[string]struct{}),
		ancestors: make(map[string]map[string]int),
	}
}

// OnInsert registers a new node under parent (empty parent inserts a root).
// It is the degenerate reparent with no prior ancestors.
func (ix *Index) OnInsert(node, parent string) (Delta, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.ancestors[node]; exists {
		return Delta{}, fmt.Errorf("closure: node %s already indexed", node)
	}
	if parent == node && node != "" {
		return Delta{}, domain.CycleError{Node: node, AttemptedParent: parent}
	}
	ix.ancestors[node] = make(map[string]int)
	return ix.attach(node, parent), nil
}

// Reparent moves node (and its whole subtree) under newParent. Empty
// newParent detaches the node to a root. It fails with domain.CycleError when
// newParent is the node itself or any of its descendants, leaving the index
// unchanged.
func (ix *Index) Reparent(node, newParent string) (Delta, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, known := ix.ancestors[node]; !known {
		return Delta{}, fmt.Errorf("closure: node %s not indexed", node)
	}
	if newParent != "" && ix.wouldCycle(node, newParent) {
		return Delta{}, domain.CycleError{Node: node, AttemptedParent: newParent}
	}
	delta := ix.detach(node)
	attach := ix.attach(node, newParent)
	delta.Added = attach.Added
	return delta, nil
}

// WouldCycle reports whether reparenting node under candidate would create a
// cycle. Used by the orchestrator to reject the mutation before persistence.
func (ix *Index) WouldCycle(node, candidate string) bool {
	if candidate == "" {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.wouldCycle(node, candidate)
}

// wouldCycle walks the children map from node looking for candidate. The
// walk is bounded by the subtree size.
func (ix *Index) wouldCycle(node, candidate string) bool {
	if candidate == node {
		return true
	}
	queue := []string{node}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for child := range ix.children[current] {
			if child == candidate {
				return true
			}
			queue = append(queue, child)
		}
	}
	return false
}

// detach removes node's subtree rows that pass through node's old ancestors.
// Rows internal to the subtree are untouched.
func (ix *Index) detach(node string) Delta {
	var delta Delta
	oldAncestors := ix.ancestors[node]
	if len(oldAncestors) > 0 {
		for _, desc := range append([]string{node}, ix.descendantsOf(node)...) {
			for anc := range oldAncestors {
				if depth, ok := ix.ancestors[desc][anc]; ok {
					delta.Removed = append(delta.Removed, Triple{Ancestor: anc, Descendant: desc, Depth: depth})
					delete(ix.ancestors[desc], anc)
				}
			}
		}
	}
	if prev, ok := ix.parent[node]; ok {
		delete(ix.children[prev], node)
		if len(ix.children[prev]) == 0 {
			delete(ix.children, prev)
		}
		delete(ix.parent, node)
	}
	sortTriples(delta.Removed)
	return delta
}

// attach links node under parent and extends the new ancestor chain over the
// node's existing subtree.
func (ix *Index) attach(node, parent string) Delta {
	var delta Delta
	if parent == "" {
		return delta
	}
	ix.parent[node] = parent
	if ix.children[parent] == nil {
		ix.children[parent] = make(map[string]struct{})
	}
	ix.children[parent][node] = struct{}{}
	if ix.ancestors[parent] == nil {
		ix.ancestors[parent] = make(map[string]int)
	}

	chain := make(map[string]int, len(ix.ancestors[parent])+1)
	chain[parent] = 1
	for anc, depth := range ix.ancestors[parent] {
		chain[anc] = depth + 1
	}

	for _, desc := range append([]string{node}, ix.descendantsOf(node)...) {
		offset := 0
		if desc != node {
			offset = ix.ancestors[desc][node]
		}
		for anc, depth := range chain {
			total := depth + offset
			ix.ancestors[desc][anc] = total
			delta.Added = append(delta.Added, Triple{Ancestor: anc, Descendant: desc, Depth: total})
		}
	}
	sortTriples(delta.Added)
	return delta
}

// RemoveSubtree drops node and every descendant from the index, returning the
// removed closure rows. Used when a requirement subtree is soft-deleted.
func (ix *Index) RemoveSubtree(node string) Delta {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var delta Delta
	targets := append([]string{node}, ix.descendantsOf(node)...)
	doomed := make(map[string]struct{}, len(targets))
	for _, id := range targets {
		doomed[id] = struct{}{}
	}
	for _, id := range targets {
		for anc, depth := range ix.ancestors[id] {
			delta.Removed = append(delta.Removed, Triple{Ancestor: anc, Descendant: id, Depth: depth})
		}
		delete(ix.ancestors, id)
		if prev, ok := ix.parent[id]; ok {
			if _, internal := doomed[prev]; !internal {
				delete(ix.children[prev], id)
				if len(ix.children[prev]) == 0 {
					delete(ix.children, prev)
				}
			}
			delete(ix.parent, id)
		}
		delete(ix.children, id)
	}
	sortTriples(delta.Removed)
	return delta
}

// AncestorsOf returns a copy of node's ancestor set keyed by depth.
func (ix *Index) AncestorsOf(node string) map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]int, len(ix.ancestors[node]))
	for anc, depth := range ix.ancestors[node] {
		out[anc] = depth
	}
	return out
}

// DescendantsOf returns node's descendants in stable order.
func (ix *Index) DescendantsOf(node string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.descendantsOf(node)
}

func (ix *Index) descendantsOf(node string) []string {
	var out []string
	queue := []string{node}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		kids := make([]string, 0, len(ix.children[current]))
		for child := range ix.children[current] {
			kids = append(kids, child)
		}
		sort.Strings(kids)
		out = append(out, kids...)
		queue = append(queue, kids...)
	}
	return out
}

// IsAncestor reports whether ancestor appears in descendant's chain.
func (ix *Index) IsAncestor(ancestor, descendant string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.ancestors[descendant][ancestor]
	return ok
}

// Contains reports whether the node is indexed.
func (ix *Index) Contains(node string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.ancestors[node]
	return ok
}

// Rows returns every closure triple, sorted. Intended for tests and audits.
func (ix *Index) Rows() []Triple {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []Triple
	for desc, ancs := range ix.ancestors {
		for anc, depth := range ancs {
			out = append(out, Triple{Ancestor: anc, Descendant: desc, Depth: depth})
		}
	}
	sortTriples(out)
	return out
}

// Rebuild replaces the whole index from an authoritative parent map. It is
// the read-through invalidation path: when the cached closure disagrees with
// persisted rows, the affected state is rebuilt from the backend. A cycle in
// the input leaves the index unchanged.
func (ix *Index) Rebuild(parents map[string]string) error {
	fresh := New()
	for node := range parents {
		fresh.ancestors[node] = make(map[string]int)
	}
	for node, parent := range parents {
		if parent == "" {
			continue
		}
		if fresh.ancestors[parent] == nil {
			fresh.ancestors[parent] = make(map[string]int)
		}
		fresh.parent[node] = parent
		if fresh.children[parent] == nil {
			fresh.children[parent] = make(map[string]struct{})
		}
		fresh.children[parent][node] = struct{}{}
	}
	for node := range fresh.ancestors {
		depth := 0
		seen := make(map[string]struct{})
		current := node
		for {
			parent, ok := fresh.parent[current]
			if !ok {
				break
			}
			if _, dup := seen[parent]; dup || parent == node {
				return domain.CycleError{Node: node, AttemptedParent: parent}
			}
			seen[parent] = struct{}{}
			depth++
			fresh.ancestors[node][parent] = depth
			current = parent
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.parent = fresh.parent
	ix.children = fresh.children
	ix.ancestors = fresh.ancestors
	return nil
}

func sortTriples(ts []Triple) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Ancestor != ts[j].Ancestor {
			return ts[i].Ancestor < ts[j].Ancestor
		}
		if ts[i].Descendant != ts[j].Descendant {
			return ts[i].Descendant < ts[j].Descendant
		}
		return ts[i].Depth < ts[j].Depth
	})
}
