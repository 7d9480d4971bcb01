// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// MinSequenceSeparation is the smallest |j-i| for which a contact is
// meaningful; nearer pairs are trivially in contact and never reported.
const MinSequenceSeparation = 5

// Contact is one predicted residue pair in some coordinate frame,
// with i < j and j >= i+MinSequenceSeparation.
type Contact struct {
	I    int
	J    int
	Prob float64
}

// ContactMatrix is a sparse residue-pair probability map over the global
// coordinate frame. It is owned by one controller run and passed explicitly
// through the decomposition and merge steps; there is no ambient instance.
type ContactMatrix struct {
	probs map[[2]int]float64
}

// NewContactMatrix returns an empty matrix.
func NewContactMatrix() *ContactMatrix {
	return &ContactMatrix{probs: make(map[[2]int]float64)}
}

// Set stores the probability for the pair (i, j), overwriting any prior
// value. Pairs violating i < j or the minimum sequence separation are
// ignored: the fusion tools occasionally emit near-diagonal pairs and the
// matrix enforces the separation invariant uniformly.
func (m *ContactMatrix) Set(i, j int, prob float64) {
	if i >= j || j < i+MinSequenceSeparation {
		return
	}
	m.probs[[2]int{i, j}] = prob
}

// Get returns the stored probability and whether the pair is present.
func (m *ContactMatrix) Get(i, j int) (float64, bool) {
	p, ok := m.probs[[2]int{i, j}]
	return p, ok
}

// Len returns the number of stored pairs.
func (m *ContactMatrix) Len() int { return len(m.probs) }

// ZeroRange deletes every pair whose endpoints both lie inside
// [lo, hi] (1-based inclusive). Used before a domain merge so that
// full-sequence predictions inside the domain never survive a domain
// rerun, even when the rerun produced no replacement for a pair.
func (m *ContactMatrix) ZeroRange(lo, hi int) {
	for key := range m.probs {
		if key[0] >= lo && key[1] <= hi {
			delete(m.probs, key)
		}
	}
}

// Contacts returns all pairs with probability > 0 sorted by ascending
// (i, j). Entries with non-positive probability are omitted from reports.
func (m *ContactMatrix) Contacts() []Contact {
	out := make([]Contact, 0, len(m.probs))
	for key, p := range m.probs {
		if p > 0 {
			out = append(out, Contact{I: key[0], J: key[1], Prob: p})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].I != out[b].I {
			return out[a].I < out[b].I
		}
		return out[a].J < out[b].J
	})
	return out
}
